package services

import (
	"context"
	"errors"
	"fmt"

	"mgnrega/internal/core"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/storage"
)

const (
	DefaultHistoryYears = 2
	MaxHistoryYears     = 10
	MaxCompareDistricts = 10
)

var ErrInvalidInput = errors.New("invalid input")

// DashboardStore is the read side of the repository used by the dashboard.
type DashboardStore interface {
	GetDistrict(ctx context.Context, id int64) (core.District, error)
	GetState(ctx context.Context, id int64) (core.State, error)
	DistrictsWithCentroids(ctx context.Context) ([]core.DistrictWithState, error)
	LatestMetric(ctx context.Context, districtID int64, f storage.MetricFilter) (core.MonthlyMetric, error)
	MetricAt(ctx context.Context, districtID int64, p core.Period) (core.MonthlyMetric, error)
	MetricHistory(ctx context.Context, districtID int64, from core.Period) ([]core.MonthlyMetric, error)
	Compare(ctx context.Context, districtIDs []int64, f storage.MetricFilter) ([]core.Comparison, error)
}

type (
	// Card is one headline figure of the district report.
	Card struct {
		Key        string       `json:"key"`
		Title      string       `json:"title"`
		Value      string       `json:"value"`
		Raw        float64      `json:"raw"`
		Growth     float64      `json:"growth"`
		Trend      format.Trend `json:"trend"`
		TrendColor string       `json:"trend_color"`
		Arrow      string       `json:"arrow"`
		AudioText  string       `json:"audio_text"`
	}

	// Detail is one labelled row of the report breakdown.
	Detail struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}

	Report struct {
		District     core.District      `json:"-"`
		State        core.State         `json:"-"`
		DistrictName string             `json:"district_name"`
		StateName    string             `json:"state_name"`
		Period       core.Period        `json:"period"`
		PeriodLabel  string             `json:"period_label"`
		Previous     *core.Period       `json:"previous,omitempty"`
		Cards        []Card             `json:"cards"`
		Social       []Detail           `json:"social"`
		Financial    []Detail           `json:"financial"`
		Utilization  string             `json:"utilization"`
		WagesInWords string             `json:"wages_in_words"`
		Updated      string             `json:"updated"`
		Metric       core.MonthlyMetric `json:"-"`
	}

	HistoryEntry struct {
		core.HistoryPoint
		Label string `json:"label"`
	}
)

// DashboardService assembles the formatted views behind the dashboard.
type DashboardService struct {
	store  DashboardStore
	fmt    *format.Formatter
	logger *log.Logger
}

func NewDashboardService(store DashboardStore, f *format.Formatter, logger *log.Logger) *DashboardService {
	if f == nil {
		f = format.Default
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DashboardService{store: store, fmt: f, logger: logger.WithComponent(log.ComponentDashboard)}
}

// DistrictReport builds the report for a district's latest month matching f.
// Trends compare against the month before; without one every trend is flat.
func (s *DashboardService) DistrictReport(ctx context.Context, districtID int64, f storage.MetricFilter) (Report, error) {
	district, err := s.store.GetDistrict(ctx, districtID)
	if err != nil {
		return Report{}, err
	}
	state, err := s.store.GetState(ctx, district.StateID)
	if err != nil {
		return Report{}, err
	}
	cur, err := s.store.LatestMetric(ctx, districtID, f)
	if err != nil {
		return Report{}, err
	}

	prev, err := s.store.MetricAt(ctx, districtID, cur.Period.Prev())
	hasPrev := err == nil
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return Report{}, err
	}

	r := Report{
		District:     district,
		State:        state,
		DistrictName: district.Name,
		StateName:    state.Name,
		Period:       cur.Period,
		PeriodLabel:  s.fmt.MonthYear(cur.Period.Year, cur.Period.Month),
		Metric:       cur,
		WagesInWords: format.NumberToWords(int64(cur.Finances.WageExpenditure)),
		Updated:      s.fmt.Date(cur.UpdatedAt),
	}
	if hasPrev {
		p := prev.Period
		r.Previous = &p
	} else {
		// Comparing against itself yields flat trends.
		prev = cur
	}

	r.Cards = s.cards(cur, prev)

	r.Social = []Detail{
		{Label: "SC Households", Value: s.fmt.IndianNumber(float64(cur.Households.SC))},
		{Label: "ST Households", Value: s.fmt.IndianNumber(float64(cur.Households.ST))},
		{Label: "Women Households", Value: s.fmt.IndianNumber(float64(cur.Households.Women))},
	}
	util := core.Utilization(cur.Finances.FundsUtilized, cur.Finances.TotalFunds)
	r.Utilization = s.fmt.Percentage(util, format.DefaultPercentDecimals)
	r.Financial = []Detail{
		{Label: "Total Funds", Value: s.fmt.LargeCurrency(cur.Finances.TotalFunds)},
		{Label: "Funds Utilized", Value: s.fmt.LargeCurrency(cur.Finances.FundsUtilized)},
		{Label: "Material Cost", Value: s.fmt.LargeCurrency(cur.Finances.MaterialExpenditure)},
		{Label: "Utilization", Value: r.Utilization},
	}

	s.logger.DebugContext(ctx, "Built district report", log.NewFields().
		WithDistrict(districtID, cur.Period.String()).
		WithOperation(log.OpRender).ToSlice()...)
	return r, nil
}

func (s *DashboardService) cards(cur, prev core.MonthlyMetric) []Card {
	wages := s.fmt.LargeCurrency(cur.Finances.WageExpenditure)
	return []Card{
		s.card("households", "Households / परिवार",
			s.fmt.IndianNumber(float64(cur.Households.Total)),
			float64(cur.Households.Total), float64(prev.Households.Total),
			fmt.Sprintf("कुल %d परिवारों को रोज़गार मिला। इसमें %d महिला परिवार शामिल हैं।",
				cur.Households.Total, cur.Households.Women)),
		s.card("person_days", "Person Days / व्यक्ति दिवस",
			s.fmt.IndianNumber(float64(cur.PersonDays.Total)),
			float64(cur.PersonDays.Total), float64(prev.PersonDays.Total),
			fmt.Sprintf("कुल %d व्यक्ति दिवस का रोज़गार दिया गया।", cur.PersonDays.Total)),
		s.card("wages", "Wages Paid / मज़दूरी", wages,
			cur.Finances.WageExpenditure, prev.Finances.WageExpenditure,
			fmt.Sprintf("मज़दूरों को कुल %s मज़दूरी दी गई।", wages)),
		s.card("works_completed", "Works Completed / पूर्ण कार्य",
			s.fmt.IndianNumber(float64(cur.Works.Completed)),
			float64(cur.Works.Completed), float64(prev.Works.Completed),
			fmt.Sprintf("कुल %d परियोजनाएं पूरी हुईं।", cur.Works.Completed)),
	}
}

func (s *DashboardService) card(key, title, value string, cur, prev float64, audio string) Card {
	trend := format.TrendIndicator(cur, prev)
	return Card{
		Key:        key,
		Title:      title,
		Value:      value,
		Raw:        cur,
		Growth:     format.CalculateGrowth(cur, prev),
		Trend:      trend,
		TrendColor: format.TrendColor(trend),
		Arrow:      trend.Arrow(),
		AudioText:  audio,
	}
}

// History returns a district's months from years before its latest month up
// to the latest, oldest first. A district without metrics is ErrNotFound.
func (s *DashboardService) History(ctx context.Context, districtID int64, years int) ([]HistoryEntry, error) {
	if years < 1 || years > MaxHistoryYears {
		return nil, fmt.Errorf("%w: years must be between 1 and %d", ErrInvalidInput, MaxHistoryYears)
	}
	if _, err := s.store.GetDistrict(ctx, districtID); err != nil {
		return nil, err
	}
	latest, err := s.store.LatestMetric(ctx, districtID, storage.MetricFilter{})
	if err != nil {
		return nil, err
	}

	metrics, err := s.store.MetricHistory(ctx, districtID, core.HistoryFrom(latest.Period, years))
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(metrics))
	for i, m := range metrics {
		out[i] = HistoryEntry{
			HistoryPoint: m.HistoryPoint(),
			Label:        s.fmt.MonthYear(m.Period.Year, m.Period.Month),
		}
	}
	return out, nil
}

// Detect finds the district whose centroid is nearest to (lat, lon).
func (s *DashboardService) Detect(ctx context.Context, lat, lon float64) (core.Detection, error) {
	if err := core.ValidateCoordinates(lat, lon); err != nil {
		return core.Detection{}, err
	}
	candidates, err := s.store.DistrictsWithCentroids(ctx)
	if err != nil {
		return core.Detection{}, err
	}
	d, err := core.NearestDistrict(lat, lon, candidates)
	if err != nil {
		return core.Detection{}, err
	}
	s.logger.InfoContext(ctx, "Detected district",
		log.FieldOperation, log.OpDetect,
		log.FieldDistrictID, d.District.ID,
		"distance_km", d.DistanceKm,
		"confidence", d.Confidence)
	return d, nil
}

// Compare returns comparison rows for up to MaxCompareDistricts districts.
func (s *DashboardService) Compare(ctx context.Context, districtIDs []int64, f storage.MetricFilter) ([]core.Comparison, error) {
	if len(districtIDs) == 0 {
		return nil, fmt.Errorf("%w: no district ids", ErrInvalidInput)
	}
	if len(districtIDs) > MaxCompareDistricts {
		return nil, fmt.Errorf("%w: at most %d districts", ErrInvalidInput, MaxCompareDistricts)
	}
	return s.store.Compare(ctx, districtIDs, f)
}

var _ DashboardStore = (*storage.SQLiteRepository)(nil)
