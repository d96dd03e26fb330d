package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/core"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
	"mgnrega/internal/storage"
)

type (
	stateView struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	districtView struct {
		ID        int64        `json:"id"`
		Name      string       `json:"name"`
		Code      string       `json:"code,omitempty"`
		StateID   int64        `json:"state_id"`
		Centroid  *core.LatLon `json:"centroid"`
		CreatedAt time.Time    `json:"created_at"`
		UpdatedAt time.Time    `json:"updated_at"`
	}

	householdsView struct {
		Total int64 `json:"total"`
		SC    int64 `json:"sc"`
		ST    int64 `json:"st"`
		Women int64 `json:"women"`
	}

	worksView struct {
		Total      int64 `json:"total"`
		Completed  int64 `json:"completed"`
		InProgress int64 `json:"in_progress"`
	}

	financesView struct {
		TotalFunds          float64 `json:"total_funds"`
		FundsUtilized       float64 `json:"funds_utilized"`
		WageExpenditure     float64 `json:"wage_expenditure"`
		MaterialExpenditure float64 `json:"material_expenditure"`
	}

	metadataView struct {
		IsLatest  bool      `json:"is_latest"`
		SourceURL string    `json:"source_url"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	metricView struct {
		DistrictID int64          `json:"district_id"`
		StateID    int64          `json:"state_id"`
		Year       int            `json:"year"`
		Month      int            `json:"month"`
		Households householdsView `json:"households"`
		Works      worksView      `json:"works"`
		Finances   financesView   `json:"finances"`
		PersonDays householdsView `json:"person_days"`
		Metadata   metadataView   `json:"metadata"`
	}

	historyView struct {
		Year           int     `json:"year"`
		Month          int     `json:"month"`
		Label          string  `json:"label"`
		Households     int64   `json:"households"`
		PersonDays     int64   `json:"person_days"`
		WorksCompleted int64   `json:"works_completed"`
		FundsUtilized  float64 `json:"funds_utilized"`
	}

	detectionView struct {
		ID         int64   `json:"id"`
		Name       string  `json:"name"`
		StateName  string  `json:"state_name"`
		StateID    int64   `json:"state_id"`
		DistanceKm float64 `json:"distance_km"`
		Confidence float64 `json:"confidence"`
	}

	comparisonView struct {
		DistrictID      int64   `json:"district_id"`
		DistrictName    string  `json:"district_name"`
		Year            int     `json:"year"`
		Month           int     `json:"month"`
		TotalHouseholds int64   `json:"total_households"`
		TotalPersonDays int64   `json:"total_person_days"`
		CompletedWorks  int64   `json:"completed_works"`
		FundsUtilized   float64 `json:"funds_utilized"`
		WageExpenditure float64 `json:"wage_expenditure"`
	}

	syncAccepted struct {
		Status    string `json:"status"`
		RunID     string `json:"run_id"`
		StateCode string `json:"state_code,omitempty"`
	}
)

func newStateView(s core.State) stateView {
	return stateView{ID: s.ID, Name: s.Name, Code: s.Code, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func newDistrictView(d core.District) districtView {
	return districtView{
		ID: d.ID, Name: d.Name, Code: d.Code, StateID: d.StateID, Centroid: d.Centroid,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func newMetricView(m core.MonthlyMetric) metricView {
	return metricView{
		DistrictID: m.DistrictID,
		StateID:    m.StateID,
		Year:       m.Period.Year,
		Month:      m.Period.Month,
		Households: householdsView(m.Households),
		Works:      worksView(m.Works),
		Finances:   financesView(m.Finances),
		PersonDays: householdsView(m.PersonDays),
		Metadata:   metadataView{IsLatest: m.IsLatest, SourceURL: m.SourceURL, UpdatedAt: m.UpdatedAt},
	}
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := ParsePagination(r.URL.Query(), 100, 1000)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	states, err := s.store.ListStates(r.Context(), skip, limit)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	out := make([]stateView, len(states))
	for i, st := range states {
		out[i] = newStateView(st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDistricts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state_id") == "" {
		writeServiceError(w, r, &paramError{name: "state_id", reason: "is required"}, log.OpList)
		return
	}
	stateID, err := QueryInt(q, "state_id", 0, 1, 1<<30)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	skip, limit, err := ParsePagination(q, 1000, 5000)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	districts, err := s.store.ListDistricts(r.Context(), int64(stateID), skip, limit)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	out := make([]districtView, len(districts))
	for i, d := range districts {
		out[i] = newDistrictView(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := QueryFloat(q, "lat")
	if err != nil {
		writeServiceError(w, r, err, log.OpDetect)
		return
	}
	lon, err := QueryFloat(q, "lon")
	if err != nil {
		writeServiceError(w, r, err, log.OpDetect)
		return
	}
	d, err := s.dashboard.Detect(r.Context(), lat, lon)
	if err != nil {
		writeServiceError(w, r, err, log.OpDetect)
		return
	}
	writeJSON(w, http.StatusOK, detectionView{
		ID:         d.District.ID,
		Name:       d.District.Name,
		StateName:  d.State.Name,
		StateID:    d.State.ID,
		DistanceKm: d.DistanceKm,
		Confidence: d.Confidence,
	})
}

func (s *Server) handleDistrictMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	f, err := ParseMetricFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	m, err := s.store.LatestMetric(r.Context(), id, f)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No metrics found for district %d", id))
			return
		}
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, newMetricView(m))
}

func (s *Server) handleDistrictHistory(w http.ResponseWriter, r *http.Request) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	years, err := QueryInt(r.URL.Query(), "years", services.DefaultHistoryYears, 1, services.MaxHistoryYears)
	if err != nil {
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	entries, err := s.dashboard.History(r.Context(), id, years)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No metrics found for district %d", id))
			return
		}
		writeServiceError(w, r, err, log.OpRead)
		return
	}
	out := make([]historyView, len(entries))
	for i, e := range entries {
		out[i] = historyView{
			Year:           e.Period.Year,
			Month:          e.Period.Month,
			Label:          e.Label,
			Households:     e.Households,
			PersonDays:     e.PersonDays,
			WorksCompleted: e.WorksCompleted,
			FundsUtilized:  e.FundsUtilized,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := ParseIDList(q.Get("district_ids"), "district_ids")
	if err != nil {
		writeServiceError(w, r, err, log.OpCompare)
		return
	}
	f, err := ParseMetricFilter(q)
	if err != nil {
		writeServiceError(w, r, err, log.OpCompare)
		return
	}
	rows, err := s.dashboard.Compare(r.Context(), ids, f)
	if err != nil {
		writeServiceError(w, r, err, log.OpCompare)
		return
	}
	out := make([]comparisonView, len(rows))
	for i, c := range rows {
		out[i] = comparisonView{
			DistrictID:      c.DistrictID,
			DistrictName:    c.DistrictName,
			Year:            c.Period.Year,
			Month:           c.Period.Month,
			TotalHouseholds: c.Households,
			TotalPersonDays: c.PersonDays,
			CompletedWorks:  c.CompletedWorks,
			FundsUtilized:   c.FundsUtilized,
			WageExpenditure: c.WageExpenditure,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDistrictReport(w http.ResponseWriter, r *http.Request) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err, log.OpRender)
		return
	}
	f, err := ParseMetricFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err, log.OpRender)
		return
	}
	report, err := s.report(r, id, f)
	if err != nil {
		writeServiceError(w, r, err, log.OpRender)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// report serves district reports through the report cache.
// report serves cached reports only while the district's metrics are
// unchanged, so syncs run by the worker process are picked up too.
func (s *Server) report(r *http.Request, id int64, f storage.MetricFilter) (services.Report, error) {
	version, err := s.store.MetricsVersion(r.Context(), id)
	if err != nil {
		return services.Report{}, err
	}
	return s.reportCache.GetOrLoad(reportKey(id, version, f), func() (services.Report, error) {
		return s.dashboard.DistrictReport(r.Context(), id, f)
	})
}

func reportKey(id int64, version string, f storage.MetricFilter) string {
	key := strconv.FormatInt(id, 10) + "#" + version
	if f.Year != nil {
		key += ":y" + strconv.Itoa(*f.Year)
	}
	if f.Month != nil {
		key += ":m" + strconv.Itoa(*f.Month)
	}
	return key
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "Sync queue is not configured")
		return
	}
	code := sanitizeStateCode(r.URL.Query().Get("state"))
	if code != "" && (len(code) < 2 || len(code) > 3) {
		writeServiceError(w, r, &paramError{name: "state", reason: "must be a 2 or 3 letter state code"}, log.OpSync)
		return
	}

	msg := amqp.NewSyncRequestMessage(services.NewRunID(), code)
	if err := s.publisher.PublishSyncRequest(r.Context(), msg); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to queue sync request",
			log.FieldOperation, log.OpSync, log.FieldRunID, msg.RunID, log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "Sync queue unavailable")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Queued sync request",
		log.FieldRunID, msg.RunID, log.FieldState, msg.StateCode)
	writeJSON(w, http.StatusAccepted, syncAccepted{Status: "queued", RunID: msg.RunID, StateCode: msg.StateCode})
}
