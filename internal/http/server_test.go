package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/core"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
	"mgnrega/internal/storage"
)

type fakeStore struct {
	pingErr   error
	states    []core.State
	districts map[int64][]core.District
	metrics   map[int64]core.MonthlyMetric
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) ListStates(ctx context.Context, skip, limit int) ([]core.State, error) {
	if skip >= len(f.states) {
		return nil, nil
	}
	end := min(skip+limit, len(f.states))
	return f.states[skip:end], nil
}

func (f *fakeStore) GetState(ctx context.Context, id int64) (core.State, error) {
	for _, s := range f.states {
		if s.ID == id {
			return s, nil
		}
	}
	return core.State{}, core.ErrNotFound
}

func (f *fakeStore) ListDistricts(ctx context.Context, stateID int64, skip, limit int) ([]core.District, error) {
	return f.districts[stateID], nil
}

func (f *fakeStore) LatestMetric(ctx context.Context, districtID int64, filter storage.MetricFilter) (core.MonthlyMetric, error) {
	m, ok := f.metrics[districtID]
	if !ok {
		return core.MonthlyMetric{}, core.ErrNotFound
	}
	if filter.Year != nil && *filter.Year != m.Period.Year {
		return core.MonthlyMetric{}, core.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) MetricsVersion(ctx context.Context, districtID int64) (string, error) {
	m, ok := f.metrics[districtID]
	if !ok {
		return "", nil
	}
	return m.UpdatedAt.Format(time.RFC3339), nil
}

type fakeDashboard struct {
	reports    atomic.Int32
	detectErr  error
	compareIDs []int64
}

func (f *fakeDashboard) DistrictReport(ctx context.Context, id int64, filter storage.MetricFilter) (services.Report, error) {
	f.reports.Add(1)
	if id != 7 {
		return services.Report{}, core.ErrNotFound
	}
	return services.Report{
		District:     core.District{ID: 7, Name: "Lucknow", StateID: 1},
		DistrictName: "Lucknow",
		StateName:    "Uttar Pradesh",
		Period:       core.NewPeriod(2025, 1),
		PeriodLabel:  "January 2025",
		Cards: []services.Card{{
			Key: "households", Title: "Households", Value: "1,30,000",
			Trend: format.TrendUp, TrendColor: "text-green-600", Arrow: "↑", Growth: 8.33,
			AudioText: "कुल 130000 परिवारों को रोज़गार मिला।",
		}},
		Social:       []services.Detail{{Label: "SC Households", Value: "30,000"}},
		Financial:    []services.Detail{{Label: "Total Funds", Value: "₹50.00 Cr"}},
		Utilization:  "90.0%",
		WagesInWords: "Ten Crore",
	}, nil
}

func (f *fakeDashboard) History(ctx context.Context, id int64, years int) ([]services.HistoryEntry, error) {
	if id != 7 {
		return nil, core.ErrNotFound
	}
	return []services.HistoryEntry{{
		HistoryPoint: core.HistoryPoint{Period: core.NewPeriod(2025, 1), Households: 130000, PersonDays: 2500000, FundsUtilized: 1.2e8},
		Label:        "January 2025",
	}}, nil
}

func (f *fakeDashboard) Detect(ctx context.Context, lat, lon float64) (core.Detection, error) {
	if f.detectErr != nil {
		return core.Detection{}, f.detectErr
	}
	if err := core.ValidateCoordinates(lat, lon); err != nil {
		return core.Detection{}, err
	}
	return core.Detection{
		District:   core.District{ID: 7, Name: "Lucknow", StateID: 1},
		State:      core.State{ID: 1, Name: "Uttar Pradesh", Code: "UP"},
		DistanceKm: 3.2,
		Confidence: 98.4,
	}, nil
}

func (f *fakeDashboard) Compare(ctx context.Context, ids []int64, filter storage.MetricFilter) ([]core.Comparison, error) {
	f.compareIDs = ids
	if len(ids) > services.MaxCompareDistricts {
		return nil, services.ErrInvalidInput
	}
	out := make([]core.Comparison, len(ids))
	for i, id := range ids {
		out[i] = core.Comparison{DistrictID: id, DistrictName: "D", Period: core.NewPeriod(2025, 1), Households: 10}
	}
	return out, nil
}

type fakePublisher struct {
	err  error
	msgs []*amqp.SyncRequestMessage
}

func (f *fakePublisher) PublishSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func testStore() *fakeStore {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return &fakeStore{
		states: []core.State{{ID: 1, Name: "Uttar Pradesh", Code: "UP", CreatedAt: now, UpdatedAt: now}},
		districts: map[int64][]core.District{
			1: {{ID: 7, Name: "Lucknow", StateID: 1, Centroid: &core.LatLon{Lat: 26.85, Lon: 80.95}}},
		},
		metrics: map[int64]core.MonthlyMetric{
			7: {
				DistrictID: 7, StateID: 1, Period: core.NewPeriod(2025, 1),
				Households: core.Households{Total: 130000, SC: 30000, ST: 2000, Women: 60000},
				Works:      core.Works{Total: 900, Completed: 400, InProgress: 500},
				Finances:   core.Finances{TotalFunds: 5e8, FundsUtilized: 4.5e8, WageExpenditure: 1e8},
				IsLatest:   true, SourceURL: "https://data.gov.in", UpdatedAt: now,
			},
		},
	}
}

func newTestServer(t *testing.T, store Store, dash Dashboard, pub SyncPublisher) *Server {
	t.Helper()
	logger := log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
	s := NewServer(Config{Addr: ":0", Logger: logger, RateLimit: 1000}, store, dash, pub)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, s, http.MethodGet, path); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body)
		}
	}

	rr := do(t, s, http.MethodGet, "/api/v1/health")
	body := decode[map[string]string](t, rr)
	if body["status"] != "healthy" || body["version"] != Version {
		t.Fatalf("health body = %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestReadyFailsWhenDatabaseDown(t *testing.T) {
	store := testStore()
	store.pingErr = errors.New("disk I/O error")
	s := newTestServer(t, store, &fakeDashboard{}, nil)

	if rr := do(t, s, http.MethodGet, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestListStatesAndDistricts(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/states")
	states := decode[[]map[string]any](t, rr)
	if len(states) != 1 || states[0]["code"] != "UP" {
		t.Fatalf("states = %v", states)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	rr = do(t, s, http.MethodGet, "/api/v1/districts?state_id=1")
	districts := decode[[]districtView](t, rr)
	if len(districts) != 1 || districts[0].Centroid == nil || districts[0].Centroid.Lat != 26.85 {
		t.Fatalf("districts = %+v", districts)
	}

	if rr := do(t, s, http.MethodGet, "/api/v1/districts"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing state_id status=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/states?limit=0"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("limit=0 status=%d", rr.Code)
	}
}

func TestDistrictMetrics(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/7")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	m := decode[metricView](t, rr)
	if m.Households.Women != 60000 || m.Works.InProgress != 500 || !m.Metadata.IsLatest {
		t.Fatalf("metric = %+v", m)
	}

	rr = do(t, s, http.MethodGet, "/api/v1/metrics/district/99")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown district status=%d", rr.Code)
	}
	if got := decode[ErrorBody](t, rr).Detail; got != "No metrics found for district 99" {
		t.Fatalf("detail = %q", got)
	}

	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/7?year=2024"); rr.Code != http.StatusNotFound {
		t.Fatalf("filtered status=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/abc"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad id status=%d", rr.Code)
	}
}

func TestDistrictHistory(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/7/history?years=3")
	history := decode[[]historyView](t, rr)
	if len(history) != 1 || history[0].Label != "January 2025" || history[0].Year != 2025 {
		t.Fatalf("history = %+v", history)
	}

	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/7/history?years=11"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("years=11 status=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/district/8/history"); rr.Code != http.StatusNotFound {
		t.Fatalf("no metrics status=%d", rr.Code)
	}
}

func TestDetectByLocation(t *testing.T) {
	dash := &fakeDashboard{}
	s := newTestServer(t, testStore(), dash, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/districts/detect-by-location?lat=26.8&lon=80.9")
	d := decode[detectionView](t, rr)
	if d.ID != 7 || d.StateName != "Uttar Pradesh" || d.Confidence != 98.4 {
		t.Fatalf("detection = %+v", d)
	}

	if rr := do(t, s, http.MethodGet, "/api/v1/districts/detect-by-location?lat=100&lon=80"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad lat status=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/districts/detect-by-location?lat=26"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing lon status=%d", rr.Code)
	}

	dash.detectErr = errors.New("database is locked")
	rr = do(t, s, http.MethodGet, "/api/v1/districts/detect-by-location?lat=26.8&lon=80.9")
	if rr.Code != http.StatusInternalServerError || decode[ErrorBody](t, rr).Detail != "Internal server error" {
		t.Fatalf("internal error leaked: %d %s", rr.Code, rr.Body)
	}
}

func TestCompare(t *testing.T) {
	dash := &fakeDashboard{}
	s := newTestServer(t, testStore(), dash, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/metrics/compare?district_ids=7,%208,7")
	rows := decode[[]comparisonView](t, rr)
	if len(rows) != 2 || rows[0].DistrictID != 7 || rows[1].DistrictID != 8 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].TotalHouseholds != 10 {
		t.Fatalf("households = %d", rows[0].TotalHouseholds)
	}

	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/compare?district_ids=1,2,3,4,5,6,7,8,9,10,11"); rr.Code != http.StatusBadRequest {
		t.Fatalf("too many ids status=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/api/v1/metrics/compare?district_ids=x"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad ids status=%d", rr.Code)
	}
}

func TestDistrictReportIsCached(t *testing.T) {
	dash := &fakeDashboard{}
	store := testStore()
	s := newTestServer(t, store, dash, nil)

	for range 3 {
		rr := do(t, s, http.MethodGet, "/api/v1/report/district/7")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
	}
	if n := dash.reports.Load(); n != 1 {
		t.Fatalf("report built %d times, want 1", n)
	}

	// A sync in another process rewrites the row without touching this
	// server's caches.
	m := store.metrics[7]
	m.UpdatedAt = m.UpdatedAt.Add(time.Hour)
	store.metrics[7] = m

	do(t, s, http.MethodGet, "/api/v1/report/district/7")
	if n := dash.reports.Load(); n != 2 {
		t.Fatalf("report built %d times after the data changed, want 2", n)
	}

	rr := do(t, s, http.MethodGet, "/api/v1/report/district/7")
	if n := dash.reports.Load(); n != 2 {
		t.Fatalf("report built %d times, want 2", n)
	}
	report := decode[map[string]any](t, rr)
	if report["district_name"] != "Lucknow" || report["utilization"] != "90.0%" {
		t.Fatalf("report = %v", report)
	}
}

func TestSyncEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, testStore(), &fakeDashboard{}, nil)
		if rr := do(t, s, http.MethodPost, "/api/v1/sync"); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		pub := &fakePublisher{}
		s := newTestServer(t, testStore(), &fakeDashboard{}, pub)

		rr := do(t, s, http.MethodPost, "/api/v1/sync?state=up")
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
		}
		body := decode[syncAccepted](t, rr)
		if len(pub.msgs) != 1 || pub.msgs[0].StateCode != "UP" || body.RunID != pub.msgs[0].RunID {
			t.Fatalf("published %+v, body %+v", pub.msgs, body)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		s := newTestServer(t, testStore(), &fakeDashboard{}, &fakePublisher{err: amqp.ErrCircuitOpen})
		if rr := do(t, s, http.MethodPost, "/api/v1/sync"); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("bad state", func(t *testing.T) {
		s := newTestServer(t, testStore(), &fakeDashboard{}, &fakePublisher{})
		if rr := do(t, s, http.MethodPost, "/api/v1/sync?state=UTTAR"); rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d", rr.Code)
		}
	})
}

func TestUnknownAPIRouteAndPreflight(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/api/v1/nope")
	if rr.Code != http.StatusNotFound || decode[ErrorBody](t, rr).Detail != "Resource not found" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(t, s, http.MethodOptions, "/api/v1/states")
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("preflight status=%d", rr.Code)
	}
}

func TestDashboardPages(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Uttar Pradesh") {
		t.Fatalf("index status=%d", rr.Code)
	}

	rr = do(t, s, http.MethodGet, "/ui/districts?state_id=1")
	if !strings.Contains(rr.Body.String(), `<option value="7">Lucknow</option>`) {
		t.Fatalf("options = %s", rr.Body)
	}

	rr = do(t, s, http.MethodGet, "/ui/district/7")
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(body, "January 2025") || !strings.Contains(body, "1,30,000") {
		t.Fatalf("report partial status=%d body=%s", rr.Code, body)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "district:selected") {
		t.Error("missing HX-Trigger")
	}

	rr = do(t, s, http.MethodGet, "/ui/detect?lat=26.8&lon=80.9")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Lucknow, Uttar Pradesh") {
		t.Fatalf("detect partial status=%d body=%s", rr.Code, rr.Body)
	}

	rr = do(t, s, http.MethodGet, "/ui/district/99")
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `class="error"`) {
		t.Fatalf("missing district status=%d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, testStore(), &fakeDashboard{}, nil)

	rr := do(t, s, http.MethodGet, "/static/app.js")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "speechSynthesis") {
		t.Fatalf("static status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Error("missing cache header on static asset")
	}
}
