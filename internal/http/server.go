package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/cache"
	"mgnrega/internal/core"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/middleware/ratelimit"
	"mgnrega/internal/middleware/security"
	"mgnrega/internal/middleware/trace"
	"mgnrega/internal/services"
	"mgnrega/internal/storage"
	appweb "mgnrega/web"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Store is the repository surface the API reads directly.
type Store interface {
	Ping(ctx context.Context) error
	ListStates(ctx context.Context, skip, limit int) ([]core.State, error)
	GetState(ctx context.Context, id int64) (core.State, error)
	ListDistricts(ctx context.Context, stateID int64, skip, limit int) ([]core.District, error)
	LatestMetric(ctx context.Context, districtID int64, f storage.MetricFilter) (core.MonthlyMetric, error)
	// MetricsVersion changes whenever the district's metrics are rewritten.
	MetricsVersion(ctx context.Context, districtID int64) (string, error)
}

type Dashboard interface {
	DistrictReport(ctx context.Context, districtID int64, f storage.MetricFilter) (services.Report, error)
	History(ctx context.Context, districtID int64, years int) ([]services.HistoryEntry, error)
	Detect(ctx context.Context, lat, lon float64) (core.Detection, error)
	Compare(ctx context.Context, districtIDs []int64, f storage.MetricFilter) ([]core.Comparison, error)
}

// SyncPublisher queues sync requests. A nil publisher disables POST /api/v1/sync.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error
}

type Config struct {
	Addr           string
	ReportCacheTTL time.Duration
	ReportCacheMax int
	RateLimit      int // requests per client per minute
	Logger         *log.Logger
	Caches         *cache.Manager
}

type Server struct {
	http.Server
	store     Store
	dashboard Dashboard
	publisher SyncPublisher
	templates *template.Template
	logger    *log.Logger
	formatter *format.Formatter

	reportCache *cache.LRUCache[services.Report]
	caches      *cache.Manager
	ownsCaches  bool

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg Config, store Store, dashboard Dashboard, publisher SyncPublisher) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.ReportCacheTTL <= 0 {
		cfg.ReportCacheTTL = 10 * time.Minute
	}
	if cfg.ReportCacheMax <= 0 {
		cfg.ReportCacheMax = 500
	}
	logger := cfg.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:       store,
		dashboard:   dashboard,
		publisher:   publisher,
		logger:      logger,
		formatter:   format.Default,
		reportCache: cache.NewLRUCache[services.Report](cfg.ReportCacheMax, cfg.ReportCacheTTL),
		caches:      cfg.Caches,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{Requests: cfg.RateLimit}),
		detector:    security.NewDetector(),
		started:     time.Now(),
	}
	if s.caches == nil {
		s.caches = cache.NewManager(cfg.Logger)
		s.ownsCaches = true
	}
	s.caches.Register(s.reportCache)
	s.caches.StartCleanup(10 * time.Minute)
	s.tracer = trace.NewMiddleware(cfg.Logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, security.CORS(security.NoStore(h)))
	}
	api("GET /api/v1/health", s.handleAPIHealth)
	api("GET /api/v1/states", s.handleListStates)
	api("GET /api/v1/districts", s.handleListDistricts)
	api("GET /api/v1/districts/detect-by-location", s.handleDetect)
	api("GET /api/v1/metrics/district/{id}", s.handleDistrictMetrics)
	api("GET /api/v1/metrics/district/{id}/history", s.handleDistrictHistory)
	api("GET /api/v1/metrics/compare", s.handleCompare)
	api("GET /api/v1/report/district/{id}", s.handleDistrictReport)
	api("POST /api/v1/sync", s.handleSync)
	api("OPTIONS /api/v1/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux.Handle("/api/", security.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found")
	})))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/districts", s.handleDistrictOptions)
	mux.HandleFunc("GET /ui/district/{id}", s.handleDistrictPartial)
	mux.HandleFunc("GET /ui/detect", s.handleDetectPartial)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.ownsCaches {
			s.caches.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
