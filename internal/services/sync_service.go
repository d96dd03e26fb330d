package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mgnrega/internal/core"
	"mgnrega/internal/datagov"
	"mgnrega/internal/log"
	"mgnrega/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SnapshotDataType labels snapshots written by the sync.
const SnapshotDataType = "monthly_metrics"

// Fetcher reads raw records from the upstream API.
type Fetcher interface {
	FetchAll(ctx context.Context, q datagov.Query) ([]datagov.Record, error)
}

// SyncStore is the repository surface the sync writes through.
type SyncStore interface {
	GetStateByCode(ctx context.Context, code string) (core.State, error)
	ListStates(ctx context.Context, skip, limit int) ([]core.State, error)
	UpsertDistrict(ctx context.Context, d core.District) (core.District, error)
	UpsertMetric(ctx context.Context, m core.MonthlyMetric) (int64, error)
	MarkLatest(ctx context.Context, districtID int64) error
	CreateSnapshot(ctx context.Context, runID string, stateID *int64, dataType string) (int64, error)
	FinishSnapshot(ctx context.Context, id int64, rows int, runErr error) error
}

type SyncConfig struct {
	// Interval between scheduled full syncs (default: 24h)
	Interval time.Duration

	// Concurrency is how many states sync at once (default: 2)
	Concurrency int

	// PageSize is the number of records per upstream request
	PageSize int
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:    24 * time.Hour,
		Concurrency: 2,
		PageSize:    datagov.DefaultPageSize,
	}
}

// StateResult is the outcome of syncing one state.
type StateResult struct {
	StateCode string
	Records   int
	Skipped   int
	Districts int
	Err       error
}

// SyncResult is the outcome of one run over one or more states.
type SyncResult struct {
	RunID  string
	States []StateResult
}

// Failed returns the states whose sync returned an error.
func (r SyncResult) Failed() []StateResult {
	var out []StateResult
	for _, s := range r.States {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// SyncService pulls figures from data.gov.in into storage, on demand or on a
// schedule.
type SyncService struct {
	store   SyncStore
	fetcher Fetcher
	config  SyncConfig
	logger  *log.Logger
	events  *log.StructuredLogger

	// OnSynced runs after any run that wrote rows, e.g. to purge caches.
	OnSynced func()

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncService(store SyncStore, fetcher Fetcher, config SyncConfig, logger *log.Logger) *SyncService {
	def := DefaultSyncConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Concurrency < 1 {
		config.Concurrency = def.Concurrency
	}
	if config.PageSize < 1 {
		config.PageSize = def.PageSize
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncService{
		store:   store,
		fetcher: fetcher,
		config:  config,
		logger:  logger.WithComponent(log.ComponentSync),
		events:  log.NewStructuredLogger(logger),
	}
}

// NewRunID returns a fresh identifier for a sync run.
func NewRunID() string {
	return uuid.NewString()
}

// SyncAll syncs every stored state, Concurrency at a time. A failing state
// does not stop the others; their errors are joined in the returned error.
func (s *SyncService) SyncAll(ctx context.Context, runID string) (SyncResult, error) {
	states, err := s.store.ListStates(ctx, 0, 1000)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list states: %w", err)
	}
	codes := make([]string, len(states))
	for i, st := range states {
		codes[i] = st.Code
	}
	return s.SyncStates(ctx, runID, codes...)
}

// SyncStates syncs the given states under one run ID.
func (s *SyncService) SyncStates(ctx context.Context, runID string, codes ...string) (SyncResult, error) {
	if runID == "" {
		runID = NewRunID()
	}
	result := SyncResult{RunID: runID, States: make([]StateResult, len(codes))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			res, err := s.SyncState(gctx, runID, code)
			res.Err = err
			result.States[i] = res
			// Only cancellation aborts the run; other failures are per state.
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	var errs []error
	wrote := false
	for _, st := range result.States {
		if st.Err != nil {
			errs = append(errs, fmt.Errorf("state %s: %w", st.StateCode, st.Err))
		}
		if st.Records > 0 {
			wrote = true
		}
	}
	if wrote && s.OnSynced != nil {
		s.OnSynced()
	}
	return result, errors.Join(errs...)
}

// SyncState fetches all records of one state, stores them and marks each
// touched district's newest month as latest. Records that fail to decode are
// skipped and counted. A data snapshot records the run.
func (s *SyncService) SyncState(ctx context.Context, runID, code string) (StateResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	res := StateResult{StateCode: code}

	state, err := s.store.GetStateByCode(ctx, code)
	if err != nil {
		return res, err
	}

	snapID, err := s.store.CreateSnapshot(ctx, runID, &state.ID, SnapshotDataType)
	if err != nil {
		return res, err
	}

	res, err = s.ingest(ctx, state)
	res.StateCode = code
	if ferr := s.store.FinishSnapshot(context.WithoutCancel(ctx), snapID, res.Records, err); ferr != nil {
		s.logger.WarnContext(ctx, "Failed to close snapshot", "snapshot_id", snapID, log.FieldError, ferr)
	}
	if err != nil {
		s.events.LogError(ctx, "State sync failed", err, log.ComponentSync, log.OpSync,
			log.NewFields().WithSync(runID, code, res.Records, res.Skipped))
		return res, err
	}

	s.events.LogSyncCompleted(ctx, runID, code, res.Records, res.Skipped)
	return res, nil
}

func (s *SyncService) ingest(ctx context.Context, state core.State) (StateResult, error) {
	var res StateResult

	records, err := s.fetcher.FetchAll(ctx, datagov.Query{StateName: state.Name, Limit: s.config.PageSize})
	if err != nil {
		return res, fmt.Errorf("fetch records: %w", err)
	}

	districts := map[string]core.District{}
	for _, rec := range records {
		row, err := rec.Decode()
		if err != nil {
			res.Skipped++
			s.logger.DebugContext(ctx, "Skipping record", log.FieldState, state.Code, log.FieldError, err)
			continue
		}

		name := DistrictName(row.DistrictName)
		d, ok := districts[name]
		if !ok {
			d, err = s.store.UpsertDistrict(ctx, core.District{Name: name, Code: row.DistrictCode, StateID: state.ID})
			if err != nil {
				return res, err
			}
			districts[name] = d
		}

		m := row.Metric
		m.DistrictID, m.StateID = d.ID, state.ID
		m.SourceURL = "https://data.gov.in"
		if _, err := s.store.UpsertMetric(ctx, m); err != nil {
			return res, err
		}
		res.Records++
	}

	for _, d := range districts {
		if err := s.store.MarkLatest(ctx, d.ID); err != nil {
			return res, err
		}
	}
	res.Districts = len(districts)
	return res, nil
}

// DistrictName normalises upstream district names ("NORTH 24 PARGANAS") to
// the stored form ("North 24 Parganas").
func DistrictName(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Start runs SyncAll every Interval until Stop or ctx is done. Returns an
// error if already running.
func (s *SyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sync scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Sync scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *SyncService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sync scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *SyncService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SyncService) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx, NewRunID()); err != nil {
				s.logger.ErrorContext(ctx, "Scheduled sync finished with errors", log.FieldError, err)
			}
		}
	}
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)
