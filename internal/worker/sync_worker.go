package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mgnrega/internal/amqp"
	"mgnrega/internal/format"
	"mgnrega/internal/log"
	"mgnrega/internal/services"
)

// Syncer is the part of the sync service the worker drives.
type Syncer interface {
	SyncAll(ctx context.Context, runID string) (services.SyncResult, error)
	SyncStates(ctx context.Context, runID string, codes ...string) (services.SyncResult, error)
}

// Consumer delivers sync requests from the queue.
type Consumer interface {
	ConsumeSyncRequests(ctx context.Context, handler amqp.Handler) error
}

type fullSync struct {
	ctx   context.Context
	runID string
}

// SyncWorker turns queued sync requests into data.gov.in syncs. Requests for
// one state run immediately; full-sync requests are coalesced so a burst of
// them causes one run, carrying the last request's run ID.
type SyncWorker struct {
	syncer   Syncer
	logger   *log.Logger
	fullSync func(fullSync)

	// inflight counts full-sync requests not yet covered by a finished run.
	inflight sync.WaitGroup
	mu       sync.Mutex
	pending  int

	// abort cancels runs still going when Shutdown gives up waiting.
	abort       context.Context
	abortCancel context.CancelFunc
}

// FullSyncTimeout bounds one coalesced full sync.
const FullSyncTimeout = time.Hour

func NewSyncWorker(syncer Syncer, scheduler format.Scheduler, debounce time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if scheduler == nil {
		scheduler = format.RealScheduler{}
	}
	w := &SyncWorker{
		syncer: syncer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
	w.abort, w.abortCancel = context.WithCancel(context.Background())
	w.fullSync = format.Debounce(scheduler, debounce, w.runFullSync)
	return w
}

// HandleSyncRequest processes one message. An error leads to a requeue.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	if msg.IsFullSync() {
		w.logger.InfoContext(ctx, "Scheduling full sync", log.FieldRunID, msg.RunID)
		w.mu.Lock()
		w.pending++
		w.inflight.Add(1)
		w.mu.Unlock()
		w.fullSync(fullSync{ctx: ctx, runID: msg.RunID})
		return nil
	}

	res, err := w.syncer.SyncStates(ctx, msg.RunID, msg.StateCode)
	if err != nil {
		return fmt.Errorf("sync state %s: %w", msg.StateCode, err)
	}
	for _, st := range res.States {
		w.logger.InfoContext(ctx, "State synced", log.NewFields().
			WithSync(res.RunID, st.StateCode, st.Records, st.Skipped).ToSlice()...)
	}
	return nil
}

// runFullSync runs once per quiet period and covers every request counted
// before it started, including superseded ones. The request was already
// acknowledged, so the run outlives the consumer's context; only
// FullSyncTimeout or an expired Shutdown stops it.
func (w *SyncWorker) runFullSync(req fullSync) {
	w.mu.Lock()
	covered := w.pending
	w.pending = 0
	w.mu.Unlock()
	defer func() {
		for range covered {
			w.inflight.Done()
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.ctx), FullSyncTimeout)
	defer cancel()
	stop := context.AfterFunc(w.abort, cancel)
	defer stop()

	res, err := w.syncer.SyncAll(ctx, req.runID)
	if err != nil {
		w.logger.ErrorContext(ctx, "Full sync finished with errors",
			log.FieldRunID, req.runID,
			"failed_states", len(res.Failed()),
			log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Full sync completed",
		log.FieldRunID, req.runID,
		"states", len(res.States))
}

// Shutdown waits for scheduled full syncs to finish. When ctx ends first the
// remaining runs are cancelled and ctx's error is returned.
func (w *SyncWorker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.abortCancel()
		w.logger.WarnContext(ctx, "Pending full syncs cancelled at shutdown")
		return ctx.Err()
	}
}

// Wait blocks until every scheduled full sync has run.
func (w *SyncWorker) Wait() {
	w.inflight.Wait()
}

// Run consumes sync requests until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Sync worker started")
	err := consumer.ConsumeSyncRequests(ctx, w.HandleSyncRequest)
	w.logger.InfoContext(ctx, "Sync worker stopped", log.FieldError, err)
	return err
}
