package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Orchestrator owns the periodic sync schedule for one logged-in user. It is
// an explicit handle created at login and stopped at logout — no process
// globals. A weighted semaphore of capacity one guards the full-sync
// critical section: at any instant at most one cycle executes. Ticks and
// SyncNow requests arriving while one is in flight are dropped, not queued;
// FullSync instead waits for the running cycle to finish.
type Orchestrator struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger

	sem     *semaphore.Weighted
	syncing atomic.Bool

	mu     gosync.Mutex // guards cancel/done lifecycle
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator creates an Orchestrator ticking at interval.
func NewOrchestrator(engine *Engine, interval time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		engine:   engine,
		interval: interval,
		logger:   logger,
		sem:      semaphore.NewWeighted(1),
	}
}

// Start begins background sync for userID: one immediate full sync, then one
// per tick. Idempotent — calling Start while running is a no-op.
func (o *Orchestrator) Start(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.logger.Debug("background sync already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancel = cancel
	o.done = done

	go o.run(ctx, userID, done)

	o.logger.Info("background sync started",
		slog.String("user_id", userID),
		slog.Duration("interval", o.interval),
	)
}

// run is the timer loop. The immediate sync and every tick go through
// trySync, so a long cycle simply absorbs the ticks that fire during it.
func (o *Orchestrator) run(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	o.trySync(ctx, userID)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.trySync(ctx, userID)
		}
	}
}

// trySync runs one serialized full sync, reporting false when a cycle was
// already in flight. Cancellation is cooperative: the engine checks the
// context between rows and tables, so in-flight requests finish rather than
// being cut off mid-write.
func (o *Orchestrator) trySync(ctx context.Context, userID string) bool {
	if !o.sem.TryAcquire(1) {
		return false
	}
	defer o.sem.Release(1)

	o.syncing.Store(true)
	defer o.syncing.Store(false)

	if err := o.engine.FullSync(ctx, userID); err != nil && ctx.Err() == nil {
		o.logger.Error("sync cycle failed", slog.String("error", err.Error()))
	}

	return true
}

// Stop cancels the timer and waits for any in-flight cycle to drain. Safe to
// call when not running.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	// An out-of-band SyncNow/FullSync may still hold the critical section;
	// draining it guarantees no further remote calls after Stop returns.
	_ = o.sem.Acquire(context.Background(), 1)
	o.sem.Release(1)

	o.logger.Info("background sync stopped")
}

// SyncNow requests an out-of-band full sync. If a cycle is already in
// flight it returns immediately — the running cycle satisfies the request.
// Otherwise it runs a full cycle and returns when it completes.
func (o *Orchestrator) SyncNow(ctx context.Context, userID string) {
	if !o.trySync(ctx, userID) {
		o.logger.Debug("sync already in progress, request dropped")
	}
}

// FullSync always executes a cycle, waiting for the critical section if a
// cycle is in flight. Exposed for tests and one-shot CLI use; the engine's
// table-level error containment still applies.
func (o *Orchestrator) FullSync(ctx context.Context, userID string) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)

	o.syncing.Store(true)
	defer o.syncing.Store(false)

	return o.engine.FullSync(ctx, userID)
}

// Status returns a non-blocking snapshot: whether a cycle is executing and
// the unsynced row count per table.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	counts, err := o.engine.UnsyncedCounts(ctx)
	if err != nil {
		return Status{IsSyncing: o.syncing.Load()}, err
	}

	return Status{
		IsSyncing: o.syncing.Load(),
		Unsynced:  counts,
	}, nil
}
