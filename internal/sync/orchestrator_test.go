package sync

import (
	"context"
	"encoding/json"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicefit/voicefit/internal/record"
)

// blockingRemote wraps fakeRemote, parking every Select until released.
// Lets tests hold a cycle open at a suspension point.
type blockingRemote struct {
	*fakeRemote

	gate    chan struct{}
	selects atomic.Int32
	calls   atomic.Int32 // total adapter calls, for cancellation assertions
}

func newBlockingRemote() *blockingRemote {
	return &blockingRemote{
		fakeRemote: newFakeRemote(),
		gate:       make(chan struct{}),
	}
}

func (b *blockingRemote) Insert(ctx context.Context, table string, body []byte) error {
	b.calls.Add(1)
	return b.fakeRemote.Insert(ctx, table, body)
}

func (b *blockingRemote) UpdateIfOlder(ctx context.Context, table, id, before string, body []byte) error {
	b.calls.Add(1)
	return b.fakeRemote.UpdateIfOlder(ctx, table, id, before, body)
}

func (b *blockingRemote) Select(ctx context.Context, table, userID, column, after string) ([]json.RawMessage, error) {
	b.calls.Add(1)

	if b.selects.Add(1) == 1 {
		<-b.gate // first select parks until the test releases it
	}

	return b.fakeRemote.Select(ctx, table, userID, column, after)
}

func newTestOrchestrator(t *testing.T, remote Remote, interval time.Duration) *Orchestrator {
	t.Helper()

	st := newTestStore(t)

	engine := NewEngine(&EngineConfig{
		Store:  st,
		Remote: remote,
		Clock:  fixedClock(1000),
		Logger: testLogger(t),
	})

	return NewOrchestrator(engine, interval, testLogger(t))
}

func TestStartIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	o := newTestOrchestrator(t, remote, time.Hour)

	o.Start("u")
	o.Start("u") // no-op

	o.mu.Lock()
	assert.NotNil(t, o.cancel)
	o.mu.Unlock()

	o.Stop()

	o.mu.Lock()
	assert.Nil(t, o.cancel)
	o.mu.Unlock()
}

func TestStopWithoutStart(t *testing.T) {
	o := newTestOrchestrator(t, newFakeRemote(), time.Hour)
	o.Stop() // must not panic or hang
}

func TestOnlyOneCycleAtATime(t *testing.T) {
	remote := newBlockingRemote()
	o := newTestOrchestrator(t, remote, time.Hour)
	ctx := context.Background()

	var wg gosync.WaitGroup

	// First sync parks inside its first download Select.
	wg.Add(1)

	go func() {
		defer wg.Done()
		o.SyncNow(ctx, "u")
	}()

	// Wait until the first cycle reaches the gate.
	require.Eventually(t, func() bool { return remote.selects.Load() >= 1 }, time.Second, time.Millisecond)

	// Concurrent requests are dropped, not queued: no second Select happens.
	o.SyncNow(ctx, "u")
	o.SyncNow(ctx, "u")
	assert.Equal(t, int32(1), remote.selects.Load())

	status, err := o.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsSyncing)

	close(remote.gate)
	wg.Wait()

	status, err = o.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsSyncing)
}

func TestStopDrainsInFlightCycle(t *testing.T) {
	remote := newBlockingRemote()
	o := newTestOrchestrator(t, remote, time.Hour)

	o.Start("u") // immediate cycle parks at the gate

	require.Eventually(t, func() bool { return remote.selects.Load() >= 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})

	go func() {
		o.Stop()
		close(stopped)
	}()

	// Stop must wait for the in-flight cycle.
	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(remote.gate)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the cycle drained")
	}

	// Cancellation cleanliness: no adapter calls after Stop returns.
	settled := remote.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, remote.calls.Load())
}

func TestPeriodicTick(t *testing.T) {
	remote := newFakeRemote()
	o := newTestOrchestrator(t, remote, 10*time.Millisecond)

	o.Start("u")

	// The immediate cycle plus at least one tick-driven cycle.
	require.Eventually(t, func() bool {
		return len(selectCalls(remote)) >= 2*len(record.Tables())
	}, time.Second, time.Millisecond)

	o.Stop()
}

// selectCalls filters the remote call log down to Selects.
func selectCalls(remote *fakeRemote) []string {
	var out []string

	for _, c := range remote.callLog() {
		if c[:6] == "select" {
			out = append(out, c)
		}
	}

	return out
}

func TestSyncNowRunsWhenIdle(t *testing.T) {
	remote := newFakeRemote()
	o := newTestOrchestrator(t, remote, time.Hour)

	o.SyncNow(context.Background(), "u")

	// A full cycle ran: one Select per table.
	assert.Len(t, selectCalls(remote), len(record.Tables()))
}

func TestFullSyncAlwaysExecutes(t *testing.T) {
	remote := newFakeRemote()
	o := newTestOrchestrator(t, remote, time.Hour)
	ctx := context.Background()

	require.NoError(t, o.FullSync(ctx, "u"))
	require.NoError(t, o.FullSync(ctx, "u"))

	assert.Len(t, selectCalls(remote), 2*len(record.Tables()))
}

func TestStatusCounts(t *testing.T) {
	remote := newFakeRemote()
	st := newTestStore(t)

	engine := NewEngine(&EngineConfig{
		Store:  st,
		Remote: remote,
		Clock:  fixedClock(1000),
		Logger: testLogger(t),
	})

	o := NewOrchestrator(engine, time.Hour, testLogger(t))
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, record.TableMessages, &record.Message{
		Envelope: record.Envelope{ID: "m1", UserID: "u", CreatedAt: 1, UpdatedAt: 1},
		Text:     "hi", Sender: record.SenderUser, MessageType: "text",
	}))

	status, err := o.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsSyncing)
	assert.Equal(t, 1, status.Unsynced[record.TableMessages])
	assert.Zero(t, status.Unsynced[record.TableRuns])

	require.NoError(t, o.FullSync(ctx, "u"))

	status, err = o.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Unsynced[record.TableMessages])
}
