// Package sync implements the offline-first bidirectional synchronization
// engine: per-table upload of locally-mutated rows, watermark-filtered
// download of remote rows, last-write-wins conflict resolution, and the
// background orchestrator that drives it all on a periodic tick.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/voicefit/voicefit/internal/record"
	"github.com/voicefit/voicefit/internal/store"
)

// Remote is the uniform facade over the cloud record store. Satisfied by
// *rest.Client; tests inject fakes. All payloads are wire-shaped JSON
// produced by the codec.
type Remote interface {
	// Insert creates one row. Duplicate ids return an error matching
	// rest.IsDuplicate, which the uploader treats as success.
	Insert(ctx context.Context, table string, body []byte) error

	// UpdateIfOlder overwrites the remote row only when its updated_at is
	// strictly older than updatedBefore (ISO-8601). Matching nothing is
	// success — the remote copy is newer and download reconciles it.
	UpdateIfOlder(ctx context.Context, table, id, updatedBefore string, body []byte) error

	// Select returns the user's rows with watermark column strictly greater
	// than after (ISO-8601), ordered by created_at ascending.
	Select(ctx context.Context, table, userID, column, after string) ([]json.RawMessage, error)
}

// Status is a non-blocking snapshot of engine state.
type Status struct {
	IsSyncing bool
	Unsynced  map[string]int // unsynced row count per table
}

// EngineConfig holds the inputs for NewEngine.
type EngineConfig struct {
	Store           *store.Store
	Remote          Remote
	Clock           record.Clock
	Tables          []string // sync order; defaults to record.Tables()
	WatermarkColumn string   // store.ColUpdatedAt (default) or store.ColCreatedAt
	Logger          *slog.Logger
}

// Engine runs one full sync cycle at a time: uploads for every registered
// table in declared order, then downloads in the same order. Parents sync
// before children because the table order says so — the engine itself does
// not chase foreign keys.
type Engine struct {
	store     *store.Store
	remote    Remote
	clock     record.Clock
	tables    []string
	watermark string
	logger    *slog.Logger
}

// NewEngine creates an Engine. Zero-value config fields get defaults:
// system clock, all registered tables, updated_at watermark.
func NewEngine(cfg *EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = record.SystemClock{}
	}

	tables := cfg.Tables
	if len(tables) == 0 {
		tables = record.Tables()
	}

	watermark := cfg.WatermarkColumn
	if watermark == "" {
		watermark = store.ColUpdatedAt
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:     cfg.Store,
		remote:    cfg.Remote,
		clock:     clock,
		tables:    tables,
		watermark: watermark,
		logger:    logger,
	}
}

// UnsyncedCounts returns the per-table number of rows pending upload.
func (e *Engine) UnsyncedCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(e.tables))

	for _, table := range e.tables {
		n, err := e.store.CountUnsynced(ctx, table)
		if err != nil {
			return nil, err
		}

		counts[table] = n
	}

	return counts, nil
}
