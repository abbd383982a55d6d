// Package store implements the durable local record store on SQLite in WAL
// mode. Every syncable table carries the common envelope (id, user_id,
// created_at, updated_at, synced) plus its payload columns, with indices on
// synced and (user_id, updated_at) so change-log and watermark queries never
// full-scan.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/voicefit/voicefit/internal/record"
)

// walJournalSizeLimit bounds the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// ErrNotFound is returned by Update when the target row does not exist.
// Get reports a missing row as (nil, nil) instead — callers use the nil row
// to distinguish "new record" from "known record".
var ErrNotFound = errors.New("store: record not found")

// Watermark columns accepted by MaxTimestamp.
const (
	ColUpdatedAt = "updated_at"
	ColCreatedAt = "created_at"
)

// tableStmts holds the prepared statements for one table.
type tableStmts struct {
	def           *tableDef
	get           *sql.Stmt
	insert        *sql.Stmt
	upsert        *sql.Stmt
	unsynced      *sql.Stmt
	countUnsynced *sql.Stmt
	markSynced    *sql.Stmt
	maxUpdated    *sql.Stmt
	maxCreated    *sql.Stmt
}

// Store is the SQLite-backed local record store. Safe for concurrent use;
// SQLite serializes writers and WithTx groups writes into one atomic batch.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	tables map[string]*tableStmts
}

// Open opens (creating if needed) the database at dbPath, applies migrations,
// and prepares all per-table statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening record database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// An in-memory database exists per connection; cap the pool at one so
	// every statement sees the same database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		tables: make(map[string]*tableStmts, len(tableDefs)),
	}

	if err := s.prepareAll(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	logger.Info("record database ready", slog.String("path", dbPath))

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// prepareAll prepares the statement set for every registered table.
func (s *Store) prepareAll(ctx context.Context) error {
	for i := range tableDefs {
		def := &tableDefs[i]

		ts := &tableStmts{def: def}

		defs := []struct {
			dest **sql.Stmt
			sql  string
		}{
			{&ts.get, def.getSQL()},
			{&ts.insert, def.insertSQL()},
			{&ts.upsert, def.upsertSQL()},
			{&ts.unsynced, def.unsyncedSQL()},
			{&ts.countUnsynced, def.countUnsyncedSQL()},
			{&ts.markSynced, def.markSyncedSQL()},
			{&ts.maxUpdated, def.maxUpdatedSQL()},
			{&ts.maxCreated, def.maxCreatedSQL()},
		}

		for _, d := range defs {
			stmt, err := s.db.PrepareContext(ctx, d.sql)
			if err != nil {
				return fmt.Errorf("prepare %s: %w", def.name, err)
			}

			*d.dest = stmt
		}

		s.tables[def.name] = ts
	}

	return nil
}

// stmtsFor resolves the statement set for a table name.
func (s *Store) stmtsFor(table string) (*tableStmts, error) {
	ts, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("store: unknown table %q", table)
	}

	return ts, nil
}

// Get retrieves a single row by id. Returns (nil, nil) when no row exists.
func (s *Store) Get(ctx context.Context, table, id string) (record.Row, error) {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return nil, err
	}

	row, err := ts.def.scan(ts.get.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", table, id, err)
	}

	return row, nil
}

// Create persists a new row. The row must carry a caller-provided id;
// inserting an existing id is an error.
func (s *Store) Create(ctx context.Context, table string, r record.Row) error {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return err
	}

	args, err := ts.def.args(r)
	if err != nil {
		return err
	}

	if _, err := ts.insert.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("store: create %s/%s: %w", table, r.Env().ID, err)
	}

	return nil
}

// Update performs an atomic read-modify-write: the mutator receives the
// current row and returns the replacement. Returns ErrNotFound when the id
// does not exist.
func (s *Store) Update(ctx context.Context, table, id string, mut func(record.Row) record.Row) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		row, err := tx.Get(ctx, table, id)
		if err != nil {
			return err
		}

		if row == nil {
			return fmt.Errorf("store: update %s/%s: %w", table, id, ErrNotFound)
		}

		return tx.Put(ctx, table, mut(row))
	})
}

// Unsynced returns all rows whose synced flag is false. Row order within the
// table is unspecified; callers must not depend on it.
func (s *Store) Unsynced(ctx context.Context, table string) ([]record.Row, error) {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return nil, err
	}

	rows, err := ts.unsynced.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: unsynced %s: %w", table, err)
	}
	defer rows.Close()

	return collectRows(ts.def, rows)
}

// CountUnsynced returns the number of rows pending upload.
func (s *Store) CountUnsynced(ctx context.Context, table string) (int, error) {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return 0, err
	}

	var n int
	if err := ts.countUnsynced.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count unsynced %s: %w", table, err)
	}

	return n, nil
}

// MarkSynced flips the synced flag to true without touching any other field.
func (s *Store) MarkSynced(ctx context.Context, table, id string) error {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return err
	}

	if _, err := ts.markSynced.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("store: mark synced %s/%s: %w", table, id, err)
	}

	return nil
}

// MaxTimestamp returns the greatest value of the given watermark column
// (ColUpdatedAt or ColCreatedAt) among the user's rows, or 0 when the table
// holds no rows for that user.
func (s *Store) MaxTimestamp(ctx context.Context, table, userID, column string) (int64, error) {
	ts, err := s.stmtsFor(table)
	if err != nil {
		return 0, err
	}

	var stmt *sql.Stmt

	switch column {
	case ColUpdatedAt:
		stmt = ts.maxUpdated
	case ColCreatedAt:
		stmt = ts.maxCreated
	default:
		return 0, fmt.Errorf("store: unsupported watermark column %q", column)
	}

	var max int64
	if err := stmt.QueryRowContext(ctx, userID).Scan(&max); err != nil {
		return 0, fmt.Errorf("store: max %s for %s: %w", column, table, err)
	}

	return max, nil
}

// collectRows drains a result set through the table's scan function.
func collectRows(def *tableDef, rows *sql.Rows) ([]record.Row, error) {
	var out []record.Row

	for rows.Next() {
		r, err := def.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan %s row: %w", def.name, err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s rows: %w", def.name, err)
	}

	return out, nil
}

// Tx groups writes into one atomic batch. Reads inside the transaction
// observe its pending writes.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// WithTx runs fn inside a single write transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	if err := fn(&Tx{tx: tx, s: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}

	return nil
}

// Get retrieves a row inside the transaction. Returns (nil, nil) when the id
// is unknown.
func (t *Tx) Get(ctx context.Context, table, id string) (record.Row, error) {
	ts, err := t.s.stmtsFor(table)
	if err != nil {
		return nil, err
	}

	stmt := t.tx.StmtContext(ctx, ts.get)

	row, err := ts.def.scan(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: tx get %s/%s: %w", table, id, err)
	}

	return row, nil
}

// Put inserts or fully overwrites a row inside the transaction.
func (t *Tx) Put(ctx context.Context, table string, r record.Row) error {
	ts, err := t.s.stmtsFor(table)
	if err != nil {
		return err
	}

	args, err := ts.def.args(r)
	if err != nil {
		return err
	}

	stmt := t.tx.StmtContext(ctx, ts.upsert)

	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("store: tx put %s/%s: %w", table, r.Env().ID, err)
	}

	return nil
}

// Close closes the underlying database. Prepared statements are finalized by
// the driver when the connection closes.
func (s *Store) Close() error {
	return s.db.Close()
}
