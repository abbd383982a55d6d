package sync

import (
	"context"
	"log/slog"

	"github.com/voicefit/voicefit/internal/codec"
	"github.com/voicefit/voicefit/internal/rest"
)

// uploadTable pushes every unsynced row of one table to the remote store.
//
// Delivery is at-least-once: if marking a row synced fails after the remote
// accepted it, the next cycle re-sends and the duplicate-id response is
// treated as success, so the client-generated id guarantees exactly-one
// remote effect. A single failing row never blocks the rest of the table.
func (e *Engine) uploadTable(ctx context.Context, logger *slog.Logger, userID, table string) error {
	rows, err := e.store.Unsynced(ctx, table)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	logger.Debug("uploading unsynced rows",
		slog.String("table", table),
		slog.Int("count", len(rows)),
	)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		env := row.Env()

		body, err := codec.Encode(row)
		if err != nil {
			// Poison row: skipped every cycle until repaired locally.
			logger.Error("row encoding failed, skipping",
				slog.String("table", table),
				slog.String("op", "encode"),
				slog.String("id", env.ID),
				slog.String("kind", "codec"),
				slog.String("error", err.Error()),
			)

			continue
		}

		if err := e.pushRow(ctx, logger, table, env.ID, codec.ISOMillis(env.UpdatedAt), body); err != nil {
			if rest.IsAuth(err) {
				return err
			}

			continue
		}

		// Flip synced without touching any other field. A failure here is
		// benign: the row re-uploads next cycle and dedupes remotely.
		if err := e.store.MarkSynced(ctx, table, env.ID); err != nil {
			logger.Error("could not mark row synced",
				slog.String("table", table),
				slog.String("op", "mark_synced"),
				slog.String("id", env.ID),
				slog.String("kind", "local_store"),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// pushRow delivers one encoded row: insert first, and on duplicate an
// LWW-guarded update so local mutations to previously-synced rows reach the
// remote without clobbering a newer remote edit. Returns nil when the row is
// settled remotely (inserted, updated, or remote already newer).
func (e *Engine) pushRow(
	ctx context.Context, logger *slog.Logger, table, id, updatedISO string, body []byte,
) error {
	err := e.remote.Insert(ctx, table, body)
	if err == nil {
		return nil
	}

	if rest.IsDuplicate(err) {
		uerr := e.remote.UpdateIfOlder(ctx, table, id, updatedISO, body)
		if uerr == nil {
			return nil
		}

		err = uerr
	}

	switch {
	case rest.IsAuth(err):
		return err
	case rest.IsSchema(err):
		logger.Error("remote rejected row, skipping",
			slog.String("table", table),
			slog.String("op", "upload"),
			slog.String("id", id),
			slog.String("kind", "schema"),
			slog.String("error", err.Error()),
		)
	default:
		logger.Warn("transient upload failure, will retry next cycle",
			slog.String("table", table),
			slog.String("op", "upload"),
			slog.String("id", id),
			slog.String("kind", "network"),
			slog.String("error", err.Error()),
		)
	}

	return err
}
