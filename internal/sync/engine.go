package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voicefit/voicefit/internal/rest"
)

// FullSync runs one complete cycle: uploads for every registered table in
// declared order, then downloads in the same order. Uploads run first so the
// user's freshest local writes are durable remotely before remote state can
// overwrite them locally.
//
// Errors are contained at the table boundary — one failing table never
// prevents the others from running. Two exceptions abort the whole cycle:
// auth failures (the session needs re-authentication; the timer keeps
// ticking) and context cancellation.
func (e *Engine) FullSync(ctx context.Context, userID string) error {
	start := time.Now()
	logger := e.logger.With(
		slog.String("cycle_id", uuid.NewString()),
		slog.String("user_id", userID),
	)

	logger.Info("sync cycle starting", slog.Int("tables", len(e.tables)))

	phases := []struct {
		op  string
		fn  func(context.Context, *slog.Logger, string, string) error
	}{
		{"upload", e.uploadTable},
		{"download", e.downloadTable},
	}

	for _, phase := range phases {
		for _, table := range e.tables {
			if err := ctx.Err(); err != nil {
				logger.Info("sync cycle canceled", slog.String("op", phase.op))
				return err
			}

			err := phase.fn(ctx, logger, userID, table)
			if err == nil {
				continue
			}

			if ctx.Err() != nil {
				logger.Info("sync cycle canceled",
					slog.String("table", table),
					slog.String("op", phase.op),
				)

				return ctx.Err()
			}

			if rest.IsAuth(err) {
				logger.Warn("auth error, aborting sync cycle",
					slog.String("table", table),
					slog.String("op", phase.op),
					slog.String("kind", "auth"),
					slog.String("error", err.Error()),
				)

				return err
			}

			// Table-level failure (local I/O, transport): next table still runs.
			logger.Error("table sync failed",
				slog.String("table", table),
				slog.String("op", phase.op),
				slog.String("error", err.Error()),
			)
		}
	}

	logger.Info("sync cycle complete", slog.Duration("duration", time.Since(start)))

	return nil
}
