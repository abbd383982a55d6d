package sync

import (
	"context"
	"log/slog"

	"github.com/voicefit/voicefit/internal/codec"
	"github.com/voicefit/voicefit/internal/record"
	"github.com/voicefit/voicefit/internal/store"
)

// downloadTable pulls remote rows newer than the local high-watermark and
// applies them in a single write transaction, so a crash mid-apply leaves no
// partial state and re-applying the same response is idempotent.
func (e *Engine) downloadTable(ctx context.Context, logger *slog.Logger, userID, table string) error {
	watermark, err := e.store.MaxTimestamp(ctx, table, userID, e.watermark)
	if err != nil {
		return err
	}

	raws, err := e.remote.Select(ctx, table, userID, e.watermark, codec.ISOMillis(watermark))
	if err != nil {
		return err
	}

	if len(raws) == 0 {
		return nil
	}

	logger.Debug("applying remote rows",
		slog.String("table", table),
		slog.Int("count", len(raws)),
		slog.Int64("watermark", watermark),
	)

	rows := make([]record.Row, 0, len(raws))

	for _, raw := range raws {
		row, decErr := codec.Decode(table, raw)
		if decErr != nil {
			logger.Error("remote row decoding failed, skipping",
				slog.String("table", table),
				slog.String("op", "decode"),
				slog.String("kind", "codec"),
				slog.String("error", decErr.Error()),
			)

			continue
		}

		rows = append(rows, row)
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, remoteRow := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			localRow, err := tx.Get(ctx, table, remoteRow.Env().ID)
			if err != nil {
				return err
			}

			merged, decision := Resolve(localRow, remoteRow)

			switch decision {
			case InsertNew, TakeRemote:
				// Authoritative remote data: mark synced so it is never
				// re-uploaded.
				merged.Env().Synced = true

				if err := tx.Put(ctx, table, merged); err != nil {
					return err
				}
			case KeepLocal:
				// Local row is at least as new; its pending changes upload
				// on the next cycle.
			}
		}

		return nil
	})
}
