package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// PurgeStaleSnapshots deletes dashboard module snapshots not updated since
// before now minus retention. It returns the number of removed rows.
func PurgeStaleSnapshots(ctx context.Context, db *sql.DB, retention time.Duration, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM module_snapshots
		 WHERE updated_at < $1
	`, now.Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartSnapshotCleaner runs PurgeStaleSnapshots every interval until ctx is done.
func StartSnapshotCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := PurgeStaleSnapshots(ctx, db, retention, time.Now())
				if err != nil {
					log.Error("failed to clean stale module snapshots", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned stale module snapshots", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
