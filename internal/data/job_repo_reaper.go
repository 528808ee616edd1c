package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pagescope/scraper-engine/internal/data/pgxutil"
)

// Minor advisory lock key for the retention sweep.
const advisoryLockReaperDelete int64 = 2

// DeleteJobsOlderThan deletes job rows created before the cutoff, up to limit
// rows per call to keep sweeps short. An advisory lock prevents concurrent
// reaper instances from running the same sweep.
func (r *JobRepo) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
			advisoryLockMajor, advisoryLockReaperDelete).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE created_at < $1
				ORDER BY created_at
				LIMIT $2
			)
		`, cutoff.UTC(), limit)
		if err != nil {
			return fmt.Errorf("delete old jobs: %w", err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}
