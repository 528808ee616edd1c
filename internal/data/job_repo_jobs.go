package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pagescope/scraper-engine/internal/data/pgxutil"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// SQL used by ReserveNext to atomically claim the oldest queued job.
const reserveNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'started',
    started_at = COALESCE(j.started_at, $1),
    lease_expires_at = $2,
    updated_at = $3
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + prefixedJobColumns

const prefixedJobColumns = `
  j.id, j.type, j.status, j.payload, j.created_at, j.started_at,
  j.completed_at, j.last_error, j.lease_expires_at, j.updated_at`

// Create inserts a new queued job and notifies waiting workers.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(model.ScrapeJobPayload{SourceURL: req.SourceURL})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var job *model.Job
	txErr := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, qerr := tx.Query(ctx, `
      INSERT INTO jobs(type, status, payload)
      VALUES ($1, 'queued', $2)
      RETURNING `+jobColumns, req.Type, payload)
		if qerr != nil {
			return fmt.Errorf("insert job: %w", qerr)
		}
		j, cerr := collectJobFromRows(rows)
		rows.Close()
		if cerr != nil {
			return fmt.Errorf("collect job: %w", cerr)
		}

		if _, nerr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannel, j.ID); nerr != nil {
			return fmt.Errorf("send job notification: %w", nerr)
		}

		job = j
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return job, nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	var (
		job                                    model.Job
		payload                                []byte
		lastError                              sql.NullString
		startedAt, completedAt, leaseExpiresAt sql.NullTime
	)

	if err := scanner.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&payload,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&lastError,
		&leaseExpiresAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Payload = append(json.RawMessage(nil), payload...)
	job.LastError = cloneNullableString(lastError)
	job.StartedAt = cloneNullableTime(startedAt)
	job.CompletedAt = cloneNullableTime(completedAt)
	job.LeaseExpiresAt = cloneNullableTime(leaseExpiresAt)
	return &job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Advisory lock keys for RequeueExpired so concurrent workers do not race the
// same sweep.
const (
	advisoryLockMajor         int64 = 2001
	advisoryLockRequeueExpire int64 = 1
)

// RequeueExpired returns lease-expired started jobs to the queue and reports
// how many rows were moved.
func (r *JobRepo) RequeueExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
			advisoryLockMajor, advisoryLockRequeueExpire).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		currentTime := r.timeProvider.Now().UTC()
		res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = 'queued', lease_expires_at = NULL, updated_at = $1
          WHERE id IN (
            SELECT id FROM jobs
            WHERE status = 'started'
              AND lease_expires_at IS NOT NULL
              AND lease_expires_at < $1
            ORDER BY lease_expires_at
            LIMIT $2
          )
        `, currentTime, limit)
		if err != nil {
			return fmt.Errorf("requeue expired: %w", err)
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

// ReserveNext claims the oldest queued job, flipping it to started with a
// lease. Terminal and started rows are never candidates.
func (r *JobRepo) ReserveNext(ctx context.Context, leaseSeconds int) (*model.Job, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		currentTime := r.timeProvider.Now().UTC()
		leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

		rows, qerr := tx.Query(ctx, reserveNextUpdateSQL, currentTime, leaseExpiresAt, currentTime)
		if qerr != nil {
			return fmt.Errorf("reserve job: %w", qerr)
		}
		defer rows.Close()

		j, cerr := collectJobFromRows(rows)
		if errors.Is(cerr, pgx.ErrNoRows) {
			return model.ErrNoJobsAvailable
		}
		if cerr != nil {
			return fmt.Errorf("reserve job: %w", cerr)
		}
		job = j
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on a started job. Returns false when the job
// is no longer in started state.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiration := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'started'
	`, jobID, leaseExpiration, currentTime)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete marks a started job as finished. The status guard makes a second
// terminal transition a no-op, reported via the bool.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'finished',
		    completed_at = $2,
		    updated_at = $2,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'started'
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail marks a started job as failed with the given error message.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    last_error = $2,
		    completed_at = $3,
		    updated_at = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'started'
	`, id, errMsg, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Stats returns counts of jobs in each state.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')   AS queued,
    count(*) FILTER (WHERE status = 'started')  AS started,
    count(*) FILTER (WHERE status = 'finished') AS finished,
    count(*) FILTER (WHERE status = 'failed')   AS failed
  FROM jobs
  `).Scan(&s.Queued, &s.Started, &s.Finished, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a new-job notification arrives or the
// context ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	quoted := pgx.Identifier{notifyChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, execErr)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "UNLISTEN "+quoted)
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		job, cerr = collectJobFromRows(rows)
		return cerr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
