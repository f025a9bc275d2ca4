package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

const reportColumns = `
	id, share_id, user_id,
	input_address, input_attributes, input_date_start, input_date_end,
	discount_policy, cache_key,
	status, worker_claimed_at, worker_claim_token, worker_heartbeat_at, worker_attempts,
	result_summary, result_calendar, result_meta, error_message,
	created_at, updated_at
`

// CreateReport inserts a new report row. The caller decides the initial
// status: queued rows enter the work queue, ready rows carry a cached
// outcome and never touch the worker fields.
func (s *Store) CreateReport(ctx context.Context, tx store.DBTransaction, r *store.Report) error {
	query := `
		INSERT INTO reports (
			id, share_id, user_id,
			input_address, input_attributes, input_date_start, input_date_end,
			discount_policy, cache_key,
			status, result_summary, result_calendar, result_meta,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`

	attrsJson, err := json.Marshal(r.Attributes)
	if err != nil {
		return err
	}
	policyJson, err := json.Marshal(r.DiscountPolicy)
	if err != nil {
		return err
	}

	executor := s.getExecutor(tx)
	_, err = executor.ExecContext(ctx, query,
		r.ID,
		r.ShareID,
		r.UserID,
		r.Address,
		attrsJson,
		r.DateStart,
		r.DateEnd,
		policyJson,
		r.CacheKey,
		r.Status,
		nullableRaw(r.Summary),
		nullableRaw(r.Calendar),
		nullableRaw(r.Meta),
		r.CreatedAt,
	)
	return err
}

func (s *Store) GetReportByID(ctx context.Context, id uuid.UUID) (*store.Report, error) {
	query := fmt.Sprintf("SELECT %s FROM reports WHERE id = $1", reportColumns)
	return scanReport(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) GetReportByShareID(ctx context.Context, shareID string) (*store.Report, error) {
	query := fmt.Sprintf("SELECT %s FROM reports WHERE share_id = $1", reportColumns)
	return scanReport(s.db.QueryRowContext(ctx, query, shareID))
}

// Claim hands the oldest claimable report to workerToken, atomically.
// A report is claimable when it is queued, or when it is running but
// its heartbeat is older than staleAfter (the previous claimant is
// presumed dead). SELECT ... FOR UPDATE SKIP LOCKED ensures concurrent
// claimants never hand out the same row twice: a locked row is skipped,
// not waited on, so with one queued row and N simultaneous callers
// exactly one wins and the rest return empty. That single-winner
// property is delegated to the database's row locks; the sqlmock tests
// here pin the statement shape only. Returns nil, nil when nothing is
// claimable.
func (s *Store) Claim(ctx context.Context, workerToken uuid.UUID, staleAfter time.Duration) (*store.Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM reports
		WHERE status = 'queued'
		   OR (status = 'running' AND worker_heartbeat_at < NOW() - ($1 * INTERVAL '1 second'))
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, reportColumns)

	r, err := scanReport(tx.QueryRowContext(ctx, selectQuery, staleAfter.Seconds()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim query failed: %w", err)
	}

	updateQuery := `
		UPDATE reports
		SET status = 'running',
		    worker_claimed_at = NOW(),
		    worker_heartbeat_at = NOW(),
		    worker_claim_token = $1,
		    worker_attempts = worker_attempts + 1,
		    updated_at = NOW()
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, updateQuery, workerToken, r.ID); err != nil {
		return nil, fmt.Errorf("claim update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	now := time.Now()
	r.Status = store.StatusRunning
	r.ClaimedAt = &now
	r.HeartbeatAt = &now
	r.ClaimToken = &workerToken
	r.Attempts++

	return r, nil
}

// Heartbeat renews the claim held by workerToken. The conditional
// update only matches while the token still owns a running row, so a
// false return tells the caller its claim was reassigned.
func (s *Store) Heartbeat(ctx context.Context, reportID, workerToken uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET worker_heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND worker_claim_token = $2 AND status = 'running'
	`, reportID, workerToken)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Complete records a successful outcome, guarded by the claim token.
func (s *Store) Complete(ctx context.Context, reportID, workerToken uuid.UUID, summary, calendar, meta json.RawMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET status = 'ready',
		    result_summary = $3,
		    result_calendar = $4,
		    result_meta = $5,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND worker_claim_token = $2 AND status = 'running'
	`, reportID, workerToken, nullableRaw(summary), nullableRaw(calendar), nullableRaw(meta))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Fail records a terminal failure, guarded by the claim token.
func (s *Store) Fail(ctx context.Context, reportID, workerToken uuid.UUID, message string, meta json.RawMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET status = 'error',
		    error_message = $3,
		    result_meta = $4,
		    updated_at = NOW()
		WHERE id = $1 AND worker_claim_token = $2 AND status = 'running'
	`, reportID, workerToken, message, nullableRaw(meta))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateReportAttributes replaces the report's attribute bag, guarded
// by the claim token like Complete and Fail. Used by url-mode runs to
// merge scraped listing details back into the report; a superseded worker
// must not overwrite attributes another claimant now owns.
func (s *Store) UpdateReportAttributes(ctx context.Context, reportID, workerToken uuid.UUID, attrs api.ListingAttributes) (bool, error) {
	attrsJson, err := json.Marshal(attrs)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET input_attributes = $3, updated_at = NOW()
		WHERE id = $1 AND worker_claim_token = $2 AND status = 'running'
	`, reportID, workerToken, attrsJson)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountByStatus reports how many reports sit in a given status.
func (s *Store) CountByStatus(ctx context.Context, status store.ReportStatus) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports WHERE status = $1", status).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*store.Report, error) {
	var (
		r          store.Report
		attrsJson  []byte
		policyJson []byte
		summary    []byte
		calendar   []byte
		meta       []byte
	)

	err := row.Scan(
		&r.ID, &r.ShareID, &r.UserID,
		&r.Address, &attrsJson, &r.DateStart, &r.DateEnd,
		&policyJson, &r.CacheKey,
		&r.Status, &r.ClaimedAt, &r.ClaimToken, &r.HeartbeatAt, &r.Attempts,
		&summary, &calendar, &meta, &r.ErrorMessage,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(attrsJson, &r.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode report attributes: %w", err)
	}
	if err := json.Unmarshal(policyJson, &r.DiscountPolicy); err != nil {
		return nil, fmt.Errorf("failed to decode discount policy: %w", err)
	}

	// NULL jsonb columns scan as nil slices, which is exactly the
	// "no result yet" representation callers expect.
	r.Summary = json.RawMessage(summary)
	r.Calendar = json.RawMessage(calendar)
	r.Meta = json.RawMessage(meta)

	return &r, nil
}

// nullableRaw maps an absent JSON payload to SQL NULL instead of an
// empty byte slice, which postgres would reject as invalid jsonb.
func nullableRaw(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
