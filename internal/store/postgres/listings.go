package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pricedeck/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateLink is returned when a (listing, report) pair is linked twice.
var ErrDuplicateLink = errors.New("listing already linked to report")

const listingColumns = `
	id, user_id, name, address, attributes, discount_policy,
	latest_report_id, created_at, updated_at
`

func (s *Store) CreateListing(ctx context.Context, tx store.DBTransaction, l *store.Listing) error {
	attrsJson, err := json.Marshal(l.Attributes)
	if err != nil {
		return err
	}
	policyJson, err := json.Marshal(l.DiscountPolicy)
	if err != nil {
		return err
	}

	executor := s.getExecutor(tx)
	_, err = executor.ExecContext(ctx, `
		INSERT INTO listings (id, user_id, name, address, attributes, discount_policy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, l.ID, l.UserID, l.Name, l.Address, attrsJson, policyJson, l.CreatedAt)
	return err
}

func (s *Store) GetListingByID(ctx context.Context, id uuid.UUID) (*store.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = $1", listingColumns)
	return scanListing(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListListingsByUser(ctx context.Context, userID uuid.UUID) ([]*store.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE user_id = $1 ORDER BY created_at ASC", listingColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*store.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *Store) UpdateListing(ctx context.Context, l *store.Listing) error {
	attrsJson, err := json.Marshal(l.Attributes)
	if err != nil {
		return err
	}
	policyJson, err := json.Marshal(l.DiscountPolicy)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET name = $2, address = $3, attributes = $4, discount_policy = $5, updated_at = NOW()
		WHERE id = $1
	`, l.ID, l.Name, l.Address, attrsJson, policyJson)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LinkReport inserts the (listing, report) join row and bumps the
// listing's latest-report pointer in one go. A repeated pair trips the
// unique constraint and surfaces as ErrDuplicateLink.
func (s *Store) LinkReport(ctx context.Context, tx store.DBTransaction, listingID, reportID uuid.UUID, trigger store.LinkTrigger) error {
	executor := s.getExecutor(tx)

	_, err := executor.ExecContext(ctx, `
		INSERT INTO listing_reports (listing_id, report_id, trigger_kind)
		VALUES ($1, $2, $3)
	`, listingID, reportID, trigger)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateLink
		}
		return err
	}

	_, err = executor.ExecContext(ctx, `
		UPDATE listings SET latest_report_id = $2, updated_at = NOW() WHERE id = $1
	`, listingID, reportID)
	return err
}

func scanListing(row rowScanner) (*store.Listing, error) {
	var (
		l          store.Listing
		attrsJson  []byte
		policyJson []byte
	)

	err := row.Scan(
		&l.ID, &l.UserID, &l.Name, &l.Address, &attrsJson, &policyJson,
		&l.LatestReportID, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(attrsJson, &l.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode listing attributes: %w", err)
	}
	if err := json.Unmarshal(policyJson, &l.DiscountPolicy); err != nil {
		return nil, fmt.Errorf("failed to decode discount policy: %w", err)
	}

	return &l, nil
}
