package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pricedeck/pkg/api"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active
// transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// ReportStore handles report rows and the worker claim protocol.
// Implementations must give Claim FOR UPDATE SKIP LOCKED semantics:
// concurrent claimants skip a locked row instead of blocking on it.
type ReportStore interface {
	// CreateReport inserts a new report row. The row's status decides
	// the path: StatusQueued enters the work queue (the row is the
	// queue entry), StatusReady records a cache hit with the outcome
	// already attached and no worker fields ever set.
	CreateReport(ctx context.Context, tx DBTransaction, r *Report) error

	// GetReportByID returns a report by its internal ID.
	GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error)

	// GetReportByShareID returns a report by its public share token.
	GetReportByShareID(ctx context.Context, shareID string) (*Report, error)

	// Claim atomically hands the oldest claimable report (queued, or
	// running with a heartbeat older than staleAfter) to workerToken.
	// Returns nil, nil when the queue is empty.
	Claim(ctx context.Context, workerToken uuid.UUID, staleAfter time.Duration) (*Report, error)

	// Heartbeat renews the claim. False means the claim was superseded
	// and the caller must abandon its in-flight work.
	Heartbeat(ctx context.Context, reportID, workerToken uuid.UUID) (bool, error)

	// Complete records a successful outcome, guarded by the claim token.
	Complete(ctx context.Context, reportID, workerToken uuid.UUID, summary, calendar, meta json.RawMessage) (bool, error)

	// Fail records a terminal failure, guarded by the claim token.
	Fail(ctx context.Context, reportID, workerToken uuid.UUID, message string, meta json.RawMessage) (bool, error)

	// UpdateReportAttributes merges scraped listing details back into a
	// url-mode report's attribute bag, guarded by the claim token like
	// Complete. False means the claim was superseded and the write was
	// discarded.
	UpdateReportAttributes(ctx context.Context, reportID, workerToken uuid.UUID, attrs api.ListingAttributes) (bool, error)

	// CountByStatus reports queue depth for observability.
	CountByStatus(ctx context.Context, status ReportStatus) (int64, error)
}

// ReportCache is the durable key -> outcome cache consulted before
// enqueuing work. Lookup returns nil, nil on a miss; callers treat
// lookup errors as misses too, never as request failures.
type ReportCache interface {
	Lookup(ctx context.Context, cacheKey string) (*CacheEntry, error)
	Store(ctx context.Context, cacheKey string, summary, calendar, meta json.RawMessage, ttl time.Duration) error
}

// ListingStore handles saved listings and their report links.
type ListingStore interface {
	CreateListing(ctx context.Context, tx DBTransaction, l *Listing) error
	GetListingByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	ListListingsByUser(ctx context.Context, userID uuid.UUID) ([]*Listing, error)
	UpdateListing(ctx context.Context, l *Listing) error
	DeleteListing(ctx context.Context, id uuid.UUID) error

	// LinkReport inserts the (listing, report) join row and bumps the
	// listing's latest-report pointer. Duplicate pairs are rejected by
	// the unique constraint.
	LinkReport(ctx context.Context, tx DBTransaction, listingID, reportID uuid.UUID, trigger LinkTrigger) error
}

// UserStore handles host accounts for authentication.
type UserStore interface {
	CreateUser(ctx context.Context, u *User, hashedKey string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*User, error)
}
