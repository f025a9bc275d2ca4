package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"pricedeck/internal/report"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// Mock transaction
type mockTx struct{}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}
func (m *mockTx) Commit() error   { return nil }
func (m *mockTx) Rollback() error { return nil }

// Mock Store
type mockStore struct {
	pingErr error

	// Report hooks
	createReportErr error
	getByIDResp     *store.Report
	getByIDErr      error
	getByShareResp  *store.Report
	getByShareErr   error
	claimResp       *store.Report
	claimErr        error
	heartbeatOk     bool
	heartbeatErr    error
	completeOk      bool
	completeErr     error
	failOk          bool
	failErr         error
	updateAttrsOk   bool
	updateAttrsErr  error
	countResp       int64
	countErr        error

	// Cache hooks
	lookupResp    *store.CacheEntry
	lookupErr     error
	cacheStoreErr error

	// Listing hooks
	createListingErr error
	getListingResp   *store.Listing
	getListingErr    error
	listListingsResp []*store.Listing
	listListingsErr  error
	updateListingErr error
	deleteListingErr error
	linkReportErr    error

	// User hooks
	createUserErr  error
	getByHashResp  *store.User
	getByHashErr   error
	getUserByIDErr error

	// Spies
	createdReport   *store.Report
	claimedToken    uuid.UUID
	claimedStale    time.Duration
	completedReport uuid.UUID
	failedMessage   string
	cachedKey       string
	cachedSummary   json.RawMessage
	updatedAttrs    *api.ListingAttributes
	createdUserKey  string
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	return &mockTx{}, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockStore) CreateReport(ctx context.Context, tx store.DBTransaction, r *store.Report) error {
	if m.createReportErr != nil {
		return m.createReportErr
	}
	m.createdReport = r
	return nil
}

func (m *mockStore) GetReportByID(ctx context.Context, id uuid.UUID) (*store.Report, error) {
	return m.getByIDResp, m.getByIDErr
}

func (m *mockStore) GetReportByShareID(ctx context.Context, shareID string) (*store.Report, error) {
	return m.getByShareResp, m.getByShareErr
}

func (m *mockStore) Claim(ctx context.Context, workerToken uuid.UUID, staleAfter time.Duration) (*store.Report, error) {
	m.claimedToken = workerToken
	m.claimedStale = staleAfter
	return m.claimResp, m.claimErr
}

func (m *mockStore) Heartbeat(ctx context.Context, reportID, workerToken uuid.UUID) (bool, error) {
	return m.heartbeatOk, m.heartbeatErr
}

func (m *mockStore) Complete(ctx context.Context, reportID, workerToken uuid.UUID, summary, calendar, meta json.RawMessage) (bool, error) {
	m.completedReport = reportID
	return m.completeOk, m.completeErr
}

func (m *mockStore) Fail(ctx context.Context, reportID, workerToken uuid.UUID, message string, meta json.RawMessage) (bool, error) {
	m.failedMessage = message
	return m.failOk, m.failErr
}

func (m *mockStore) UpdateReportAttributes(ctx context.Context, reportID, workerToken uuid.UUID, attrs api.ListingAttributes) (bool, error) {
	if m.updateAttrsErr != nil {
		return false, m.updateAttrsErr
	}
	if !m.updateAttrsOk {
		return false, nil
	}
	m.updatedAttrs = &attrs
	return true, nil
}

func (m *mockStore) CountByStatus(ctx context.Context, status store.ReportStatus) (int64, error) {
	return m.countResp, m.countErr
}

func (m *mockStore) Lookup(ctx context.Context, cacheKey string) (*store.CacheEntry, error) {
	return m.lookupResp, m.lookupErr
}

func (m *mockStore) Store(ctx context.Context, cacheKey string, summary, calendar, meta json.RawMessage, ttl time.Duration) error {
	if m.cacheStoreErr != nil {
		return m.cacheStoreErr
	}
	m.cachedKey = cacheKey
	m.cachedSummary = summary
	return nil
}

func (m *mockStore) CreateListing(ctx context.Context, tx store.DBTransaction, l *store.Listing) error {
	return m.createListingErr
}

func (m *mockStore) GetListingByID(ctx context.Context, id uuid.UUID) (*store.Listing, error) {
	return m.getListingResp, m.getListingErr
}

func (m *mockStore) ListListingsByUser(ctx context.Context, userID uuid.UUID) ([]*store.Listing, error) {
	return m.listListingsResp, m.listListingsErr
}

func (m *mockStore) UpdateListing(ctx context.Context, l *store.Listing) error {
	return m.updateListingErr
}

func (m *mockStore) DeleteListing(ctx context.Context, id uuid.UUID) error {
	return m.deleteListingErr
}

func (m *mockStore) LinkReport(ctx context.Context, tx store.DBTransaction, listingID, reportID uuid.UUID, trigger store.LinkTrigger) error {
	return m.linkReportErr
}

func (m *mockStore) CreateUser(ctx context.Context, u *store.User, hashedKey string) error {
	m.createdUserKey = hashedKey
	return m.createUserErr
}

func (m *mockStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return nil, m.getUserByIDErr
}

func (m *mockStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	return m.getByHashResp, m.getByHashErr
}

func newTestHandlers(m *mockStore) *Handlers {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := report.NewService(m, log)
	return New(m, svc, Config{StaleAfter: 15 * time.Minute, CacheTTL: 24 * time.Hour}, log)
}
