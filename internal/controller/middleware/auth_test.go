package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricedeck/internal/auth"
	"pricedeck/internal/store"

	"github.com/google/uuid"
)

type mockUserStore struct {
	users map[string]*store.User // api key hash -> user
}

func (m *mockUserStore) CreateUser(ctx context.Context, u *store.User, hashedKey string) error {
	return nil
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	if u, ok := m.users[hash]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func TestAuth_ValidKey(t *testing.T) {
	user := &store.User{ID: uuid.New(), Email: "host@example.com"}
	users := &mockUserStore{users: map[string]*store.User{
		auth.HashKey("pd_validkey"): user,
	}}

	var gotUser *store.User
	handler := Auth(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/listings", nil)
	req.Header.Set("Authorization", "Bearer pd_validkey")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rr.Code)
	}
	if gotUser == nil || gotUser.ID != user.ID {
		t.Error("authenticated user not placed in context")
	}
}

func TestAuth_RejectsInvalidKey(t *testing.T) {
	users := &mockUserStore{}

	handler := Auth(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not have been called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/listings", nil)
	req.Header.Set("Authorization", "Bearer pd_wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rr.Code)
	}
}

func TestAuth_RejectsMissingHeader(t *testing.T) {
	handler := Auth(&mockUserStore{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not have been called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/listings", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rr.Code)
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	called := false
	handler := OptionalAuth(&mockUserStore{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := UserFromContext(r.Context()); ok {
			t.Error("anonymous request should not carry a user")
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/reports", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called {
		t.Error("Next handler was not called")
	}
}

func TestOptionalAuth_PresentedInvalidKeyIsRejected(t *testing.T) {
	handler := OptionalAuth(&mockUserStore{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not have been called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/reports", nil)
	req.Header.Set("Authorization", "Bearer pd_expired")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rr.Code)
	}
}
