package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pricedeck/internal/auth"
	"pricedeck/pkg/api"
)

func TestCreateUser_ReturnsKeyOnceStoresHash(t *testing.T) {
	m := &mockStore{}
	h := newTestHandlers(m)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email": "host@example.com"}`))
	rr := httptest.NewRecorder()
	h.CreateUser(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rr.Code, rr.Body.String())
	}

	var resp api.CreateUserResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !strings.HasPrefix(resp.APIKey, "pd_") {
		t.Errorf("got api key %q, want pd_ prefix", resp.APIKey)
	}
	if m.createdUserKey != auth.HashKey(resp.APIKey) {
		t.Error("stored hash does not match the returned key")
	}
	if m.createdUserKey == resp.APIKey {
		t.Error("plaintext key must never be stored")
	}
}

func TestCreateUser_RejectsBadEmail(t *testing.T) {
	h := newTestHandlers(&mockStore{})

	for _, body := range []string{`{}`, `{"email": ""}`, `{"email": "nobody"}`} {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rr := httptest.NewRecorder()
		h.CreateUser(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: got status %d, want 400", body, rr.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandlers(&mockStore{})

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rr.Code)
	}
}

func TestReadyz_DatabaseDown(t *testing.T) {
	m := &mockStore{pingErr: errors.New("connection refused")}
	h := newTestHandlers(m)

	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", rr.Code)
	}
}
