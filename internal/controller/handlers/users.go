package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pricedeck/internal/auth"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// CreateUser handles POST /users.
// The response contains the plaintext API key exactly once; only its
// hash is stored, so a lost key means issuing a new account.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid body", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		h.httpError(w, "A valid email is required", http.StatusBadRequest)
		return
	}

	apiKey, err := newAPIKey()
	if err != nil {
		h.httpError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user := &store.User{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateUser(ctx, user, auth.HashKey(apiKey)); err != nil {
		h.logger(ctx).ErrorContext(ctx, "failed to create user", "error", err)
		h.httpError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.CreateUserResponse{
		ID:     user.ID.String(),
		Email:  user.Email,
		APIKey: apiKey,
	})
}

// newAPIKey returns a fresh "pd_"-prefixed key with 128 bits of entropy.
func newAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "pd_" + hex.EncodeToString(buf), nil
}
