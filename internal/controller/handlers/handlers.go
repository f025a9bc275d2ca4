// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pricedeck/internal/logger"
	"pricedeck/internal/report"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"
)

// StoreFactory combines the interfaces needed for the controller to function.
type StoreFactory interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	Ping(ctx context.Context) error
	store.ReportStore
	store.ReportCache
	store.ListingStore
	store.UserStore
}

// Config carries the handler-level tunables.
type Config struct {
	// StaleAfter is how long a running report may go without a
	// heartbeat before Claim hands it to another worker.
	StaleAfter time.Duration
	// CacheTTL is how long completed results stay servable from cache.
	CacheTTL time.Duration
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store   StoreFactory
	reports *report.Service
	cfg     Config
	log     *slog.Logger
}

// New creates a new Handlers instance with the given dependencies.
func New(s StoreFactory, reports *report.Service, cfg Config, log *slog.Logger) *Handlers {
	return &Handlers{store: s, reports: reports, cfg: cfg, log: log}
}

// logger returns the handler logger with the request's correlation ID
// attached when the RequestID middleware has set one.
func (h *Handlers) logger(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, h.log)
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// serviceError translates report service errors into HTTP responses.
// Validation failures carry per-field detail; everything unexpected is
// a plain 500 without internals leaking to the caller.
func (h *Handlers) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *report.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondJson(w, http.StatusBadRequest, api.ErrorResponse{
			Error:   "Invalid input",
			Code:    strconv.Itoa(http.StatusBadRequest),
			Details: verr.Fields,
		})
	case errors.Is(err, report.ErrNotFound):
		h.httpError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, report.ErrForbidden):
		h.httpError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, report.ErrUnauthorized):
		h.httpError(w, "Authentication required", http.StatusUnauthorized)
	default:
		h.logger(r.Context()).ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		h.httpError(w, "Internal error", http.StatusInternalServerError)
	}
}
