// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"pricedeck/internal/controller/handlers"
	"pricedeck/internal/controller/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config carries the server wiring options.
type Config struct {
	Addr           string
	InternalSecret string
	RateLimit      float64
	RateBurst      int
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(cfg Config, store handlers.StoreFactory, h *handlers.Handlers) *Server {
	authMW := middleware.Auth(store)
	optionalAuthMW := middleware.OptionalAuth(store)
	rateMW := middleware.RateLimit(cfg.RateLimit, cfg.RateBurst)
	internalMW := middleware.RequireInternalAuth(cfg.InternalSecret)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /users", rateMW(http.HandlerFunc(h.CreateUser)))

	// Reports work with or without an account. Submission is rate
	// limited per client; polling is cheap and is not.
	mux.Handle("POST /reports", rateMW(optionalAuthMW(http.HandlerFunc(h.SubmitReport))))
	mux.HandleFunc("GET /reports/{shareID}", h.GetReport)

	// Listing management requires an account.
	mux.Handle("POST /listings", authMW(http.HandlerFunc(h.CreateListing)))
	mux.Handle("GET /listings", authMW(http.HandlerFunc(h.ListListings)))
	mux.Handle("GET /listings/{id}", authMW(http.HandlerFunc(h.GetListing)))
	mux.Handle("PUT /listings/{id}", authMW(http.HandlerFunc(h.UpdateListing)))
	mux.Handle("DELETE /listings/{id}", authMW(http.HandlerFunc(h.DeleteListing)))
	mux.Handle("POST /listings/{id}/rerun", rateMW(authMW(http.HandlerFunc(h.RerunListing))))

	// Internal endpoints
	// These are called by external workers; the in-process agent talks
	// to the store directly. They should run behind strict network
	// rules in addition to the shared secret.
	mux.Handle("POST /internal/reports/claim", internalMW(http.HandlerFunc(h.InternalClaim)))
	mux.Handle("PUT /internal/reports/{id}/heartbeat", internalMW(http.HandlerFunc(h.InternalHeartbeat)))
	mux.Handle("PUT /internal/reports/{id}/result", internalMW(http.HandlerFunc(h.InternalResult)))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
