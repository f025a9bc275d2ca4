// Package main is the entry point for the pricedeck controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricedeck/internal/config"
	"pricedeck/internal/controller"
	"pricedeck/internal/controller/handlers"
	"pricedeck/internal/logger"
	"pricedeck/internal/observability"
	"pricedeck/internal/report"
	"pricedeck/internal/store"
	"pricedeck/internal/store/postgres"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(db.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.Init(ctx, "pricedeck-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	_, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Queue depth gauges, polled only when scraped.
	for _, status := range []store.ReportStatus{store.StatusQueued, store.StatusRunning} {
		status := status
		err := observability.RegisterQueueDepth("pricedeck-controller", string(status), func(ctx context.Context) (int64, error) {
			return db.CountByStatus(ctx, status)
		})
		if err != nil {
			log.Printf("Failed to register %s gauge: %v", status, err)
		}
	}

	reports := report.NewService(db, slogger)
	h := handlers.New(db, reports, handlers.Config{
		StaleAfter: cfg.WorkerStaleAfter,
		CacheTTL:   cfg.CacheTTL,
	}, slogger)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(controller.Config{
		Addr:           addr,
		InternalSecret: cfg.InternalSecret,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateLimitBurst,
	}, db, h)

	go func() {
		log.Printf("Pricedeck controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
