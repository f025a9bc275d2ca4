// Package worker contains the worker-side pull loop for report generation.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// failureMessage is what end users see when a report run gives up.
// Debug detail goes into the result meta, never into this message.
const failureMessage = "We couldn't generate this report. Please check the address and try again."

// Store is the subset of the report store the agent drives.
type Store interface {
	Claim(ctx context.Context, workerToken uuid.UUID, staleAfter time.Duration) (*store.Report, error)
	Heartbeat(ctx context.Context, reportID, workerToken uuid.UUID) (bool, error)
	Complete(ctx context.Context, reportID, workerToken uuid.UUID, summary, calendar, meta json.RawMessage) (bool, error)
	Fail(ctx context.Context, reportID, workerToken uuid.UUID, message string, meta json.RawMessage) (bool, error)
	UpdateReportAttributes(ctx context.Context, reportID, workerToken uuid.UUID, attrs api.ListingAttributes) (bool, error)
	Store(ctx context.Context, cacheKey string, summary, calendar, meta json.RawMessage, ttl time.Duration) error
}

// AgentConfig holds configuration for the worker agent.
type AgentConfig struct {
	ID                string
	Concurrency       int
	PollInterval      time.Duration
	MaxBackoff        time.Duration // Maximum backoff when queue is empty (default: 60s)
	HeartbeatInterval time.Duration // Interval between heartbeats (default: 10s)
	StaleAfter        time.Duration // Heartbeat age at which another worker's claim is reclaimable (default: 15m)
	ProcessTimeout    time.Duration // Hard cap on one report run (default: 10m)
	MaxAttempts       int           // Attempts before a report is failed terminally (default: 3)
	CacheTTL          time.Duration // TTL for completed results written back to cache (default: 24h)
}

// Agent is the worker that pulls claimable reports and processes them.
type Agent struct {
	store     Store
	processor Processor
	config    AgentConfig
	done      chan struct{}
}

// New creates a new worker agent.
func New(s Store, p Processor, config AgentConfig) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 60 * time.Second
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 10 * time.Second
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 15 * time.Minute
	}
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = 10 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 24 * time.Hour
	}

	return &Agent{
		store:     s,
		processor: p,
		config:    config,
		done:      make(chan struct{}),
	}
}

// Run starts the main pull-loop. It blocks until the context is cancelled.
// On SIGTERM, it stops claiming new work and allows in-flight reports to finish.
func (a *Agent) Run(ctx context.Context) error {
	log.Printf("Agent %s starting with concurrency %d", a.config.ID, a.config.Concurrency)

	// Semaphore to limit concurrency
	sem := make(chan struct{}, a.config.Concurrency)
	var wg sync.WaitGroup

	// Channel to signal when a slot becomes available (adaptive polling)
	pollNow := make(chan struct{}, 1)

	// Current backoff duration (increases on empty queue, resets on work found)
	currentBackoff := a.config.PollInterval

	triggerPoll := func() {
		select {
		case pollNow <- struct{}{}:
		default:
			// Already a poll pending
		}
	}

	// Initial poll
	triggerPoll()

	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, waiting for running reports to finish...")
			wg.Wait()
			close(a.done)
			return ctx.Err()

		case <-time.After(currentBackoff):
			triggerPoll()

		case <-pollNow:
			if len(sem) >= a.config.Concurrency {
				continue
			}

			// Each claim gets its own token: the token is the proof of
			// ownership for every follow-up write on that report.
			workerToken := uuid.New()
			rep, err := a.store.Claim(ctx, workerToken, a.config.StaleAfter)
			if err != nil {
				log.Printf("Claim error: %v", err)
				continue
			}

			if rep == nil {
				// Empty queue - increase backoff (exponential, capped at MaxBackoff)
				currentBackoff = currentBackoff * 2
				if currentBackoff > a.config.MaxBackoff {
					currentBackoff = a.config.MaxBackoff
				}
				continue
			}

			// Found work - reset backoff to minimum
			currentBackoff = a.config.PollInterval

			sem <- struct{}{}
			wg.Add(1)
			go func(rep *store.Report, token uuid.UUID) {
				defer wg.Done()
				defer func() {
					<-sem
					// A slot opened up - poll again right away
					triggerPoll()
				}()
				a.processReport(ctx, rep, token)
			}(rep, workerToken)

			// Keep claiming while slots remain
			triggerPoll()
		}
	}
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// processReport runs one claimed report end to end.
func (a *Agent) processReport(ctx context.Context, rep *store.Report, token uuid.UUID) {
	tracer := otel.Tracer("worker-agent")
	spanCtx, span := tracer.Start(ctx, "process_report",
		trace.WithAttributes(
			attribute.String("report.id", rep.ID.String()),
			attribute.String("report.cache_key", rep.CacheKey),
			attribute.Int("report.attempts", rep.Attempts),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log.Printf("Processing report %s (attempt %d)", rep.ID, rep.Attempts)

	// Attempts are counted by Claim, so a report that keeps getting
	// reclaimed eventually lands here over the limit and is failed for
	// good instead of looping forever.
	if rep.Attempts > a.config.MaxAttempts {
		a.failTerminally(rep, token, fmt.Sprintf("gave up after %d attempts", rep.Attempts-1))
		return
	}

	// The run outlives the poll context: a SIGTERM drains in-flight
	// reports instead of abandoning them mid-run.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(spanCtx), a.config.ProcessTimeout)
	defer cancel()

	// Heartbeat until the run finishes. A rejected heartbeat means the
	// claim is gone; the run is cancelled and its result discarded.
	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	defer cancelHeartbeat()
	go a.runHeartbeat(heartbeatCtx, rep.ID, token, cancel)

	result, err := a.processor.Process(runCtx, rep)
	if err != nil {
		span.RecordError(err)

		if rep.Attempts >= a.config.MaxAttempts {
			a.failTerminally(rep, token, err.Error())
			return
		}

		// Under the attempt limit the claim is simply abandoned: the
		// heartbeat stops, the row goes stale and Claim hands it out
		// again. No state to write here.
		log.Printf("Report %s attempt %d failed, leaving for reclaim: %v", rep.ID, rep.Attempts, err)
		return
	}

	if result.UpdatedAttributes != nil {
		// Token-guarded like Complete: a superseded worker must not
		// overwrite attributes another claimant now owns.
		ok, err := a.store.UpdateReportAttributes(context.Background(), rep.ID, token, *result.UpdatedAttributes)
		if err != nil {
			log.Printf("Failed to merge scraped attributes for %s: %v", rep.ID, err)
		} else if !ok {
			log.Printf("Report %s claim was superseded, discarding result", rep.ID)
			return
		}
	}

	ok, err := a.store.Complete(context.Background(), rep.ID, token, result.Summary, result.Calendar, result.Meta)
	if err != nil {
		log.Printf("Failed to complete report %s: %v", rep.ID, err)
		return
	}
	if !ok {
		log.Printf("Report %s claim was superseded, discarding result", rep.ID)
		return
	}

	log.Printf("Report %s completed", rep.ID)
	a.writeBackCache(rep, result)
}

// failTerminally marks the report as errored with a user-facing message,
// keeping the technical detail in the result meta.
func (a *Agent) failTerminally(rep *store.Report, token uuid.UUID, debug string) {
	meta, _ := json.Marshal(map[string]interface{}{
		"debug":    debug,
		"worker":   a.config.ID,
		"attempts": rep.Attempts,
	})

	ok, err := a.store.Fail(context.Background(), rep.ID, token, failureMessage, meta)
	if err != nil {
		log.Printf("Failed to record failure for %s: %v", rep.ID, err)
		return
	}
	if !ok {
		log.Printf("Report %s claim was superseded, failure not recorded", rep.ID)
		return
	}
	log.Printf("Report %s failed terminally: %s", rep.ID, debug)
}

// writeBackCache stores the completed result for future submissions
// with the same effective input. Best effort.
func (a *Agent) writeBackCache(rep *store.Report, result *Result) {
	// url-mode results describe one specific listing page and are
	// never served to criteria submissions.
	if rep.Attributes.InputMode == "url" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.store.Store(ctx, rep.CacheKey, result.Summary, result.Calendar, result.Meta, a.config.CacheTTL); err != nil {
		log.Printf("Cache write-back failed for %s: %v", rep.ID, err)
	}
}

// runHeartbeat renews the claim periodically while a report is being
// processed. When the renewal is rejected, the claim belongs to someone
// else and abort cancels the in-flight run.
func (a *Agent) runHeartbeat(ctx context.Context, reportID, token uuid.UUID, abort context.CancelFunc) {
	ticker := time.NewTicker(a.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := a.store.Heartbeat(context.Background(), reportID, token)
			if err != nil {
				log.Printf("Heartbeat failed for %s: %v", reportID, err)
				continue
			}
			if !ok {
				log.Printf("Lost claim on %s, aborting run", reportID)
				abort()
				return
			}
		}
	}
}
