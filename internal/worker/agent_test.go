package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

// Fake store
type fakeStore struct {
	mu sync.Mutex

	claimQueue []*store.Report
	claimErr   error

	heartbeatOk  bool
	heartbeatErr error

	completeOk bool
	failOk     bool
	updateOk   bool

	claimCalls     int
	claimTokens    []uuid.UUID
	completeCalls  int
	completeToken  uuid.UUID
	failCalls      int
	failMessage    string
	failMeta       json.RawMessage
	updatedAttrs   *api.ListingAttributes
	updateToken    uuid.UUID
	cacheWrites    int
	cachedKey      string
	heartbeatCalls int
}

func (f *fakeStore) Claim(ctx context.Context, workerToken uuid.UUID, staleAfter time.Duration) (*store.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.claimCalls++
	f.claimTokens = append(f.claimTokens, workerToken)

	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.claimQueue) == 0 {
		return nil, nil
	}
	r := f.claimQueue[0]
	f.claimQueue = f.claimQueue[1:]
	return r, nil
}

func (f *fakeStore) Heartbeat(ctx context.Context, reportID, workerToken uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatCalls++
	return f.heartbeatOk, f.heartbeatErr
}

func (f *fakeStore) Complete(ctx context.Context, reportID, workerToken uuid.UUID, summary, calendar, meta json.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.completeToken = workerToken
	return f.completeOk, nil
}

func (f *fakeStore) Fail(ctx context.Context, reportID, workerToken uuid.UUID, message string, meta json.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	f.failMessage = message
	f.failMeta = meta
	return f.failOk, nil
}

func (f *fakeStore) UpdateReportAttributes(ctx context.Context, reportID, workerToken uuid.UUID, attrs api.ListingAttributes) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateToken = workerToken
	if !f.updateOk {
		return false, nil
	}
	f.updatedAttrs = &attrs
	return true, nil
}

func (f *fakeStore) Store(ctx context.Context, cacheKey string, summary, calendar, meta json.RawMessage, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheWrites++
	f.cachedKey = cacheKey
	return nil
}

// Fake processor
type fakeProcessor struct {
	result *Result
	err    error

	mu        sync.Mutex
	processed []uuid.UUID
	block     chan struct{} // when set, Process waits for ctx or close

	sawCancel bool
}

func (f *fakeProcessor) Process(ctx context.Context, r *store.Report) (*Result, error) {
	f.mu.Lock()
	f.processed = append(f.processed, r.ID)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.sawCancel = true
			f.mu.Unlock()
			return nil, ctx.Err()
		case <-block:
		}
	}
	return f.result, f.err
}

func queuedReport(attempts int) *store.Report {
	return &store.Report{
		ID:       uuid.New(),
		Address:  "221B Baker Street, London",
		CacheKey: "00c0ffee00c0ffee00c0ffee00c0ffee",
		Status:   store.StatusRunning,
		Attempts: attempts,
	}
}

func testConfig() AgentConfig {
	return AgentConfig{
		ID:                "test-worker",
		Concurrency:       2,
		PollInterval:      5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		HeartbeatInterval: time.Hour, // keep heartbeats out of most tests
		MaxAttempts:       3,
		CacheTTL:          time.Hour,
	}
}

func successResult() *Result {
	return &Result{
		Summary:  []byte(`{"avgNightlyRate": 145}`),
		Calendar: []byte(`[]`),
	}
}

func TestAgent_ProcessesClaimedReport(t *testing.T) {
	rep := queuedReport(1)
	f := &fakeStore{claimQueue: []*store.Report{rep}, heartbeatOk: true, completeOk: true}
	p := &fakeProcessor{result: successResult()}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if len(p.processed) != 1 || p.processed[0] != rep.ID {
		t.Fatalf("processed %v, want [%s]", p.processed, rep.ID)
	}
	if f.completeCalls != 1 {
		t.Errorf("got %d Complete calls, want 1", f.completeCalls)
	}
	if f.cacheWrites != 1 || f.cachedKey != rep.CacheKey {
		t.Errorf("cache write-back missing: writes=%d key=%q", f.cacheWrites, f.cachedKey)
	}
}

func TestAgent_FreshTokenPerClaim(t *testing.T) {
	f := &fakeStore{
		claimQueue: []*store.Report{queuedReport(1), queuedReport(1)},
		completeOk: true,
	}
	p := &fakeProcessor{result: successResult()}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if len(f.claimTokens) < 2 {
		t.Fatalf("expected at least 2 claims, got %d", len(f.claimTokens))
	}
	seen := map[uuid.UUID]bool{}
	for _, tok := range f.claimTokens {
		if tok == uuid.Nil {
			t.Error("claim used the nil token")
		}
		if seen[tok] {
			t.Error("claim token reused across claims")
		}
		seen[tok] = true
	}
}

func TestAgent_OverAttemptLimitFailsWithoutProcessing(t *testing.T) {
	rep := queuedReport(4) // claimed a 4th time with MaxAttempts=3
	f := &fakeStore{claimQueue: []*store.Report{rep}, failOk: true}
	p := &fakeProcessor{result: successResult()}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if len(p.processed) != 0 {
		t.Error("report over the attempt limit must not be processed")
	}
	if f.failCalls != 1 {
		t.Fatalf("got %d Fail calls, want 1", f.failCalls)
	}
	if f.failMessage != failureMessage {
		t.Errorf("got failure message %q, want the user-facing one", f.failMessage)
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(f.failMeta, &meta); err != nil {
		t.Fatalf("invalid failure meta: %v", err)
	}
	if meta["debug"] == "" {
		t.Error("failure meta should carry debug detail")
	}
}

func TestAgent_ErrorUnderLimitAbandonsClaim(t *testing.T) {
	rep := queuedReport(1)
	f := &fakeStore{claimQueue: []*store.Report{rep}}
	p := &fakeProcessor{err: errors.New("transient scrape failure")}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if f.completeCalls != 0 {
		t.Error("failed run must not complete")
	}
	if f.failCalls != 0 {
		t.Error("an attempt under the limit is abandoned for reclaim, not failed")
	}
}

func TestAgent_ErrorAtLimitFailsTerminally(t *testing.T) {
	rep := queuedReport(3) // last allowed attempt
	f := &fakeStore{claimQueue: []*store.Report{rep}, failOk: true}
	p := &fakeProcessor{err: errors.New("listing page could not be loaded")}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if f.failCalls != 1 {
		t.Fatalf("got %d Fail calls, want 1", f.failCalls)
	}
	if f.failMessage != failureMessage {
		t.Errorf("user-facing message expected, got %q", f.failMessage)
	}
}

func TestAgent_URLModeSkipsCacheAndMergesAttributes(t *testing.T) {
	rep := queuedReport(1)
	rep.Attributes = api.ListingAttributes{InputMode: "url", ListingURL: "https://example.com/rooms/42"}

	scraped := &api.ListingAttributes{PropertyType: "apartment", Bedrooms: 3, InputMode: "url"}
	f := &fakeStore{claimQueue: []*store.Report{rep}, completeOk: true, updateOk: true}
	p := &fakeProcessor{result: &Result{
		Summary:           []byte(`{}`),
		Calendar:          []byte(`[]`),
		UpdatedAttributes: scraped,
	}}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if f.cacheWrites != 0 {
		t.Error("url-mode result must not be cached")
	}
	if f.updatedAttrs == nil || f.updatedAttrs.Bedrooms != 3 {
		t.Errorf("scraped attributes not merged: %+v", f.updatedAttrs)
	}
	if len(f.claimTokens) == 0 || f.updateToken != f.claimTokens[0] {
		t.Errorf("attribute merge used token %s, want the claim token", f.updateToken)
	}
}

func TestAgent_SupersededClaimCannotOverwriteAttributes(t *testing.T) {
	rep := queuedReport(1)
	rep.Attributes = api.ListingAttributes{InputMode: "url", ListingURL: "https://example.com/rooms/42"}

	// The store rejects the attribute write: another worker reclaimed
	// the report while this run was in flight.
	f := &fakeStore{claimQueue: []*store.Report{rep}, completeOk: true, updateOk: false}
	p := &fakeProcessor{result: &Result{
		Summary:           []byte(`{}`),
		Calendar:          []byte(`[]`),
		UpdatedAttributes: &api.ListingAttributes{Bedrooms: 3, InputMode: "url"},
	}}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if f.updatedAttrs != nil {
		t.Error("superseded claim overwrote attributes")
	}
	if f.completeCalls != 0 {
		t.Error("run must stop once the claim is known to be lost")
	}
	if f.cacheWrites != 0 {
		t.Error("a discarded result must not be cached")
	}
}

func TestAgent_SupersededCompleteSkipsCache(t *testing.T) {
	rep := queuedReport(1)
	f := &fakeStore{claimQueue: []*store.Report{rep}, completeOk: false}
	p := &fakeProcessor{result: successResult()}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	if f.completeCalls != 1 {
		t.Fatalf("got %d Complete calls, want 1", f.completeCalls)
	}
	if f.cacheWrites != 0 {
		t.Error("a discarded result must not be cached")
	}
}

func TestAgent_LostHeartbeatAbortsRun(t *testing.T) {
	rep := queuedReport(1)
	f := &fakeStore{claimQueue: []*store.Report{rep}, heartbeatOk: false}

	cfg := testConfig()
	cfg.HeartbeatInterval = 5 * time.Millisecond

	p := &fakeProcessor{block: make(chan struct{})} // blocks until cancelled

	a := New(f, p, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.sawCancel {
		t.Error("processor should have been cancelled after the claim was lost")
	}
	if f.completeCalls != 0 {
		t.Error("aborted run must not complete")
	}
}

func TestAgent_EmptyQueueBacksOff(t *testing.T) {
	f := &fakeStore{}
	p := &fakeProcessor{}

	a := New(f, p, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	a.Run(ctx)
	<-a.Done()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimCalls == 0 {
		t.Fatal("agent never polled")
	}
	// With pure PollInterval polling (5ms) a 100ms window would see
	// ~20 claims; backoff doubling to the 20ms cap keeps it well under.
	if f.claimCalls > 12 {
		t.Errorf("got %d claims in the window, backoff seems inactive", f.claimCalls)
	}
}
