// Package report implements the submission service: input validation,
// cache-key derivation, cache short-circuiting and queueing of pricing
// reports, plus the polling read side.
package report

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricedeck/internal/cachekey"
	"pricedeck/internal/store"
	"pricedeck/pkg/api"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown share IDs and listing IDs.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a caller references another user's listing.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned when an anonymous caller requests an
	// account-bound feature such as saving a listing.
	ErrUnauthorized = errors.New("authentication required")
)

// Store is the persistence surface the service needs. *postgres.Store
// satisfies it.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)

	CreateReport(ctx context.Context, tx store.DBTransaction, r *store.Report) error
	GetReportByShareID(ctx context.Context, shareID string) (*store.Report, error)

	Lookup(ctx context.Context, cacheKey string) (*store.CacheEntry, error)

	GetListingByID(ctx context.Context, id uuid.UUID) (*store.Listing, error)
	CreateListing(ctx context.Context, tx store.DBTransaction, l *store.Listing) error
	LinkReport(ctx context.Context, tx store.DBTransaction, listingID, reportID uuid.UUID, trigger store.LinkTrigger) error
}

// Service orchestrates report submission and retrieval.
type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(s Store, log *slog.Logger) *Service {
	return &Service{store: s, log: log}
}

// Submit validates a submission, resolves any referenced listing,
// consults the cache and creates the report row. On a cache hit the
// returned report is already ready; otherwise it is queued and the
// caller polls by share ID.
func (s *Service) Submit(ctx context.Context, userID *uuid.UUID, req api.SubmitReportRequest) (*store.Report, error) {
	var listing *store.Listing
	if req.ListingID != "" {
		listingID, err := uuid.Parse(req.ListingID)
		if err != nil {
			verr := &ValidationError{}
			verr.add("listingId", "must be a valid listing id")
			return nil, verr
		}
		listing, err = s.resolveListing(ctx, userID, listingID)
		if err != nil {
			return nil, err
		}
	}

	if req.SaveListing && userID == nil {
		return nil, fmt.Errorf("saving a listing: %w", ErrUnauthorized)
	}

	in := effectiveInput{
		Address:   req.Address,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if listing != nil {
		// Stored listing input is the base; request fields override it.
		if in.Address == "" {
			in.Address = listing.Address
		}
		in.Attributes = listing.Attributes
		in.DiscountPolicy = listing.DiscountPolicy
	}
	in.Attributes = mergeAttributes(in.Attributes, req.Attributes)
	in.DiscountPolicy = mergePolicy(in.DiscountPolicy, req.DiscountPolicy)

	if err := validate(in); err != nil {
		return nil, err
	}

	r, err := s.createReport(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	// Listing bookkeeping happens after the report exists: the report
	// is the product, links are best-effort.
	switch {
	case req.SaveListing:
		s.saveListing(ctx, *userID, req, in, r)
	case listing != nil:
		// A submission against an existing listing is a re-submission,
		// not a first-time save, so it carries the rerun trigger.
		s.linkReport(ctx, listing.ID, r.ID, store.TriggerRerun)
	}

	return r, nil
}

// Rerun submits a fresh report from a saved listing, with the request's
// fields overriding the stored input field by field.
func (s *Service) Rerun(ctx context.Context, userID *uuid.UUID, listingID uuid.UUID, req api.RerunListingRequest) (*store.Report, error) {
	listing, err := s.resolveListing(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}

	in := effectiveInput{
		Address:        listing.Address,
		Attributes:     mergeAttributes(listing.Attributes, req.Attributes),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		DiscountPolicy: mergePolicy(listing.DiscountPolicy, req.DiscountPolicy),
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	r, err := s.createReport(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	s.linkReport(ctx, listing.ID, r.ID, store.TriggerRerun)

	return r, nil
}

// GetByShareID is the polling read side. The returned report reflects
// whatever state the pipeline has reached; callers poll until Terminal.
func (s *Service) GetByShareID(ctx context.Context, shareID string) (*store.Report, error) {
	r, err := s.store.GetReportByShareID(ctx, shareID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) createReport(ctx context.Context, userID *uuid.UUID, in effectiveInput) (*store.Report, error) {
	key := cachekey.Compute(cachekey.NewInput(in.Address, in.Attributes, in.StartDate, in.EndDate, in.DiscountPolicy))

	startDate, _ := time.Parse(dateLayout, in.StartDate)
	endDate, _ := time.Parse(dateLayout, in.EndDate)

	r := &store.Report{
		ID:             uuid.New(),
		ShareID:        newShareID(),
		UserID:         userID,
		Address:        in.Address,
		Attributes:     in.Attributes,
		DateStart:      startDate,
		DateEnd:        endDate,
		DiscountPolicy: in.DiscountPolicy,
		CacheKey:       key,
		Status:         store.StatusQueued,
		CreatedAt:      time.Now().UTC(),
	}

	// url-mode runs always re-scrape the live listing page, so the
	// cache is only consulted for criteria submissions.
	if in.Attributes.InputMode != "url" {
		if entry, err := s.store.Lookup(ctx, key); err != nil {
			// A broken cache must not break submissions.
			s.log.WarnContext(ctx, "cache lookup failed, treating as miss", "cache_key", key, "error", err)
		} else if entry != nil {
			r.Status = store.StatusReady
			r.Summary = entry.Summary
			r.Calendar = entry.Calendar
			r.Meta = entry.Meta
		}
	}

	if err := s.store.CreateReport(ctx, nil, r); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.log.InfoContext(ctx, "report submitted",
		"report_id", r.ID, "share_id", r.ShareID, "status", r.Status, "cache_key", key)

	return r, nil
}

func (s *Service) resolveListing(ctx context.Context, userID *uuid.UUID, listingID uuid.UUID) (*store.Listing, error) {
	listing, err := s.store.GetListingByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, err
	}
	if userID == nil || *userID != listing.UserID {
		return nil, fmt.Errorf("listing %s: %w", listingID, ErrForbidden)
	}
	return listing, nil
}

// saveListing persists the submission as a reusable listing and links
// the new report to it. Failures are logged, never surfaced: the report
// was already created and that is what the caller paid for.
func (s *Service) saveListing(ctx context.Context, userID uuid.UUID, req api.SubmitReportRequest, in effectiveInput, r *store.Report) {
	name := req.ListingName
	if name == "" {
		name = in.Address
	}

	l := &store.Listing{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		Address:        in.Address,
		Attributes:     in.Attributes,
		DiscountPolicy: in.DiscountPolicy,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "failed to save listing", "report_id", r.ID, "error", err)
		return
	}
	defer tx.Rollback()

	if err := s.store.CreateListing(ctx, tx, l); err != nil {
		s.log.WarnContext(ctx, "failed to save listing", "report_id", r.ID, "error", err)
		return
	}
	if err := s.store.LinkReport(ctx, tx, l.ID, r.ID, store.TriggerManual); err != nil {
		s.log.WarnContext(ctx, "failed to link saved listing", "report_id", r.ID, "listing_id", l.ID, "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.log.WarnContext(ctx, "failed to save listing", "report_id", r.ID, "error", err)
	}
}

func (s *Service) linkReport(ctx context.Context, listingID, reportID uuid.UUID, trigger store.LinkTrigger) {
	if err := s.store.LinkReport(ctx, nil, listingID, reportID, trigger); err != nil {
		s.log.WarnContext(ctx, "failed to link report to listing",
			"listing_id", listingID, "report_id", reportID, "error", err)
	}
}

// mergeAttributes applies a patch over the base field by field. Pointer
// fields distinguish absent from zero, so an override can set bedrooms
// back to 0.
func mergeAttributes(base api.ListingAttributes, patch *api.ListingAttributesPatch) api.ListingAttributes {
	if patch == nil {
		return base
	}
	out := base
	if patch.PropertyType != nil {
		out.PropertyType = *patch.PropertyType
	}
	if patch.Bedrooms != nil {
		out.Bedrooms = *patch.Bedrooms
	}
	if patch.Bathrooms != nil {
		out.Bathrooms = *patch.Bathrooms
	}
	if patch.Beds != nil {
		out.Beds = *patch.Beds
	}
	if patch.MaxGuests != nil {
		out.MaxGuests = *patch.MaxGuests
	}
	if patch.SquareFeet != nil {
		out.SquareFeet = *patch.SquareFeet
	}
	if patch.Amenities != nil {
		out.Amenities = patch.Amenities
	}
	if patch.InputMode != nil {
		out.InputMode = *patch.InputMode
	}
	if patch.ListingURL != nil {
		out.ListingURL = *patch.ListingURL
	}
	return out
}

func mergePolicy(base api.DiscountPolicy, patch *api.DiscountPolicyPatch) api.DiscountPolicy {
	if patch == nil {
		return base
	}
	out := base
	if patch.WeeklyDiscountPct != nil {
		out.WeeklyDiscountPct = *patch.WeeklyDiscountPct
	}
	if patch.MonthlyDiscountPct != nil {
		out.MonthlyDiscountPct = *patch.MonthlyDiscountPct
	}
	if patch.Refundable != nil {
		out.Refundable = patch.Refundable
	}
	if patch.NonRefundableDiscountPct != nil {
		out.NonRefundableDiscountPct = *patch.NonRefundableDiscountPct
	}
	if patch.StackingMode != nil {
		out.StackingMode = *patch.StackingMode
	}
	if patch.MaxTotalDiscountPct != nil {
		out.MaxTotalDiscountPct = patch.MaxTotalDiscountPct
	}
	return out
}

const shareIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newShareID returns a 16-character unguessable token. Share IDs are
// capability URLs: whoever holds one can read the report.
func newShareID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = shareIDAlphabet[int(b)%len(shareIDAlphabet)]
	}
	return string(buf)
}
