// Package api contains shared JSON request/response structs.
// This package is shared between the CLI, the Controller, and external workers.
package api

import (
	"encoding/json"
	"time"
)

// ListingAttributes is the structured attribute bag describing a property.
// InputMode is either "criteria" (search by attributes) or "url"
// (analyze a specific listing page); ListingURL is only meaningful in
// url mode.
type ListingAttributes struct {
	PropertyType string   `json:"propertyType"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    float64  `json:"bathrooms"`
	Beds         int      `json:"beds,omitempty"`
	MaxGuests    int      `json:"maxGuests"`
	SquareFeet   int      `json:"squareFeet,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	InputMode    string   `json:"inputMode,omitempty"`
	ListingURL   string   `json:"listingUrl,omitempty"`
}

// DiscountPolicy describes the host's discount configuration.
// Pointer fields distinguish "absent" from zero: Refundable defaults to
// true and MaxTotalDiscountPct to 40 when omitted.
type DiscountPolicy struct {
	WeeklyDiscountPct        float64  `json:"weeklyDiscountPct"`
	MonthlyDiscountPct       float64  `json:"monthlyDiscountPct"`
	Refundable               *bool    `json:"refundable,omitempty"`
	NonRefundableDiscountPct float64  `json:"nonRefundableDiscountPct"`
	StackingMode             string   `json:"stackingMode,omitempty"`
	MaxTotalDiscountPct      *float64 `json:"maxTotalDiscountPct,omitempty"`
}

// ListingAttributesPatch is a field-by-field override of ListingAttributes.
// Nil means "keep the base value"; a non-nil pointer overrides even with
// a zero value, so a listing's bedrooms can be overridden back to 0.
type ListingAttributesPatch struct {
	PropertyType *string  `json:"propertyType,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	Beds         *int     `json:"beds,omitempty"`
	MaxGuests    *int     `json:"maxGuests,omitempty"`
	SquareFeet   *int     `json:"squareFeet,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	InputMode    *string  `json:"inputMode,omitempty"`
	ListingURL   *string  `json:"listingUrl,omitempty"`
}

// DiscountPolicyPatch is the override counterpart of DiscountPolicy with
// the same absent-vs-zero rule as ListingAttributesPatch.
type DiscountPolicyPatch struct {
	WeeklyDiscountPct        *float64 `json:"weeklyDiscountPct,omitempty"`
	MonthlyDiscountPct       *float64 `json:"monthlyDiscountPct,omitempty"`
	Refundable               *bool    `json:"refundable,omitempty"`
	NonRefundableDiscountPct *float64 `json:"nonRefundableDiscountPct,omitempty"`
	StackingMode             *string  `json:"stackingMode,omitempty"`
	MaxTotalDiscountPct      *float64 `json:"maxTotalDiscountPct,omitempty"`
}

// SubmitReportRequest is the request body for submitting a pricing report.
// When ListingID is set the saved listing's stored attributes and policy
// are the base and any request-level fields act as overrides.
type SubmitReportRequest struct {
	Address        string                  `json:"address"`
	Attributes     *ListingAttributesPatch `json:"attributes,omitempty"`
	StartDate      string                  `json:"startDate"`
	EndDate        string                  `json:"endDate"`
	DiscountPolicy *DiscountPolicyPatch    `json:"discountPolicy,omitempty"`
	ListingID      string                  `json:"listingId,omitempty"`
	SaveListing    bool                    `json:"saveListing,omitempty"`
	ListingName    string                  `json:"listingName,omitempty"`
}

// SubmitReportResponse is returned after a successful submission.
// Status is "queued" (poll until terminal) or "ready" (cache hit).
type SubmitReportResponse struct {
	ID      string `json:"id"`
	ShareID string `json:"shareId"`
	Status  string `json:"status"`
}

// ReportResponse is the canonical public shape of a report, keyed by
// share ID. Summary and Calendar are present only in "ready" state;
// Error only in "error" state.
type ReportResponse struct {
	ID             string            `json:"id"`
	ShareID        string            `json:"shareId"`
	Status         string            `json:"status"`
	Address        string            `json:"address"`
	Attributes     ListingAttributes `json:"attributes"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	DiscountPolicy DiscountPolicy    `json:"discountPolicy"`
	Attempts       int               `json:"attempts"`
	Summary        json.RawMessage   `json:"summary,omitempty"`
	Calendar       json.RawMessage   `json:"calendar,omitempty"`
	Error          *string           `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// CreateListingRequest is the request body for saving a reusable listing.
type CreateListingRequest struct {
	Name           string             `json:"name"`
	Address        string             `json:"address"`
	Attributes     *ListingAttributes `json:"attributes,omitempty"`
	DiscountPolicy *DiscountPolicy    `json:"discountPolicy,omitempty"`
}

// UpdateListingRequest is the request body for renaming/updating a listing.
// Nil fields are left unchanged.
type UpdateListingRequest struct {
	Name           *string            `json:"name,omitempty"`
	Address        *string            `json:"address,omitempty"`
	Attributes     *ListingAttributes `json:"attributes,omitempty"`
	DiscountPolicy *DiscountPolicy    `json:"discountPolicy,omitempty"`
}

// RerunListingRequest triggers a fresh report from a saved listing.
// Overrides win field-by-field over the listing's stored input.
type RerunListingRequest struct {
	StartDate      string                  `json:"startDate"`
	EndDate        string                  `json:"endDate"`
	Attributes     *ListingAttributesPatch `json:"attributes,omitempty"`
	DiscountPolicy *DiscountPolicyPatch    `json:"discountPolicy,omitempty"`
}

// ListingResponse represents a saved listing in API responses.
type ListingResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Address        string            `json:"address"`
	Attributes     ListingAttributes `json:"attributes"`
	DiscountPolicy DiscountPolicy    `json:"discountPolicy"`
	LatestReportID *string           `json:"latestReportId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ListListingsResponse is the response body for listing enumeration.
type ListListingsResponse struct {
	Listings []ListingResponse `json:"listings"`
}

// CreateUserRequest is the request body for creating a host account.
type CreateUserRequest struct {
	Email string `json:"email"`
}

// CreateUserResponse returns the account plus its API key. The key is
// shown exactly once; only its hash is stored.
type CreateUserResponse struct {
	ID     string `json:"user_id"`
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

// ErrorResponse is the standard error response format. Details carries
// per-field validation messages when applicable.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ---------------------------------------------------------
// Internal worker API
// These shapes define the claim/heartbeat/result contract an
// external worker implements against the controller.
// ---------------------------------------------------------

// ClaimRequest asks the store for the oldest claimable report.
type ClaimRequest struct {
	WorkerToken  string `json:"worker_token"`
	StaleMinutes int    `json:"stale_minutes,omitempty"`
}

// ClaimedReport is the worker's view of a claimed report.
type ClaimedReport struct {
	ID             string            `json:"id"`
	Address        string            `json:"address"`
	Attributes     ListingAttributes `json:"attributes"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	DiscountPolicy DiscountPolicy    `json:"discountPolicy"`
	CacheKey       string            `json:"cacheKey"`
	Attempts       int               `json:"attempts"`
}

// HeartbeatRequest renews a claim. A false Ok in the response means the
// claim was superseded and the worker must abandon the job.
type HeartbeatRequest struct {
	WorkerToken string `json:"worker_token"`
}

// ResultRequest reports the outcome of a claimed report. Either
// Summary+Calendar (success) or Error (terminal failure) must be set.
// UpdatedAttributes carries listing details scraped during a url-mode
// run so they can be merged back into the report input.
type ResultRequest struct {
	WorkerToken       string             `json:"worker_token"`
	Summary           json.RawMessage    `json:"summary,omitempty"`
	Calendar          json.RawMessage    `json:"calendar,omitempty"`
	Meta              json.RawMessage    `json:"meta,omitempty"`
	UpdatedAttributes *ListingAttributes `json:"updatedAttributes,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// AckResponse reports whether a guarded write applied.
type AckResponse struct {
	Ok bool `json:"ok"`
}
