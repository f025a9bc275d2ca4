// Package store contains the database layer for pricedeck.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pricedeck/pkg/api"
)

// ReportStatus represents the lifecycle state of a report.
type ReportStatus string

const (
	StatusQueued  ReportStatus = "queued"
	StatusRunning ReportStatus = "running"
	StatusReady   ReportStatus = "ready"
	StatusError   ReportStatus = "error"
)

// Terminal reports whether the status will no longer change.
func (s ReportStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Report is one pricing-analysis job and its eventual result.
//
// The input fields are immutable after creation (UpdateReportAttributes
// is the single exception: url-mode runs merge scraped listing details back into
// the attribute bag). The worker-coordination fields are only ever
// mutated through Claim/Heartbeat/Complete/Fail.
type Report struct {
	ID      uuid.UUID
	ShareID string

	// Nil for anonymous submissions.
	UserID *uuid.UUID

	Address        string
	Attributes     api.ListingAttributes
	DateStart      time.Time
	DateEnd        time.Time
	DiscountPolicy api.DiscountPolicy
	CacheKey       string

	Status      ReportStatus
	ClaimedAt   *time.Time
	ClaimToken  *uuid.UUID
	HeartbeatAt *time.Time
	Attempts    int

	Summary      json.RawMessage
	Calendar     json.RawMessage
	Meta         json.RawMessage
	ErrorMessage *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CacheEntry is one row of the pricing cache. Expiry is advisory:
// readers filter on ExpiresAt, nothing actively evicts.
type CacheEntry struct {
	CacheKey  string
	Summary   json.RawMessage
	Calendar  json.RawMessage
	Meta      json.RawMessage
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Listing is a host's reusable input template. Deleting a listing
// cascades its link rows only; reports stay independently shareable.
type Listing struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Address        string
	Attributes     api.ListingAttributes
	DiscountPolicy api.DiscountPolicy
	LatestReportID *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LinkTrigger records how a listing triggered a report.
type LinkTrigger string

const (
	TriggerManual    LinkTrigger = "manual"
	TriggerRerun     LinkTrigger = "rerun"
	TriggerScheduled LinkTrigger = "scheduled"
)

// ListingReportLink is the join row between listings and reports.
// At most one link exists per (listing, report) pair.
type ListingReportLink struct {
	ID        int64
	ListingID uuid.UUID
	ReportID  uuid.UUID
	Trigger   LinkTrigger
	CreatedAt time.Time
}

// User is a host account. Authentication is by API key; only the
// key's hash is persisted.
type User struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}
