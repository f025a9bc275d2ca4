// Package cachekey derives the deterministic digest used to deduplicate
// pricing work. Every code path that submits or processes a report must
// build its key through Compute; the canonicalization here is the only
// thing that guarantees independent call sites agree on a key.
package cachekey

import (
	"encoding/json"
	"fmt"

	"pricedeck/pkg/api"
)

// Canonical defaults applied to absent optional fields. These are part
// of the key contract: changing any of them invalidates every existing
// cache entry.
const (
	DefaultInputMode           = "criteria"
	DefaultStackingMode        = "compound"
	DefaultMaxTotalDiscountPct = 40.0
)

// Input enumerates exactly the pricing-relevant fields. Anything not
// listed here (display name, amenities, square footage) must not affect
// the key.
type Input struct {
	Address        string
	PropertyType   string
	Bedrooms       int
	Bathrooms      float64
	MaxGuests      int
	StartDate      string // YYYY-MM-DD
	EndDate        string // YYYY-MM-DD
	ListingURL     string
	InputMode      string
	DiscountPolicy api.DiscountPolicy
}

// NewInput builds a canonical Input from a report's effective
// submission fields, applying the documented defaults.
func NewInput(address string, attrs api.ListingAttributes, startDate, endDate string, policy api.DiscountPolicy) Input {
	mode := attrs.InputMode
	if mode == "" {
		mode = DefaultInputMode
	}
	return Input{
		Address:        address,
		PropertyType:   attrs.PropertyType,
		Bedrooms:       attrs.Bedrooms,
		Bathrooms:      attrs.Bathrooms,
		MaxGuests:      attrs.MaxGuests,
		StartDate:      startDate,
		EndDate:        endDate,
		ListingURL:     attrs.ListingURL,
		InputMode:      mode,
		DiscountPolicy: policy,
	}
}

// Compute returns the 32-character lowercase hex cache key for in.
// Deterministic: the payload is a fully-enumerated map serialized with
// lexicographically sorted keys, so caller-side field ordering and
// optional-field presence cannot change the result.
func Compute(in Input) string {
	mode := in.InputMode
	if mode == "" {
		mode = DefaultInputMode
	}
	refundable := true
	if in.DiscountPolicy.Refundable != nil {
		refundable = *in.DiscountPolicy.Refundable
	}
	stacking := in.DiscountPolicy.StackingMode
	if stacking == "" {
		stacking = DefaultStackingMode
	}
	maxTotal := DefaultMaxTotalDiscountPct
	if in.DiscountPolicy.MaxTotalDiscountPct != nil {
		maxTotal = *in.DiscountPolicy.MaxTotalDiscountPct
	}

	payload := map[string]any{
		"address":                  in.Address,
		"bathrooms":                in.Bathrooms,
		"bedrooms":                 in.Bedrooms,
		"endDate":                  in.EndDate,
		"inputMode":                mode,
		"listing_url":              in.ListingURL,
		"maxGuests":                in.MaxGuests,
		"maxTotalDiscountPct":      maxTotal,
		"monthlyDiscountPct":       in.DiscountPolicy.MonthlyDiscountPct,
		"nonRefundableDiscountPct": in.DiscountPolicy.NonRefundableDiscountPct,
		"propertyType":             in.PropertyType,
		"refundable":               refundable,
		"stackingMode":             stacking,
		"startDate":                in.StartDate,
		"weeklyDiscountPct":        in.DiscountPolicy.WeeklyDiscountPct,
	}

	// encoding/json marshals map keys in sorted order, which is the
	// canonical form this contract depends on.
	canonical, err := json.Marshal(payload)
	if err != nil {
		// All payload values are plain scalars; Marshal cannot fail.
		panic(fmt.Sprintf("cachekey: marshal canonical payload: %v", err))
	}
	return digest(canonical)
}

// FNV-1a parameters (32-bit).
const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// digest mixes the canonical bytes through 8 independently seeded
// FNV-1a rounds and concatenates their hex output, truncated to 32
// characters. The key only needs to be stable and collision-sparse for
// realistic request cardinality, not cryptographically strong.
func digest(data []byte) string {
	out := make([]byte, 0, 64)
	for round := 0; round < 8; round++ {
		h := uint32(fnvOffset32)
		h ^= uint32(round)
		h *= fnvPrime32
		for _, b := range data {
			h ^= uint32(b)
			h *= fnvPrime32
		}
		out = fmt.Appendf(out, "%08x", h)
	}
	return string(out[:32])
}
