package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pricedeck/pkg/api"
)

const (
	dateLayout = "2006-01-02"

	minNights = 1
	maxNights = 180
)

var stackingModes = map[string]bool{
	"compound":  true,
	"additive":  true,
	"best_only": true,
}

// ValidationError collects every violated field of a submission. The
// whole input is checked before returning, so callers see all problems
// at once instead of fixing them one round-trip at a time.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("invalid input:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s: %s;", k, e.Fields[k])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	// Keep the first message per field.
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// effectiveInput is a submission after listing resolution and override
// merging, the shape every report is created from.
type effectiveInput struct {
	Address        string
	Attributes     api.ListingAttributes
	StartDate      string
	EndDate        string
	DiscountPolicy api.DiscountPolicy
}

// validate checks the full effective input and reports every violation.
func validate(in effectiveInput) error {
	var verr ValidationError

	mode := in.Attributes.InputMode
	switch mode {
	case "", "criteria":
		if strings.TrimSpace(in.Address) == "" {
			verr.add("address", "address is required")
		}
	case "url":
		if strings.TrimSpace(in.Attributes.ListingURL) == "" {
			verr.add("attributes.listingUrl", "listing url is required in url mode")
		}
	default:
		verr.add("attributes.inputMode", `must be "criteria" or "url"`)
	}

	start, startErr := time.Parse(dateLayout, in.StartDate)
	if in.StartDate == "" {
		verr.add("startDate", "start date is required")
	} else if startErr != nil {
		verr.add("startDate", "must be a YYYY-MM-DD date")
	}

	end, endErr := time.Parse(dateLayout, in.EndDate)
	if in.EndDate == "" {
		verr.add("endDate", "end date is required")
	} else if endErr != nil {
		verr.add("endDate", "must be a YYYY-MM-DD date")
	}

	if startErr == nil && endErr == nil && in.StartDate != "" && in.EndDate != "" {
		// End date is exclusive: nights = end - start.
		nights := int(end.Sub(start).Hours() / 24)
		if nights < minNights {
			verr.add("endDate", "must be after start date")
		} else if nights > maxNights {
			verr.add("endDate", fmt.Sprintf("date range must cover at most %d nights", maxNights))
		}
	}

	if in.Attributes.Bedrooms < 0 || in.Attributes.Bedrooms > 50 {
		verr.add("attributes.bedrooms", "must be between 0 and 50")
	}
	if in.Attributes.Bathrooms < 0 || in.Attributes.Bathrooms > 50 {
		verr.add("attributes.bathrooms", "must be between 0 and 50")
	}
	if in.Attributes.MaxGuests < 0 || in.Attributes.MaxGuests > 100 {
		verr.add("attributes.maxGuests", "must be between 0 and 100")
	}

	validatePolicy(in.DiscountPolicy, &verr)

	return verr.orNil()
}

func validatePolicy(p api.DiscountPolicy, verr *ValidationError) {
	checkPct := func(field string, v float64) {
		if v < 0 || v > 100 {
			verr.add(field, "must be a percentage between 0 and 100")
		}
	}
	checkPct("discountPolicy.weeklyDiscountPct", p.WeeklyDiscountPct)
	checkPct("discountPolicy.monthlyDiscountPct", p.MonthlyDiscountPct)
	checkPct("discountPolicy.nonRefundableDiscountPct", p.NonRefundableDiscountPct)
	if p.MaxTotalDiscountPct != nil {
		checkPct("discountPolicy.maxTotalDiscountPct", *p.MaxTotalDiscountPct)
	}
	if p.StackingMode != "" && !stackingModes[p.StackingMode] {
		verr.add("discountPolicy.stackingMode", `must be one of "compound", "additive", "best_only"`)
	}
}
