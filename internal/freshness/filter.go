// Package freshness drops headlines that are too old to publish.
package freshness

import (
	"fmt"
	"strings"
	"time"

	"horse.fit/allball/internal/normalize"
)

// Policy selects how timestamps are treated.
type Policy int

const (
	// Strict keeps only dated items inside the age window.
	Strict Policy = iota
	// AssumeFresh treats every item as fresh, dated or not. Used for upstreams
	// that omit or misreport publication times.
	AssumeFresh
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "drop"
	case AssumeFresh:
		return "assume_fresh"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the FRESHNESS_UNDATED_POLICY spellings.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "drop", "strict":
		return Strict, nil
	case "assume_fresh", "assume-fresh":
		return AssumeFresh, nil
	default:
		return Strict, fmt.Errorf("unknown freshness policy %q", raw)
	}
}

// Verdict is the outcome for one item.
type Verdict int

const (
	Fresh Verdict = iota
	Stale
	Undated
)

// Filter applies a maximum age. MaxAge <= 0 disables age checks.
type Filter struct {
	MaxAge time.Duration
	Policy Policy
}

func New(maxAgeHours int, policy Policy) Filter {
	return Filter{
		MaxAge: time.Duration(maxAgeHours) * time.Hour,
		Policy: policy,
	}
}

// Classify reports where item falls relative to now, ignoring the policy.
func (f Filter) Classify(item normalize.CanonicalItem, now time.Time) Verdict {
	if !item.HasTimestamp() {
		return Undated
	}
	if f.MaxAge <= 0 {
		return Fresh
	}
	if now.Sub(*item.PublishedAt) > f.MaxAge {
		return Stale
	}
	return Fresh
}

// Keep applies the policy to Classify's verdict. Items dated in the future are
// kept.
func (f Filter) Keep(item normalize.CanonicalItem, now time.Time) bool {
	if f.Policy == AssumeFresh {
		return true
	}
	return f.Classify(item, now) == Fresh
}
