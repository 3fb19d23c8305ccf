// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"context"
	"strings"
)

// Built-in rule names. Configuration lookups are keyed by the normalized
// form of these names.
const (
	RuleAmount     = "amount_rule"
	RuleVelocity   = "velocity_rule"
	RuleLocation   = "location_rule"
	RuleNewAccount = "new_account_rule"
)

// Rule is a named, independently configurable fraud check. A rule inspects
// a transaction and, when its condition holds for the configured threshold,
// reports a risk-score contribution and a human-readable reason.
//
// Rules must never fail an evaluation: a rule that cannot produce a verdict
// applies its own cannot-determine policy and returns accordingly.
type Rule interface {
	// Name returns the rule's normalized name.
	Name() string

	// Evaluate inspects a transaction against a threshold. fired is true
	// when the rule contributes to the risk score.
	Evaluate(ctx context.Context, tx *Transaction, threshold int) (f Finding, fired bool)
}

// Finding is a single rule's contribution to a decision.
type Finding struct {
	Score  int
	Reason string
}

// NormalizeRuleName maps a user-supplied rule name to its configuration
// key: lower-case, spaces replaced with underscores. "Amount Rule" and
// "amount_rule" address the same entry.
func NormalizeRuleName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// VelocityCounter reports how many transactions an entity performed inside
// a sliding window. Implementations must be safe for concurrent use.
type VelocityCounter interface {
	// Observe records a transaction for the user and returns the count of
	// transactions observed within the window, including this one.
	Observe(ctx context.Context, userID string) (int64, error)

	// Count returns the current in-window count without recording.
	Count(ctx context.Context, userID string) (int64, error)
}

// LocationProfiler estimates how far a transaction's origin is from the
// user's usual location.
type LocationProfiler interface {
	// Displacement returns the estimated distance in kilometers between
	// loc and the user's home location. known is false when the profiler
	// has no verdict, e.g. the transaction carries no location.
	Displacement(ctx context.Context, userID string, loc *Location) (km float64, known bool)
}

// AccountAges reports how old a user's account is.
type AccountAges interface {
	// AgeDays returns the account age in days. known is false when the
	// account is not registered with the provider.
	AgeDays(ctx context.Context, userID string) (days int, known bool)
}
