package rules

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Default thresholds for the built-in rules.
const (
	defaultAmountThreshold     = 1000 // dollars
	defaultVelocityThreshold   = 5    // transactions per window
	defaultLocationThreshold   = 500  // kilometers from home
	defaultNewAccountThreshold = 7    // days
)

// Fixed score contributions per rule.
const (
	amountScore     = 30
	velocityScore   = 25
	locationScore   = 35
	newAccountScore = 20
)

// amountRule fires when the transaction amount strictly exceeds the
// threshold.
type amountRule struct{}

func (r *amountRule) Name() string { return domain.RuleAmount }

func (r *amountRule) Evaluate(ctx context.Context, tx *domain.Transaction, threshold int) (domain.Finding, bool) {
	if tx.Amount <= float64(threshold) {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Score:  amountScore,
		Reason: fmt.Sprintf("Transaction amount $%.2f exceeds threshold", tx.Amount),
	}, true
}

// velocityRule fires when the user's in-window transaction count strictly
// exceeds the threshold. Without a counter, or when the counter errors,
// the rule has no signal and does not fire.
type velocityRule struct {
	counter domain.VelocityCounter
}

func (r *velocityRule) Name() string { return domain.RuleVelocity }

func (r *velocityRule) Evaluate(ctx context.Context, tx *domain.Transaction, threshold int) (domain.Finding, bool) {
	if r.counter == nil {
		return domain.Finding{}, false
	}
	count, err := r.counter.Count(ctx, tx.UserID)
	if err != nil || count <= int64(threshold) {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Score:  velocityScore,
		Reason: "High transaction velocity detected",
	}, true
}

// locationRule fires when the transaction origin is farther from the
// user's usual location than the threshold allows. A transaction with no
// location at all is treated as suspicious and fires the rule.
type locationRule struct {
	profiler domain.LocationProfiler
}

func (r *locationRule) Name() string { return domain.RuleLocation }

func (r *locationRule) Evaluate(ctx context.Context, tx *domain.Transaction, threshold int) (domain.Finding, bool) {
	if tx.Location == nil {
		return domain.Finding{
			Score:  locationScore,
			Reason: "Transaction origin unknown",
		}, true
	}
	if r.profiler == nil {
		return domain.Finding{}, false
	}
	km, known := r.profiler.Displacement(ctx, tx.UserID, tx.Location)
	if !known || km <= float64(threshold) {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Score:  locationScore,
		Reason: "Unusual location detected",
	}, true
}

// newAccountRule fires when the user's account is younger than the
// threshold in days. An account unknown to the provider yields no verdict
// and does not fire.
type newAccountRule struct {
	ages domain.AccountAges
}

func (r *newAccountRule) Name() string { return domain.RuleNewAccount }

func (r *newAccountRule) Evaluate(ctx context.Context, tx *domain.Transaction, threshold int) (domain.Finding, bool) {
	if r.ages == nil {
		return domain.Finding{}, false
	}
	days, known := r.ages.AgeDays(ctx, tx.UserID)
	if !known || days >= threshold {
		return domain.Finding{}, false
	}
	return domain.Finding{
		Score:  newAccountScore,
		Reason: "New account with high-risk transaction",
	}, true
}
