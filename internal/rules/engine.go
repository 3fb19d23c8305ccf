// Package rules implements the fraud-detection rule engine.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FraudThreshold is the engine-level score at or above which a transaction
// is flagged as fraud. It is independent of per-rule thresholds.
const FraudThreshold = 50

// Providers are the injectable signal sources consumed by the built-in
// rules. Any of them may be nil; the affected rule then falls back to its
// cannot-determine policy.
type Providers struct {
	Velocity    domain.VelocityCounter
	Locations   domain.LocationProfiler
	AccountAges domain.AccountAges
}

type ruleEntry struct {
	rule      domain.Rule
	enabled   bool
	threshold int
}

// Engine owns an ordered set of rules and their enabled/threshold
// configuration, and evaluates transactions into fraud decisions.
//
// The engine is safe for concurrent use. Each evaluation observes one
// consistent snapshot of the configuration; a configuration update is
// never visible mid-evaluation.
type Engine struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*ruleEntry
}

// NewEngine creates an engine with the four built-in rules registered in
// their fixed evaluation order, all enabled with default thresholds.
func NewEngine(providers Providers) *Engine {
	e := &Engine{
		entries: make(map[string]*ruleEntry),
	}

	// Registration order is evaluation order.
	e.mustRegister(&amountRule{}, defaultAmountThreshold, true)
	e.mustRegister(&velocityRule{counter: providers.Velocity}, defaultVelocityThreshold, true)
	e.mustRegister(&locationRule{profiler: providers.Locations}, defaultLocationThreshold, true)
	e.mustRegister(&newAccountRule{ages: providers.AccountAges}, defaultNewAccountThreshold, true)

	return e
}

// Register adds a rule to the end of the evaluation order. The rule name
// is normalized before registration; duplicate names are rejected.
func (e *Engine) Register(rule domain.Rule, threshold int, enabled bool) error {
	name := domain.NormalizeRuleName(rule.Name())

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.entries[name]; exists {
		return fmt.Errorf("rule %q is already registered", name)
	}

	e.entries[name] = &ruleEntry{rule: rule, enabled: enabled, threshold: threshold}
	e.order = append(e.order, name)
	return nil
}

func (e *Engine) mustRegister(rule domain.Rule, threshold int, enabled bool) {
	if err := e.Register(rule, threshold, enabled); err != nil {
		panic(err)
	}
}

// Evaluate runs every enabled rule against the transaction in registration
// order and combines the findings into a single decision. Rule score
// contributions sum without interaction; the total is clamped to [0,100]
// and the transaction is flagged fraud iff the total reaches
// FraudThreshold.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) domain.FraudDecision {
	// Snapshot configuration so a concurrent SetRuleEnabled or
	// SetRuleThreshold cannot be observed partially applied.
	type step struct {
		rule      domain.Rule
		threshold int
	}

	e.mu.RLock()
	steps := make([]step, 0, len(e.order))
	for _, name := range e.order {
		entry := e.entries[name]
		if entry.enabled {
			steps = append(steps, step{rule: entry.rule, threshold: entry.threshold})
		}
	}
	e.mu.RUnlock()

	score := 0
	var reasons []string
	var triggered []string

	for _, s := range steps {
		finding, fired := s.rule.Evaluate(ctx, tx, s.threshold)
		if !fired {
			continue
		}
		score += finding.Score
		reasons = append(reasons, finding.Reason)
		triggered = append(triggered, s.rule.Name())
	}

	if score > 100 {
		score = 100
	}

	if len(triggered) == 0 {
		return domain.Approve(tx.ID)
	}

	return domain.FraudDecision{
		TransactionID:  tx.ID,
		Fraud:          score >= FraudThreshold,
		RiskScore:      score,
		Reasons:        reasons,
		TriggeredRules: triggered,
	}
}

// SetRuleEnabled enables or disables a rule by name. Returns false and
// leaves configuration unchanged when the name is unknown.
func (e *Engine) SetRuleEnabled(name string, enabled bool) bool {
	key := domain.NormalizeRuleName(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[key]
	if !ok {
		return false
	}
	entry.enabled = enabled
	return true
}

// SetRuleThreshold sets a rule's threshold by name. Returns false and
// leaves configuration unchanged when the name is unknown.
func (e *Engine) SetRuleThreshold(name string, threshold int) bool {
	key := domain.NormalizeRuleName(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[key]
	if !ok {
		return false
	}
	entry.threshold = threshold
	return true
}

// EnabledRules returns a snapshot of rule name to enabled flag, in no
// particular order. Mutating the result does not affect the engine.
func (e *Engine) EnabledRules() map[string]bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := make(map[string]bool, len(e.entries))
	for name, entry := range e.entries {
		snapshot[name] = entry.enabled
	}
	return snapshot
}

// RuleThreshold returns a rule's threshold, or 0 for an unknown name.
func (e *Engine) RuleThreshold(name string) int {
	key := domain.NormalizeRuleName(name)

	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.entries[key]
	if !ok {
		return 0
	}
	return entry.threshold
}

// RuleNames returns the rule names in evaluation order.
func (e *Engine) RuleNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.order))
	copy(names, e.order)
	return names
}

// EnabledCount returns the number of enabled rules.
func (e *Engine) EnabledCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	count := 0
	for _, entry := range e.entries {
		if entry.enabled {
			count++
		}
	}
	return count
}

// TotalCount returns the number of registered rules.
func (e *Engine) TotalCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}
