package rules

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// stubVelocity returns a fixed in-window count.
type stubVelocity struct {
	count int64
}

func (s *stubVelocity) Observe(ctx context.Context, userID string) (int64, error) {
	return s.count, nil
}

func (s *stubVelocity) Count(ctx context.Context, userID string) (int64, error) {
	return s.count, nil
}

// stubProfiler returns a fixed displacement.
type stubProfiler struct {
	km    float64
	known bool
}

func (s *stubProfiler) Displacement(ctx context.Context, userID string, loc *domain.Location) (float64, bool) {
	return s.km, s.known
}

// stubAges returns a fixed account age.
type stubAges struct {
	days  int
	known bool
}

func (s *stubAges) AgeDays(ctx context.Context, userID string) (int, bool) {
	return s.days, s.known
}

func quietTransaction() *domain.Transaction {
	// Low amount, known nearby location: no builtin rule fires with
	// nil velocity and account-age providers.
	return &domain.Transaction{
		ID:       "tx-001",
		UserID:   "user-001",
		Amount:   50,
		Currency: "USD",
		Location: &domain.Location{City: "New York", Country: "US"},
	}
}

func TestEngineDefaults(t *testing.T) {
	engine := NewEngine(Providers{})

	if got := engine.TotalCount(); got != 4 {
		t.Fatalf("expected 4 builtin rules, got %d", got)
	}
	if got := engine.EnabledCount(); got != 4 {
		t.Errorf("expected all rules enabled, got %d", got)
	}

	wantOrder := []string{
		domain.RuleAmount,
		domain.RuleVelocity,
		domain.RuleLocation,
		domain.RuleNewAccount,
	}
	names := engine.RuleNames()
	for i, want := range wantOrder {
		if names[i] != want {
			t.Errorf("rule %d: expected %s, got %s", i, want, names[i])
		}
	}

	thresholds := map[string]int{
		domain.RuleAmount:     1000,
		domain.RuleVelocity:   5,
		domain.RuleLocation:   500,
		domain.RuleNewAccount: 7,
	}
	for name, want := range thresholds {
		if got := engine.RuleThreshold(name); got != want {
			t.Errorf("%s: expected threshold %d, got %d", name, want, got)
		}
	}
}

func TestEvaluateCleanTransaction(t *testing.T) {
	engine := NewEngine(Providers{Locations: &stubProfiler{km: 0, known: true}})

	decision := engine.Evaluate(context.Background(), quietTransaction())

	if decision.Fraud {
		t.Error("expected clean transaction not to be flagged")
	}
	if decision.RiskScore != 0 {
		t.Errorf("expected score 0, got %d", decision.RiskScore)
	}
	if len(decision.Reasons) != 1 || decision.Reasons[0] != domain.ReasonAllChecksPassed {
		t.Errorf("expected canned pass reason, got %v", decision.Reasons)
	}
	if len(decision.TriggeredRules) != 0 {
		t.Errorf("expected no triggered rules, got %v", decision.TriggeredRules)
	}
}

func TestEvaluateAmountRuleOnly(t *testing.T) {
	// Amount 1500 over the default 1000 threshold with every other
	// signal quiet: score exactly 30, below the fraud threshold.
	engine := NewEngine(Providers{Locations: &stubProfiler{km: 0, known: true}})

	tx := quietTransaction()
	tx.Amount = 1500

	decision := engine.Evaluate(context.Background(), tx)

	if decision.RiskScore != 30 {
		t.Errorf("expected score 30, got %d", decision.RiskScore)
	}
	if decision.Fraud {
		t.Error("score 30 must not be flagged as fraud")
	}
	if len(decision.TriggeredRules) != 1 || decision.TriggeredRules[0] != domain.RuleAmount {
		t.Errorf("expected triggered rules [amount_rule], got %v", decision.TriggeredRules)
	}
	if len(decision.Reasons) != 1 {
		t.Fatalf("expected one reason, got %v", decision.Reasons)
	}
}

func TestEvaluateFraudThreshold(t *testing.T) {
	// Amount (30) + velocity (25) = 55 >= 50: flagged.
	engine := NewEngine(Providers{
		Velocity:  &stubVelocity{count: 10},
		Locations: &stubProfiler{km: 0, known: true},
	})

	tx := quietTransaction()
	tx.Amount = 1500

	decision := engine.Evaluate(context.Background(), tx)

	if decision.RiskScore != 55 {
		t.Errorf("expected score 55, got %d", decision.RiskScore)
	}
	if !decision.Fraud {
		t.Error("score 55 must be flagged as fraud")
	}

	wantRules := []string{domain.RuleAmount, domain.RuleVelocity}
	if len(decision.TriggeredRules) != len(wantRules) {
		t.Fatalf("expected %v, got %v", wantRules, decision.TriggeredRules)
	}
	for i, want := range wantRules {
		if decision.TriggeredRules[i] != want {
			t.Errorf("triggered rule %d: expected %s, got %s", i, want, decision.TriggeredRules[i])
		}
	}
}

func TestEvaluateScoreClamped(t *testing.T) {
	// All four rules firing sums to 110; the score must clamp at 100.
	engine := NewEngine(Providers{
		Velocity:    &stubVelocity{count: 100},
		Locations:   &stubProfiler{km: 9000, known: true},
		AccountAges: &stubAges{days: 1, known: true},
	})

	tx := quietTransaction()
	tx.Amount = 5000

	decision := engine.Evaluate(context.Background(), tx)

	if decision.RiskScore != 100 {
		t.Errorf("expected clamped score 100, got %d", decision.RiskScore)
	}
	if !decision.Fraud {
		t.Error("clamped score must be flagged as fraud")
	}
	if len(decision.TriggeredRules) != 4 {
		t.Errorf("expected all 4 rules triggered, got %v", decision.TriggeredRules)
	}
}

func TestEvaluateDisabledRule(t *testing.T) {
	engine := NewEngine(Providers{Locations: &stubProfiler{km: 0, known: true}})

	if !engine.SetRuleEnabled(domain.RuleAmount, false) {
		t.Fatal("disabling a known rule must succeed")
	}

	tx := quietTransaction()
	tx.Amount = 1500

	decision := engine.Evaluate(context.Background(), tx)
	if decision.RiskScore != 0 {
		t.Errorf("disabled rule must not contribute, got score %d", decision.RiskScore)
	}
}

func TestSetRuleEnabledUnknown(t *testing.T) {
	engine := NewEngine(Providers{})

	before := engine.EnabledRules()

	if engine.SetRuleEnabled("unknown_rule", false) {
		t.Error("unknown rule name must return false")
	}

	after := engine.EnabledRules()
	if len(before) != len(after) {
		t.Fatalf("configuration changed: %v vs %v", before, after)
	}
	for name, enabled := range before {
		if after[name] != enabled {
			t.Errorf("rule %s changed from %v to %v", name, enabled, after[name])
		}
	}
}

func TestSetRuleThreshold(t *testing.T) {
	engine := NewEngine(Providers{})

	if !engine.SetRuleThreshold("Amount Rule", 2000) {
		t.Fatal("normalized rule name must resolve")
	}
	if got := engine.RuleThreshold("amount_rule"); got != 2000 {
		t.Errorf("expected threshold 2000, got %d", got)
	}

	if engine.SetRuleThreshold("unknown_rule", 10) {
		t.Error("unknown rule name must return false")
	}
	if got := engine.RuleThreshold("unknown_rule"); got != 0 {
		t.Errorf("unknown rule threshold must be 0, got %d", got)
	}
}

func TestEnabledRulesSnapshot(t *testing.T) {
	engine := NewEngine(Providers{})

	snapshot := engine.EnabledRules()
	snapshot[domain.RuleAmount] = false

	if fresh := engine.EnabledRules(); !fresh[domain.RuleAmount] {
		t.Error("mutating the snapshot must not affect the engine")
	}
}

func TestIndependentEngineInstances(t *testing.T) {
	first := NewEngine(Providers{})
	second := NewEngine(Providers{})

	first.SetRuleEnabled(domain.RuleAmount, false)
	first.SetRuleThreshold(domain.RuleVelocity, 99)

	if !second.EnabledRules()[domain.RuleAmount] {
		t.Error("engine instances must not share configuration")
	}
	if got := second.RuleThreshold(domain.RuleVelocity); got != 5 {
		t.Errorf("expected default threshold 5, got %d", got)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	engine := NewEngine(Providers{})

	err := engine.Register(&amountRule{}, 100, true)
	if err == nil {
		t.Error("registering a duplicate rule name must fail")
	}
}

func TestConcurrentEvaluateAndConfigure(t *testing.T) {
	engine := NewEngine(Providers{
		Velocity:  &stubVelocity{count: 10},
		Locations: &stubProfiler{km: 0, known: true},
	})

	tx := quietTransaction()
	tx.Amount = 1500

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine.SetRuleEnabled(domain.RuleVelocity, i%2 == 0)
			engine.SetRuleThreshold(domain.RuleAmount, 1000+i)
			_ = engine.Evaluate(context.Background(), tx)
			_ = engine.EnabledRules()
		}(i)
	}
	wg.Wait()

	// Either 30 (velocity disabled) or 55: never a partial snapshot.
	decision := engine.Evaluate(context.Background(), tx)
	if decision.RiskScore != 30 && decision.RiskScore != 55 {
		t.Errorf("unexpected score after concurrent configuration: %d", decision.RiskScore)
	}
}

func TestEvaluationOrderStable(t *testing.T) {
	engine := NewEngine(Providers{
		Velocity:    &stubVelocity{count: 100},
		Locations:   &stubProfiler{km: 9000, known: true},
		AccountAges: &stubAges{days: 0, known: true},
	})

	tx := quietTransaction()
	tx.Amount = 5000

	first := engine.Evaluate(context.Background(), tx)
	for i := 0; i < 10; i++ {
		decision := engine.Evaluate(context.Background(), tx)
		if fmt.Sprint(decision.TriggeredRules) != fmt.Sprint(first.TriggeredRules) {
			t.Fatalf("rule order changed between calls: %v vs %v",
				first.TriggeredRules, decision.TriggeredRules)
		}
	}
}
