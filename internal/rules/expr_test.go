package rules

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestNewExprRule(t *testing.T) {
	t.Run("compile error", func(t *testing.T) {
		if _, err := NewExprRule("broken", "amount >", 10, "x"); err == nil {
			t.Error("invalid expression must fail to compile")
		}
	})

	t.Run("non-bool expression", func(t *testing.T) {
		if _, err := NewExprRule("numeric", "amount + 1.0", 10, "x"); err == nil {
			t.Error("non-boolean expression must be rejected")
		}
	})

	t.Run("unknown variable", func(t *testing.T) {
		if _, err := NewExprRule("bad_var", "balance > 100.0", 10, "x"); err == nil {
			t.Error("unknown variable must fail to compile")
		}
	})

	t.Run("name normalized", func(t *testing.T) {
		rule, err := NewExprRule("Night Owl Rule", "hour < 6", 10, "x")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rule.Name() != "night_owl_rule" {
			t.Errorf("expected normalized name, got %s", rule.Name())
		}
	})
}

func TestExprRuleEvaluate(t *testing.T) {
	ctx := context.Background()

	rule, err := NewExprRule(
		"eur_high_amount",
		`currency == "EUR" && amount > double(threshold)`,
		15,
		"High EUR amount",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("fires", func(t *testing.T) {
		tx := &domain.Transaction{Amount: 600, Currency: "EUR"}
		finding, fired := rule.Evaluate(ctx, tx, 500)
		if !fired {
			t.Fatal("expected rule to fire")
		}
		if finding.Score != 15 || finding.Reason != "High EUR amount" {
			t.Errorf("unexpected finding: %+v", finding)
		}
	})

	t.Run("wrong currency", func(t *testing.T) {
		tx := &domain.Transaction{Amount: 600, Currency: "USD"}
		if _, fired := rule.Evaluate(ctx, tx, 500); fired {
			t.Error("expected rule not to fire")
		}
	})

	t.Run("threshold variable", func(t *testing.T) {
		tx := &domain.Transaction{Amount: 600, Currency: "EUR"}
		if _, fired := rule.Evaluate(ctx, tx, 700); fired {
			t.Error("amount under the configured threshold must not fire")
		}
	})
}

func TestExprRuleLocationAndHour(t *testing.T) {
	ctx := context.Background()

	rule, err := NewExprRule(
		"foreign_night",
		`country != "US" && hour >= 0 && hour < 6`,
		20,
		"Foreign night-time transaction",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	at := func(hour int, loc *domain.Location) *domain.Transaction {
		return &domain.Transaction{
			Timestamp: time.Date(2025, 6, 1, hour, 0, 0, 0, time.UTC),
			Location:  loc,
		}
	}

	t.Run("missing location maps to empty country", func(t *testing.T) {
		if _, fired := rule.Evaluate(ctx, at(3, nil), 0); !fired {
			t.Error("empty country at night must fire")
		}
	})

	t.Run("domestic daytime", func(t *testing.T) {
		loc := &domain.Location{City: "Chicago", Country: "US"}
		if _, fired := rule.Evaluate(ctx, at(14, loc), 0); fired {
			t.Error("domestic daytime transaction must not fire")
		}
	})
}

func TestRegisterConfigured(t *testing.T) {
	t.Run("registers in order", func(t *testing.T) {
		engine := NewEngine(Providers{Locations: &stubProfiler{km: 0, known: true}})

		err := RegisterConfigured(engine, []domain.CustomRuleConfig{
			{Name: "eur_rule", Expression: `currency == "EUR"`, Score: 10, Reason: "EUR transaction"},
			{Name: "crypto_rule", Expression: `merchant_id == "MERCH-CRYPTO"`, Score: 45, Reason: "Crypto merchant", Disabled: true},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		names := engine.RuleNames()
		if len(names) != 6 {
			t.Fatalf("expected 6 rules, got %v", names)
		}
		if names[4] != "eur_rule" || names[5] != "crypto_rule" {
			t.Errorf("custom rules must follow the builtins, got %v", names)
		}

		enabled := engine.EnabledRules()
		if !enabled["eur_rule"] {
			t.Error("eur_rule must be enabled")
		}
		if enabled["crypto_rule"] {
			t.Error("crypto_rule must honor the disabled flag")
		}

		// Registered rules contribute to evaluation.
		tx := quietTransaction()
		tx.Currency = "EUR"
		tx.MerchantID = "MERCH-CRYPTO"
		decision := engine.Evaluate(context.Background(), tx)
		if decision.RiskScore != 10 {
			t.Errorf("expected score 10, got %d", decision.RiskScore)
		}
	})

	t.Run("compile error aborts", func(t *testing.T) {
		engine := NewEngine(Providers{})
		err := RegisterConfigured(engine, []domain.CustomRuleConfig{
			{Name: "broken", Expression: "amount >"},
		})
		if err == nil {
			t.Fatal("expected a compile error")
		}
		if engine.TotalCount() != 4 {
			t.Errorf("failed registration must not add rules, got %d", engine.TotalCount())
		}
	})

	t.Run("duplicate name aborts", func(t *testing.T) {
		engine := NewEngine(Providers{})
		err := RegisterConfigured(engine, []domain.CustomRuleConfig{
			{Name: "Amount Rule", Expression: "amount > 10.0", Score: 5, Reason: "x"},
		})
		if err == nil {
			t.Error("expected a duplicate-name error")
		}
	})
}

func TestEngineWithExprRule(t *testing.T) {
	engine := NewEngine(Providers{Locations: &stubProfiler{km: 0, known: true}})

	rule, err := NewExprRule("crypto_merchant", `merchant_id == "MERCH-CRYPTO"`, 45, "Crypto merchant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := engine.Register(rule, 0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx := quietTransaction()
	tx.MerchantID = "MERCH-CRYPTO"

	decision := engine.Evaluate(context.Background(), tx)
	if decision.RiskScore != 45 {
		t.Errorf("expected score 45, got %d", decision.RiskScore)
	}
	if decision.Fraud {
		t.Error("score 45 must not be flagged")
	}

	found := false
	for _, name := range decision.TriggeredRules {
		if name == "crypto_merchant" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected crypto_merchant in %v", decision.TriggeredRules)
	}

	// Registered rules participate in configuration like builtins.
	if !engine.SetRuleEnabled("crypto_merchant", false) {
		t.Fatal("expected registered rule to be configurable")
	}
	decision = engine.Evaluate(context.Background(), tx)
	if decision.RiskScore != 0 {
		t.Errorf("disabled expression rule must not contribute, got %d", decision.RiskScore)
	}
}
