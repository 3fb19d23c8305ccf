package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	exprEnvOnce sync.Once
	exprEnv     *cel.Env
	exprEnvErr  error
)

// celEnv returns the shared CEL environment for expression rules.
func celEnv() (*cel.Env, error) {
	exprEnvOnce.Do(func() {
		exprEnv, exprEnvErr = cel.NewEnv(
			cel.Variable("amount", cel.DoubleType),
			cel.Variable("currency", cel.StringType),
			cel.Variable("merchant_id", cel.StringType),
			cel.Variable("user_id", cel.StringType),
			cel.Variable("country", cel.StringType),
			cel.Variable("city", cel.StringType),
			cel.Variable("hour", cel.IntType),
			cel.Variable("threshold", cel.IntType),
		)
	})
	return exprEnv, exprEnvErr
}

// ExprRule is a custom rule defined by a CEL expression over transaction
// fields. It participates in engine configuration like any built-in rule;
// its threshold is exposed to the expression as the "threshold" variable.
type ExprRule struct {
	name    string
	score   int
	reason  string
	program cel.Program
}

// NewExprRule compiles a CEL expression into a rule. The expression must
// evaluate to a boolean; firing contributes the given score and reason.
func NewExprRule(name, expression string, score int, reason string) (*ExprRule, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", name, err)
	}

	return &ExprRule{
		name:    domain.NormalizeRuleName(name),
		score:   score,
		reason:  reason,
		program: program,
	}, nil
}

func (r *ExprRule) Name() string { return r.name }

// Evaluate runs the compiled expression. An evaluation error yields no
// verdict; the rule simply does not fire.
func (r *ExprRule) Evaluate(ctx context.Context, tx *domain.Transaction, threshold int) (domain.Finding, bool) {
	country, city := "", ""
	if tx.Location != nil {
		country = tx.Location.Country
		city = tx.Location.City
	}

	activation := map[string]any{
		"amount":      tx.Amount,
		"currency":    tx.Currency,
		"merchant_id": tx.MerchantID,
		"user_id":     tx.UserID,
		"country":     country,
		"city":        city,
		"hour":        int64(tx.Timestamp.Hour()),
		"threshold":   int64(threshold),
	}

	out, _, err := r.program.Eval(activation)
	if err != nil {
		return domain.Finding{}, false
	}

	fired, ok := out.(types.Bool)
	if !ok || !bool(fired) {
		return domain.Finding{}, false
	}

	return domain.Finding{Score: r.score, Reason: r.reason}, true
}

// RegisterConfigured compiles the configured expression rules and
// registers them into the engine in configuration order, after the
// builtins. The first compile or registration failure aborts.
func RegisterConfigured(e *Engine, cfgs []domain.CustomRuleConfig) error {
	for _, cfg := range cfgs {
		rule, err := NewExprRule(cfg.Name, cfg.Expression, cfg.Score, cfg.Reason)
		if err != nil {
			return err
		}
		if err := e.Register(rule, cfg.Threshold, !cfg.Disabled); err != nil {
			return err
		}
	}
	return nil
}
