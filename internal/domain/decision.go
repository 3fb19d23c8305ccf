package domain

// ReasonAllChecksPassed is the canned reason attached to a decision when no
// rule fired.
const ReasonAllChecksPassed = "Transaction passed all checks"

// FraudDecision is the immutable outcome of evaluating one transaction.
// It is produced by the rule engine and never mutated afterwards; the
// caller decides whether to turn it into an alert.
type FraudDecision struct {
	TransactionID string `json:"transactionId"`
	Fraud         bool   `json:"fraud"`

	// RiskScore is the aggregated rule contribution, clamped to [0,100].
	RiskScore int `json:"riskScore"`

	// Reasons and TriggeredRules preserve rule evaluation order.
	Reasons        []string `json:"reasons"`
	TriggeredRules []string `json:"triggeredRules"`
}

// Approve builds a clean decision for a transaction that passed all checks.
func Approve(txID string) FraudDecision {
	return FraudDecision{
		TransactionID:  txID,
		Fraud:          false,
		RiskScore:      0,
		Reasons:        []string{ReasonAllChecksPassed},
		TriggeredRules: []string{},
	}
}

// Review builds a decision from an externally computed score. The fraud
// verdict is strict: a score of exactly 50 is not flagged.
func Review(txID string, score int, reasons, triggeredRules []string) FraudDecision {
	return FraudDecision{
		TransactionID:  txID,
		Fraud:          score > 50,
		RiskScore:      score,
		Reasons:        reasons,
		TriggeredRules: triggeredRules,
	}
}
