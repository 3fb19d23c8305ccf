package domain

import (
	"strings"
	"time"
)

// Alert status values. Status is a free-form string: UpdateStatus accepts
// any caller-supplied value, and RESOLVED is only guaranteed via Resolve.
const (
	AlertStatusNew      = "NEW"
	AlertStatusResolved = "RESOLVED"
)

// Alert severity, derived from the risk score once at creation time.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Alert type, derived from the first triggered rule.
const (
	AlertTypeAmount   = "AMOUNT"
	AlertTypeVelocity = "VELOCITY"
	AlertTypeLocation = "LOCATION"
	AlertTypeHighRisk = "HIGH_RISK"
)

// FraudAlert records a suspicious transaction flagged by the rule engine.
// Owned exclusively by the alert store once added; mutated only through
// its status-update and resolve operations.
type FraudAlert struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`
	UserID        string `json:"userId"`

	Amount    float64 `json:"amount"`
	RiskScore int     `json:"riskScore"`

	Reasons        []string `json:"reasons"`
	TriggeredRules []string `json:"triggeredRules"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	Status      string `json:"status"`
	AlertType   string `json:"alertType,omitempty"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Resolution  string `json:"resolution,omitempty"`
}

// SeverityForScore maps a risk score to an alert severity.
func SeverityForScore(score int) string {
	switch {
	case score >= 80:
		return SeverityCritical
	case score >= 60:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertTypeForRule derives the alert type from a triggered rule name using
// a case-insensitive substring match.
func AlertTypeForRule(ruleName string) string {
	upper := strings.ToUpper(ruleName)
	switch {
	case strings.Contains(upper, "AMOUNT"):
		return AlertTypeAmount
	case strings.Contains(upper, "VELOCITY"):
		return AlertTypeVelocity
	case strings.Contains(upper, "LOCATION"):
		return AlertTypeLocation
	default:
		return AlertTypeHighRisk
	}
}

// AlertFromDecision builds an alert from a fraud decision and the
// transaction it was made for. Derived fields (id, type, severity,
// description) are left for the alert store to default on Add.
func AlertFromDecision(tx *Transaction, decision FraudDecision) *FraudAlert {
	return &FraudAlert{
		TransactionID:  decision.TransactionID,
		UserID:         tx.UserID,
		Amount:         tx.Amount,
		RiskScore:      decision.RiskScore,
		Reasons:        decision.Reasons,
		TriggeredRules: decision.TriggeredRules,
	}
}
