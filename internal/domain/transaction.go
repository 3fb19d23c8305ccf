package domain

import (
	"time"
)

// Transaction represents a financial transaction submitted for screening.
type Transaction struct {
	// Core identifiers
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Counterparty
	MerchantID string `json:"merchantId"`

	// Temporal. Zero value means "assign at store time".
	Timestamp time.Time `json:"timestamp"`

	// Optional origin of the transaction
	Location *Location `json:"location,omitempty"`
}

// Location is the optional geographic origin of a transaction.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// TransactionUpdate carries a partial update for a stored transaction.
// Only well-formed fields are applied: a positive amount, a non-nil
// location, a non-empty merchant. Identifier and timestamp are immutable
// after creation.
type TransactionUpdate struct {
	Amount     float64   `json:"amount"`
	Location   *Location `json:"location,omitempty"`
	MerchantID string    `json:"merchantId"`
}
