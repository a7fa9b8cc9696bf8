package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
)

// Transaction statuses
const (
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// Transaction is the immutable record of a balance-affecting event.
// Exactly one row is appended per committed mutation of an account;
// rows are never updated or deleted. Amount carries the sign of the
// event from the owning account's perspective (debits are negative).
type Transaction struct {
	ID            int             `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	Counterparty  string          `json:"counterparty,omitempty" db:"counterparty"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Type          string          `json:"type" db:"type"`
	Status        string          `json:"status" db:"status"`
	Narration     string          `json:"narration,omitempty" db:"narration"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// TransactionFilter narrows a history query. Nil/zero fields mean "no
// constraint".
type TransactionFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	Type      string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Limit     int
}
