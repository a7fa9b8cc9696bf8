package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds one user's monetary balance. Balances are fixed-point
// decimals stored as NUMERIC(12,2); they are mutated only inside a
// store transaction that holds the row lock, and the version column
// backs an optimistic check on every balance write.
type Account struct {
	ID                  int             `json:"id" db:"id"`
	AccountNumber       string          `json:"account_number" db:"account_number"`
	UserID              int             `json:"user_id" db:"user_id"`
	AccountName         string          `json:"account_name" db:"account_name"`
	Balance             decimal.Decimal `json:"balance" db:"balance"`
	Currency            string          `json:"currency" db:"currency"`
	Status              string          `json:"status" db:"status"`
	DailyLimit          decimal.Decimal `json:"daily_limit" db:"daily_limit"`
	TransactionCount    int             `json:"transaction_count" db:"transaction_count"`
	MaxTransactionCount int             `json:"max_transaction_count" db:"max_transaction_count"`
	Version             int             `json:"version" db:"version"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Account statuses
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusFrozen = "FROZEN"
	AccountStatusClosed = "CLOSED"
)
