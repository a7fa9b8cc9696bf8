package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingTransfer is an OTP-gated transfer awaiting confirmation. The
// code itself is never stored, only its hash. A pending transfer is
// consumed at most once, and only by the transaction that commits the
// transfer it authorizes.
type PendingTransfer struct {
	ID            int             `json:"id" db:"id"`
	TransferID    string          `json:"transfer_id" db:"transfer_id"`
	FromAccount   string          `json:"from_account" db:"from_account"`
	ToAccount     string          `json:"to_account" db:"to_account"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at" db:"expires_at"`
	Used          bool            `json:"used" db:"used"`
	UsedAt        *time.Time      `json:"used_at,omitempty" db:"used_at"`
}

// TransferRequest is the explicit input to the transfer engine. The
// engine carries no ambient session state; everything it needs is
// here or loadable from the store.
type TransferRequest struct {
	FromAccount string          `json:"fromAccount" validate:"required,numeric,min=10,max=20"`
	ToAccount   string          `json:"toAccount" validate:"required,numeric,min=10,max=20"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	OTP         string          `json:"otp" validate:"required,len=6,numeric"`
	Narration   string          `json:"narration,omitempty" validate:"max=200"`
}

// TransferResult reports a committed transfer back to the caller.
type TransferResult struct {
	TransferID         string          `json:"transferId"`
	FromAccountBalance decimal.Decimal `json:"fromAccountBalance"`
	ToAccountBalance   decimal.Decimal `json:"toAccountBalance"`
	TransactionIDs     []string        `json:"transactionIds"`
}
