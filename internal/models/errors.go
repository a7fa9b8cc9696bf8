package models

import "errors"

// Sentinel errors returned by the core services. The HTTP layer maps
// each one to a status code and a user-facing message; nothing else
// about the failed operation leaks to the caller.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDailyLimitExceeded  = errors.New("daily transaction limit exceeded")
	ErrInvalidOTP          = errors.New("invalid or expired OTP")
	ErrCurrencyUnavailable = errors.New("exchange rate unavailable")
	ErrStoreContention     = errors.New("account busy, please retry")
	ErrAccountInactive     = errors.New("account not active")
	ErrTransactionNotFound = errors.New("transaction not found")
)
