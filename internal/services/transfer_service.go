package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/audit"
	"github.com/trustbank/backend/internal/config"
	"github.com/trustbank/backend/internal/models"
)

// ErrSameAccount rejects a transfer whose source and destination are
// the same account.
var ErrSameAccount = errors.New("cannot transfer to same account")

// TransferService executes OTP-confirmed transfers between two
// accounts. Validation order is fixed: destination resolution, daily
// limit, OTP confirmation, funds. The first failing check wins and
// nothing is mutated. Execution is one store transaction with both
// account rows locked in account-number order; OTP consumption commits
// with the balance mutation it authorizes.
type TransferService struct {
	db       *sql.DB
	ledger   *LedgerService
	otp      *OTPService
	rates    RateSource
	notifier Notifier
	audit    *audit.Logger
	config   *config.TransferConfig
}

func NewTransferService(db *sql.DB, ledger *LedgerService, otp *OTPService, rates RateSource, notifier Notifier, cfg *config.TransferConfig) *TransferService {
	return &TransferService{
		db:       db,
		ledger:   ledger,
		otp:      otp,
		rates:    rates,
		notifier: notifier,
		audit:    audit.NewLogger(),
		config:   cfg,
	}
}

// Execute runs the transfer, retrying a bounded number of times on
// store contention before surfacing ErrStoreContention.
func (s *TransferService) Execute(ctx context.Context, req *models.TransferRequest) (*models.TransferResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, models.ErrInvalidAmount
	}
	if req.FromAccount == req.ToAccount {
		return nil, ErrSameAccount
	}

	var lastErr error
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}

		result, err := s.executeOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			s.audit.LogError("-", req.FromAccount, err)
			return nil, err
		}

		log.Printf("[TRANSFER] Contention on attempt %d for %s -> %s: %v", attempt+1, req.FromAccount, req.ToAccount, err)
		lastErr = err
	}

	s.audit.LogError("-", req.FromAccount, lastErr)
	return nil, models.ErrStoreContention
}

func (s *TransferService) executeOnce(ctx context.Context, req *models.TransferRequest) (*models.TransferResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Locks both rows in account-number order; a missing destination
	// surfaces here as ErrAccountNotFound before any other check.
	source, dest, err := s.ledger.LockAccountPairTx(tx, req.FromAccount, req.ToAccount)
	if err != nil {
		return nil, err
	}

	if source.Status != models.AccountStatusActive || dest.Status != models.AccountStatusActive {
		return nil, models.ErrAccountInactive
	}

	if source.TransactionCount >= source.MaxTransactionCount {
		return nil, models.ErrDailyLimitExceeded
	}

	pending, err := s.otp.ConfirmTx(tx, req.FromAccount, req.OTP)
	if err != nil {
		return nil, err
	}
	// The code must authorize this exact transfer, not just any
	// transfer from the source account. An empty tendered currency
	// resolves to the source's, matching issuance.
	tendered := req.Currency
	if tendered == "" {
		tendered = source.Currency
	}
	if pending.ToAccount != req.ToAccount || !pending.Amount.Equal(req.Amount) || pending.Currency != tendered {
		return nil, models.ErrInvalidOTP
	}

	debitAmount, creditAmount, err := s.convertAmounts(ctx, req, source, dest)
	if err != nil {
		return nil, err
	}

	if source.Balance.LessThan(debitAmount) {
		return nil, models.ErrInsufficientFunds
	}

	newSourceBalance := source.Balance.Sub(debitAmount)
	newDestBalance := dest.Balance.Add(creditAmount)

	if err := s.ledger.UpdateBalanceTx(tx, source, newSourceBalance, source.TransactionCount+1); err != nil {
		return nil, err
	}
	if err := s.ledger.UpdateBalanceTx(tx, dest, newDestBalance, dest.TransactionCount); err != nil {
		return nil, err
	}

	debitTxID := uuid.NewString()
	creditTxID := uuid.NewString()

	if err := s.ledger.AppendTransactionTx(tx, &models.Transaction{
		TransactionID: debitTxID,
		AccountNumber: source.AccountNumber,
		Counterparty:  dest.AccountNumber,
		Amount:        debitAmount.Neg(),
		Currency:      source.Currency,
		Type:          models.TransactionTypeTransfer,
		Narration:     req.Narration,
	}); err != nil {
		return nil, err
	}

	if err := s.ledger.AppendTransactionTx(tx, &models.Transaction{
		TransactionID: creditTxID,
		AccountNumber: dest.AccountNumber,
		Counterparty:  source.AccountNumber,
		Amount:        creditAmount,
		Currency:      dest.Currency,
		Type:          models.TransactionTypeDeposit,
		Narration:     req.Narration,
	}); err != nil {
		return nil, err
	}

	if err := s.otp.ConsumeTx(tx, pending); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogTransfer(pending.TransferID, source.AccountNumber, dest.AccountNumber, debitAmount, "SUCCESS")

	// The transfer is committed; notification failures must not undo
	// that fact.
	go s.notifier.TransferReceived(context.Background(), dest.UserID, source.AccountName, creditAmount, dest.Currency)

	return &models.TransferResult{
		TransferID:         pending.TransferID,
		FromAccountBalance: newSourceBalance,
		ToAccountBalance:   newDestBalance,
		TransactionIDs:     []string{debitTxID, creditTxID},
	}, nil
}

// convertAmounts computes the debit in the source account's currency
// and the credit in the destination's. A tendered currency that
// differs from an account currency requires a live rate; an
// unavailable rate fails the transfer rather than assuming parity.
func (s *TransferService) convertAmounts(ctx context.Context, req *models.TransferRequest, source, dest *models.Account) (decimal.Decimal, decimal.Decimal, error) {
	tendered := req.Currency
	if tendered == "" {
		tendered = source.Currency
	}

	debit := req.Amount
	if tendered != source.Currency {
		rate, err := s.rates.Rate(ctx, tendered, source.Currency)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		debit = req.Amount.Mul(rate).Round(2)
	}

	credit := req.Amount
	if tendered != dest.Currency {
		rate, err := s.rates.Rate(ctx, tendered, dest.Currency)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		credit = req.Amount.Mul(rate).Round(2)
	}

	return debit, credit, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, errOptimisticLock) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock unavailable
			return true
		}
	}

	return false
}
