package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/models"
)

// errOptimisticLock marks a balance write that lost the version check.
// The transfer engine treats it as retryable contention.
var errOptimisticLock = fmt.Errorf("optimistic lock failed")

// LedgerService is the single gateway for balance mutation. Every
// read-check-write sequence on an account goes through a row lock
// acquired here, and every committed mutation appends exactly one
// transaction record.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// FindAccountByNumber resolves an account without locking it. Used for
// destination resolution and enquiries.
func (s *LedgerService) FindAccountByNumber(accountNumber string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, account_number, user_id, account_name, balance, currency, status,
		       daily_limit, transaction_count, max_transaction_count, version, updated_at
		FROM accounts
		WHERE account_number = $1
	`, accountNumber).Scan(
		&account.ID, &account.AccountNumber, &account.UserID, &account.AccountName,
		&account.Balance, &account.Currency, &account.Status, &account.DailyLimit,
		&account.TransactionCount, &account.MaxTransactionCount, &account.Version,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountByUser resolves the account owned by a user.
func (s *LedgerService) FindAccountByUser(userID string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, account_number, user_id, account_name, balance, currency, status,
		       daily_limit, transaction_count, max_transaction_count, version, updated_at
		FROM accounts
		WHERE user_id = $1::integer
	`, userID).Scan(
		&account.ID, &account.AccountNumber, &account.UserID, &account.AccountName,
		&account.Balance, &account.Currency, &account.Status, &account.DailyLimit,
		&account.TransactionCount, &account.MaxTransactionCount, &account.Version,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// LockAccountTx locks one account row for the duration of the store
// transaction.
func (s *LedgerService) LockAccountTx(tx *sql.Tx, accountNumber string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, account_number, user_id, account_name, balance, currency, status,
		       daily_limit, transaction_count, max_transaction_count, version, updated_at
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE
	`, accountNumber).Scan(
		&account.ID, &account.AccountNumber, &account.UserID, &account.AccountName,
		&account.Balance, &account.Currency, &account.Status, &account.DailyLimit,
		&account.TransactionCount, &account.MaxTransactionCount, &account.Version,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// LockAccountPairTx locks two account rows in account-number order so
// two simultaneous transfers targeting each other cannot deadlock. The
// returned accounts are in argument order.
func (s *LedgerService) LockAccountPairTx(tx *sql.Tx, firstNumber, secondNumber string) (*models.Account, *models.Account, error) {
	firstLock, secondLock := firstNumber, secondNumber
	if firstNumber > secondNumber {
		firstLock, secondLock = secondNumber, firstNumber
	}

	a, err := s.LockAccountTx(tx, firstLock)
	if err != nil {
		return nil, nil, err
	}

	b, err := s.LockAccountTx(tx, secondLock)
	if err != nil {
		return nil, nil, err
	}

	if firstLock != firstNumber {
		a, b = b, a
	}
	return a, b, nil
}

// UpdateBalanceTx writes a locked account's new balance and
// transaction count. The version check guards against a lost update;
// with the row lock held it should always pass, and a miss is surfaced
// as retryable contention.
func (s *LedgerService) UpdateBalanceTx(tx *sql.Tx, account *models.Account, newBalance decimal.Decimal, newCount int) error {
	if newBalance.IsNegative() {
		return models.ErrInsufficientFunds
	}

	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, transaction_count = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
	`, newBalance, newCount, time.Now(), account.ID, account.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w for account %s", errOptimisticLock, account.AccountNumber)
	}

	return nil
}

// AppendTransactionTx records one immutable transaction row.
func (s *LedgerService) AppendTransactionTx(tx *sql.Tx, record *models.Transaction) error {
	record.Status = models.TransactionStatusCompleted
	record.CreatedAt = time.Now()

	_, err := tx.Exec(`
		INSERT INTO transactions
		(transaction_id, account_number, counterparty, amount, currency, type, status, narration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, record.TransactionID, record.AccountNumber, record.Counterparty, record.Amount,
		record.Currency, record.Type, record.Status, record.Narration, record.CreatedAt)

	return err
}

// ResetDailyCounters zeroes every account's daily transaction counter.
// The reset schedule lives outside the core; this is the operation the
// scheduler (or an admin) invokes once per day.
func (s *LedgerService) ResetDailyCounters() (int64, error) {
	result, err := s.db.Exec(`
		UPDATE accounts SET transaction_count = 0, updated_at = NOW()
		WHERE transaction_count > 0
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
