package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trustbank/backend/internal/models"
)

func TestAccountService_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewLedgerService(db))

	t.Run("credits the account and appends a record", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("1000000001").
			WillReturnRows(accountRow(1, "1000000001", 1, "Alice Adams", "500.00", 2, 5, 3))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("650.00"), 2, sqlmock.AnyArg(), 1, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "1000000001", "", decimal.RequireFromString("150.00"),
				"USD", "deposit", "COMPLETED", "payday", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		record, err := service.Deposit(context.Background(), "1000000001", decimal.RequireFromString("150.00"), "payday")

		assert.NoError(t, err)
		assert.Equal(t, models.TransactionTypeDeposit, record.Type)
		assert.True(t, record.Amount.Equal(decimal.RequireFromString("150.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		_, err := service.Deposit(context.Background(), "1000000001", decimal.Zero, "")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("rejects an inactive account", func(t *testing.T) {
		frozen := sqlmock.NewRows([]string{
			"id", "account_number", "user_id", "account_name", "balance", "currency", "status",
			"daily_limit", "transaction_count", "max_transaction_count", "version", "updated_at",
		}).AddRow(1, "1000000001", 1, "Alice Adams", "500.00", "USD", "FROZEN", "5000.00", 0, 5, 1, time.Now())

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("1000000001").WillReturnRows(frozen)
		mock.ExpectRollback()

		_, err := service.Deposit(context.Background(), "1000000001", decimal.RequireFromString("10.00"), "")
		assert.ErrorIs(t, err, models.ErrAccountInactive)
	})
}

func TestAccountService_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewLedgerService(db))

	t.Run("debits the account with a signed record", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("1000000001").
			WillReturnRows(accountRow(1, "1000000001", 1, "Alice Adams", "500.00", 0, 5, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("300.00"), 0, sqlmock.AnyArg(), 1, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "1000000001", "", decimal.RequireFromString("-200.00"),
				"USD", "withdrawal", "COMPLETED", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		record, err := service.Withdraw(context.Background(), "1000000001", decimal.RequireFromString("200.00"), "")

		assert.NoError(t, err)
		assert.True(t, record.Amount.IsNegative())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds fails before any write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("1000000001").
			WillReturnRows(accountRow(1, "1000000001", 1, "Alice Adams", "100.00", 0, 5, 1))
		mock.ExpectRollback()

		_, err := service.Withdraw(context.Background(), "1000000001", decimal.RequireFromString("200.00"), "")
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
