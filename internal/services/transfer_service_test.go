package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/trustbank/backend/internal/config"
	"github.com/trustbank/backend/internal/models"
)

func testTransferConfig() *config.TransferConfig {
	return &config.TransferConfig{
		OTPLength:       6,
		OTPTimeout:      10 * time.Minute,
		MaxOTPPerUser:   5,
		RateLimitWindow: time.Hour,
		HashIterations:  10,
		MaxRetries:      3,
		BaseCurrency:    "USD",
	}
}

const accountColumns = "id, account_number, user_id, account_name, balance, currency, status, daily_limit, transaction_count, max_transaction_count, version, updated_at"

func accountRow(id int, number string, userID int, name, balance string, count, maxCount, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_number", "user_id", "account_name", "balance", "currency", "status",
		"daily_limit", "transaction_count", "max_transaction_count", "version", "updated_at",
	}).AddRow(id, number, userID, name, balance, "USD", "ACTIVE", "5000.00", count, maxCount, version, time.Now())
}

func pendingRow(id int, transferID, from, to, amount string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "transfer_id", "from_account", "to_account", "amount", "currency", "created_at", "expires_at",
	}).AddRow(id, transferID, from, to, amount, "USD", time.Now(), time.Now().Add(10*time.Minute))
}

func newTransferFixture(t *testing.T) (*TransferService, *OTPService, sqlmock.Sqlmock, *MockNotifier, *MockRateSource) {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := testTransferConfig()
	notifier := &MockNotifier{}
	rates := &MockRateSource{}
	ledger := NewLedgerService(db)
	otp := NewOTPService(db, nil, ledger, notifier, cfg)
	transfers := NewTransferService(db, ledger, otp, rates, notifier, cfg)

	return transfers, otp, dbMock, notifier, rates
}

func TestTransferService_Execute(t *testing.T) {
	const (
		sourceNumber = "1000000001"
		destNumber   = "2000000002"
		code         = "123456"
	)

	t.Run("successful transfer debits, credits and consumes the code", func(t *testing.T) {
		transfers, otp, dbMock, notifier, _ := newTransferFixture(t)
		notifier.On("TransferReceived", mock.Anything, 2, "Alice Adams", mock.Anything, "USD").Return()

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(pendingRow(42, "tr-1", sourceNumber, destNumber, "400.00"))

		dbMock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("100.00"), 1, sqlmock.AnyArg(), 1, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("500.00"), 0, sqlmock.AnyArg(), 2, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		dbMock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), sourceNumber, destNumber, decimal.RequireFromString("-400.00"),
				"USD", "transfer", "COMPLETED", "rent", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), destNumber, sourceNumber, decimal.RequireFromString("400.00"),
				"USD", "deposit", "COMPLETED", "rent", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))

		dbMock.ExpectExec("UPDATE pending_transfers").
			WithArgs(sqlmock.AnyArg(), 42).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		result, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
			Narration:   "rent",
		})

		assert.NoError(t, err)
		assert.Equal(t, "tr-1", result.TransferID)
		assert.True(t, result.FromAccountBalance.Equal(decimal.RequireFromString("100.00")))
		assert.True(t, result.ToAccountBalance.Equal(decimal.RequireFromString("500.00")))
		assert.Len(t, result.TransactionIDs, 2)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("consumed code is rejected and nothing is mutated", func(t *testing.T) {
		transfers, otp, dbMock, _, _ := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		// A consumed code never comes back from the lookup.
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("code bound to a different destination is rejected", func(t *testing.T) {
		transfers, otp, dbMock, _, _ := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(pendingRow(42, "tr-1", sourceNumber, "3000000003", "400.00"))
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("code bound to a different currency is rejected", func(t *testing.T) {
		transfers, otp, dbMock, _, rates := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(pendingRow(42, "tr-1", sourceNumber, destNumber, "400.00"))
		dbMock.ExpectRollback()

		// The code quoted 400.00 USD; tendering GBP would re-price the
		// debit through the GBP rate, so it must not authorize this.
		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			Currency:    "GBP",
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		rates.AssertNotCalled(t, "Rate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("daily limit is checked before the code", func(t *testing.T) {
		transfers, _, dbMock, _, _ := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 5, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrDailyLimitExceeded)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("insufficient funds after a valid code", func(t *testing.T) {
		transfers, otp, dbMock, _, _ := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "300.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(pendingRow(42, "tr-1", sourceNumber, destNumber, "400.00"))
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing destination fails before any other check", func(t *testing.T) {
		transfers, _, dbMock, _, _ := newTransferFixture(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(sqlmock.NewRows([]string{accountColumns}))
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrAccountNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("non-positive amount is rejected without touching the store", func(t *testing.T) {
		transfers, _, dbMock, _, _ := newTransferFixture(t)

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.Zero,
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("transfer to own account is rejected", func(t *testing.T) {
		transfers, _, _, _, _ := newTransferFixture(t)

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   sourceNumber,
			Amount:      decimal.RequireFromString("10.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, ErrSameAccount)
	})

	t.Run("persistent contention is retried then surfaced", func(t *testing.T) {
		transfers, otp, dbMock, _, _ := newTransferFixture(t)

		for i := 0; i < 3; i++ {
			dbMock.ExpectBegin()
			dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
				WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
			dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
				WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
			dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
				WillReturnRows(pendingRow(42, "tr-1", sourceNumber, destNumber, "400.00"))
			// Version check misses: another writer got there first.
			dbMock.ExpectExec("UPDATE accounts").
				WillReturnResult(sqlmock.NewResult(0, 0))
			dbMock.ExpectRollback()
		}

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrStoreContention)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("cross-currency transfer uses live rates for both legs", func(t *testing.T) {
		transfers, otp, dbMock, notifier, rates := newTransferFixture(t)
		notifier.On("TransferReceived", mock.Anything, 2, "Alice Adams", mock.Anything, "EUR").Return()
		rates.On("Rate", mock.Anything, "USD", "EUR").Return(decimal.RequireFromString("0.5"), nil)

		destRow := sqlmock.NewRows([]string{
			"id", "account_number", "user_id", "account_name", "balance", "currency", "status",
			"daily_limit", "transaction_count", "max_transaction_count", "version", "updated_at",
		}).AddRow(2, destNumber, 2, "Bob Brown", "100.00", "EUR", "ACTIVE", "5000.00", 0, 5, 1, time.Now())

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(destRow)
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(pendingRow(42, "tr-1", sourceNumber, destNumber, "400.00"))

		// Debit stays in USD; credit lands as 200.00 EUR.
		dbMock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("100.00"), 1, sqlmock.AnyArg(), 1, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("300.00"), 0, sqlmock.AnyArg(), 2, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(2, 1))
		dbMock.ExpectExec("UPDATE pending_transfers").
			WithArgs(sqlmock.AnyArg(), 42).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		result, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			Currency:    "USD",
			OTP:         code,
		})

		assert.NoError(t, err)
		assert.True(t, result.ToAccountBalance.Equal(decimal.RequireFromString("300.00")))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unavailable rate fails the transfer", func(t *testing.T) {
		transfers, otp, dbMock, _, rates := newTransferFixture(t)
		rates.On("Rate", mock.Anything, "GBP", "USD").Return(decimal.Zero, models.ErrCurrencyUnavailable)

		gbpPending := sqlmock.NewRows([]string{
			"id", "transfer_id", "from_account", "to_account", "amount", "currency", "created_at", "expires_at",
		}).AddRow(42, "tr-1", sourceNumber, destNumber, "400.00", "GBP",
			time.Now(), time.Now().Add(10*time.Minute))

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM accounts").WithArgs(sourceNumber).
			WillReturnRows(accountRow(1, sourceNumber, 1, "Alice Adams", "500.00", 0, 5, 3))
		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectQuery("FROM pending_transfers").WithArgs(sourceNumber, otp.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(gbpPending)
		dbMock.ExpectRollback()

		_, err := transfers.Execute(context.Background(), &models.TransferRequest{
			FromAccount: sourceNumber,
			ToAccount:   destNumber,
			Amount:      decimal.RequireFromString("400.00"),
			Currency:    "GBP",
			OTP:         code,
		})

		assert.ErrorIs(t, err, models.ErrCurrencyUnavailable)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
