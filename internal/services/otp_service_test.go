package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/trustbank/backend/internal/models"
)

func TestOTPService_Issue(t *testing.T) {
	const (
		sourceNumber = "1000000001"
		destNumber   = "2000000002"
	)

	source := &models.Account{
		ID:            1,
		AccountNumber: sourceNumber,
		UserID:        1,
		Currency:      "USD",
	}

	t.Run("stores a hashed code bound to the destination and amount", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		notifier := &MockNotifier{}
		notifier.On("OTPIssued", mock.Anything, 1, mock.AnythingOfType("string"), mock.Anything, "USD").Return()

		svc := NewOTPService(db, nil, NewLedgerService(db), notifier, testTransferConfig())

		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))
		dbMock.ExpectExec("INSERT INTO pending_transfers").
			WithArgs(sqlmock.AnyArg(), sourceNumber, destNumber, decimal.RequireFromString("400.00"),
				"USD", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		pending, err := svc.Issue(context.Background(), source, destNumber, decimal.RequireFromString("400.00"), "")

		assert.NoError(t, err)
		assert.Equal(t, sourceNumber, pending.FromAccount)
		assert.Equal(t, destNumber, pending.ToAccount)
		assert.Equal(t, "USD", pending.Currency)
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), pending.ExpiresAt, 5*time.Second)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		notifier.AssertExpectations(t)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		svc := NewOTPService(db, nil, NewLedgerService(db), &MockNotifier{}, testTransferConfig())

		_, err = svc.Issue(context.Background(), source, destNumber, decimal.Zero, "")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("rejects an unknown destination", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		svc := NewOTPService(db, nil, NewLedgerService(db), &MockNotifier{}, testTransferConfig())

		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err = svc.Issue(context.Background(), source, destNumber, decimal.RequireFromString("400.00"), "")
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})

	t.Run("enforces the per-user issuance rate limit", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("otp:ratelimit:1").SetVal("5")

		svc := NewOTPService(db, redisClient, NewLedgerService(db), &MockNotifier{}, testTransferConfig())

		dbMock.ExpectQuery("FROM accounts").WithArgs(destNumber).
			WillReturnRows(accountRow(2, destNumber, 2, "Bob Brown", "100.00", 0, 5, 1))

		_, err = svc.Issue(context.Background(), source, destNumber, decimal.RequireFromString("400.00"), "")
		assert.EqualError(t, err, "OTP rate limit exceeded")
	})
}

func TestOTPService_ConfirmAndConsume(t *testing.T) {
	const (
		sourceNumber = "1000000001"
		code         = "123456"
	)

	newSvc := func(t *testing.T) (*OTPService, sqlmock.Sqlmock) {
		t.Helper()
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		svc := NewOTPService(db, nil, NewLedgerService(db), &MockNotifier{}, testTransferConfig())
		return svc, dbMock
	}

	t.Run("lookup excludes consumed and expired codes", func(t *testing.T) {
		svc, dbMock := newSvc(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery(`used = false AND expires_at > \$3`).
			WithArgs(sourceNumber, svc.hashCode(code), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		tx, err := svc.db.Begin()
		assert.NoError(t, err)
		defer tx.Rollback()

		_, err = svc.ConfirmTx(tx, sourceNumber, code)
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("wrong code is rejected", func(t *testing.T) {
		svc, dbMock := newSvc(t)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("FROM pending_transfers").
			WithArgs(sourceNumber, svc.hashCode("000000"), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		tx, err := svc.db.Begin()
		assert.NoError(t, err)
		defer tx.Rollback()

		_, err = svc.ConfirmTx(tx, sourceNumber, "000000")
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
	})

	t.Run("consuming an already spent code fails", func(t *testing.T) {
		svc, dbMock := newSvc(t)

		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE pending_transfers").
			WithArgs(sqlmock.AnyArg(), 42).
			WillReturnResult(sqlmock.NewResult(0, 0))

		tx, err := svc.db.Begin()
		assert.NoError(t, err)
		defer tx.Rollback()

		err = svc.ConsumeTx(tx, &models.PendingTransfer{ID: 42})
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
	})

	t.Run("different codes hash differently", func(t *testing.T) {
		svc, _ := newSvc(t)
		assert.NotEqual(t, svc.hashCode("123456"), svc.hashCode("123457"))
		assert.Equal(t, svc.hashCode("123456"), svc.hashCode("123456"))
	})

	t.Run("generated codes are numeric and fixed length", func(t *testing.T) {
		svc, _ := newSvc(t)
		for i := 0; i < 20; i++ {
			code := svc.generateCode()
			assert.Len(t, code, 6)
			for _, c := range code {
				assert.True(t, c >= '0' && c <= '9')
			}
		}
	})
}
