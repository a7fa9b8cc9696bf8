package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/trustbank/backend/internal/models"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TransferReceived(ctx context.Context, toUserID int, fromName string, amount decimal.Decimal, currency string) {
	m.Called(ctx, toUserID, fromName, amount, currency)
}

func (m *MockNotifier) OTPIssued(ctx context.Context, userID int, code string, amount decimal.Decimal, currency string) {
	m.Called(ctx, userID, code, amount, currency)
}

func (m *MockNotifier) AdminContact(ctx context.Context, msg *models.ContactMessage) {
	m.Called(ctx, msg)
}

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	args := m.Called(ctx, base, target)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
