package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/audit"
	"github.com/trustbank/backend/internal/models"
)

type AccountService struct {
	db        *sql.DB
	ledger    *LedgerService
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB, ledger *LedgerService) *AccountService {
	return &AccountService{
		db:        db,
		ledger:    ledger,
		audit:     audit.NewLogger(),
		validator: NewValidationHelper(),
	}
}

type amountRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Narration string          `json:"narration,omitempty" validate:"max=200"`
}

// Deposit credits an account. No limit check applies to deposits.
func (s *AccountService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal, narration string) (*models.Transaction, error) {
	return s.mutateBalance(ctx, accountNumber, amount, models.TransactionTypeDeposit, narration)
}

// Withdraw debits an account, failing when the balance is short.
func (s *AccountService) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal, narration string) (*models.Transaction, error) {
	return s.mutateBalance(ctx, accountNumber, amount, models.TransactionTypeWithdrawal, narration)
}

func (s *AccountService) mutateBalance(ctx context.Context, accountNumber string, amount decimal.Decimal, txType, narration string) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, models.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.ledger.LockAccountTx(tx, accountNumber)
	if err != nil {
		return nil, err
	}
	if account.Status != models.AccountStatusActive {
		return nil, models.ErrAccountInactive
	}

	signed := amount
	newBalance := account.Balance.Add(amount)
	if txType == models.TransactionTypeWithdrawal {
		if account.Balance.LessThan(amount) {
			return nil, models.ErrInsufficientFunds
		}
		signed = amount.Neg()
		newBalance = account.Balance.Sub(amount)
	}

	if err := s.ledger.UpdateBalanceTx(tx, account, newBalance, account.TransactionCount); err != nil {
		return nil, err
	}

	record := &models.Transaction{
		TransactionID: uuid.NewString(),
		AccountNumber: account.AccountNumber,
		Amount:        signed,
		Currency:      account.Currency,
		Type:          txType,
		Narration:     narration,
	}
	if err := s.ledger.AppendTransactionTx(tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogOperation(record.TransactionID, account.AccountNumber, "BALANCE_"+txType, "New balance: "+newBalance.StringFixed(2))
	return record, nil
}

// HandleDeposit credits the authenticated user's account
// @Summary Deposit funds
// @Description Credit the authenticated user's account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body amountRequest true "Deposit request"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /accounts/deposit [post]
func (s *AccountService) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceOp(w, r, models.TransactionTypeDeposit)
}

// HandleWithdraw debits the authenticated user's account
// @Summary Withdraw funds
// @Description Debit the authenticated user's account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body amountRequest true "Withdrawal request"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /accounts/withdraw [post]
func (s *AccountService) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceOp(w, r, models.TransactionTypeWithdrawal)
}

func (s *AccountService) handleBalanceOp(w http.ResponseWriter, r *http.Request, txType string) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req amountRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.ledger.FindAccountByUser(userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	var record *models.Transaction
	if txType == models.TransactionTypeDeposit {
		record, err = s.Deposit(r.Context(), account.AccountNumber, req.Amount, req.Narration)
	} else {
		record, err = s.Withdraw(r.Context(), account.AccountNumber, req.Amount, req.Narration)
	}
	if err != nil {
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": record,
	})
}

// GetAccountSummary returns the dashboard payload
// @Summary Account summary
// @Description Get account details and recent transactions for the authenticated user
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{account=models.Account,transactions=[]models.Transaction}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/summary [get]
func (s *AccountService) GetAccountSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.ledger.FindAccountByUser(userID)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT transaction_id, account_number, COALESCE(counterparty, ''), amount, currency, type, status, COALESCE(narration, ''), created_at
		FROM transactions
		WHERE account_number = $1
		ORDER BY created_at DESC
		LIMIT 10
	`, account.AccountNumber)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TransactionID, &t.AccountNumber, &t.Counterparty, &t.Amount,
			&t.Currency, &t.Type, &t.Status, &t.Narration, &t.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"account":      account,
		"transactions": transactions,
	})
}

// NameEnquiry resolves an account number to its holder's name
// @Summary Account name enquiry
// @Description Resolve an account number to the account holder's name
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param accountNumber query string true "Account number"
// @Success 200 {object} object{accountNumber=string,accountName=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/name-enquiry [get]
func (s *AccountService) NameEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNumber := r.URL.Query().Get("accountNumber")
	if accountNumber == "" {
		SendErrorResponse(w, "accountNumber is required", http.StatusBadRequest, nil)
		return
	}

	account, err := s.ledger.FindAccountByNumber(accountNumber)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if account.Status != models.AccountStatusActive {
		SendErrorResponse(w, "Account not active", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNumber": account.AccountNumber,
		"accountName":   account.AccountName,
	})
}

// BalanceEnquiry returns the authenticated user's balance
// @Summary Account balance enquiry
// @Description Get the authenticated user's account balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{accountNumber=string,balance=string,currency=string}
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-enquiry [get]
func (s *AccountService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.ledger.FindAccountByUser(userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNumber": account.AccountNumber,
		"balance":       account.Balance,
		"currency":      account.Currency,
	})
}

// ResetDailyCounters zeroes every daily transaction counter
// @Summary Reset daily counters
// @Description Zero all daily transaction counters (admin maintenance operation)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{reset=int64}
// @Failure 500 {object} ErrorResponse
// @Router /admin/reset-daily-counters [post]
func (s *AccountService) ResetDailyCounters(w http.ResponseWriter, r *http.Request) {
	reset, err := s.ledger.ResetDailyCounters()
	if err != nil {
		log.Printf("[ACCOUNT] Failed to reset daily counters: %v", err)
		SendErrorResponse(w, "Failed to reset counters", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Daily transaction counters reset for %d accounts", reset)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"reset": reset})
}
