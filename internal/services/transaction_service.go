package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type TransactionService struct {
	db     *sql.DB
	ledger *LedgerService
}

func NewTransactionService(db *sql.DB, ledger *LedgerService) *TransactionService {
	return &TransactionService{db: db, ledger: ledger}
}

// History returns an account's transactions matching the filter, newest first.
func (s *TransactionService) History(accountNumber string, filter *models.TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT transaction_id, account_number, COALESCE(counterparty, ''), amount, currency, type, status, COALESCE(narration, ''), created_at
		FROM transactions
		WHERE account_number = $1`
	args := []interface{}{accountNumber}

	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.MinAmount != nil {
		args = append(args, *filter.MinAmount)
		query += fmt.Sprintf(" AND ABS(amount) >= $%d", len(args))
	}
	if filter.MaxAmount != nil {
		args = append(args, *filter.MaxAmount)
		query += fmt.Sprintf(" AND ABS(amount) <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TransactionID, &t.AccountNumber, &t.Counterparty, &t.Amount,
			&t.Currency, &t.Type, &t.Status, &t.Narration, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// FindByTransactionID fetches a single transaction belonging to the account.
func (s *TransactionService) FindByTransactionID(accountNumber, txID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.QueryRow(`
		SELECT transaction_id, account_number, COALESCE(counterparty, ''), amount, currency, type, status, COALESCE(narration, ''), created_at
		FROM transactions
		WHERE account_number = $1 AND transaction_id = $2
	`, accountNumber, txID).Scan(&t.TransactionID, &t.AccountNumber, &t.Counterparty, &t.Amount,
		&t.Currency, &t.Type, &t.Status, &t.Narration, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &t, nil
}

type Statement struct {
	AccountNumber  string               `json:"accountNumber"`
	From           time.Time            `json:"from"`
	To             time.Time            `json:"to"`
	OpeningBalance decimal.Decimal      `json:"openingBalance"`
	ClosingBalance decimal.Decimal      `json:"closingBalance"`
	Transactions   []models.Transaction `json:"transactions"`
}

// BuildStatement reconstructs opening and closing balances for a period
// from the current balance and the signed transaction amounts.
func (s *TransactionService) BuildStatement(accountNumber string, from, to time.Time) (*Statement, error) {
	account, err := s.ledger.FindAccountByNumber(accountNumber)
	if err != nil {
		return nil, err
	}

	var sinceFrom, sinceTo decimal.Decimal
	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE created_at >= $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE created_at >= $3), 0)
		FROM transactions
		WHERE account_number = $1
	`, accountNumber, from, to).Scan(&sinceFrom, &sinceTo)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statement balances: %w", err)
	}

	filter := &models.TransactionFilter{DateFrom: &from, DateTo: &to, Limit: maxHistoryLimit}
	transactions, err := s.History(accountNumber, filter)
	if err != nil {
		return nil, err
	}

	return &Statement{
		AccountNumber:  accountNumber,
		From:           from,
		To:             to,
		OpeningBalance: account.Balance.Sub(sinceFrom),
		ClosingBalance: account.Balance.Sub(sinceTo),
		Transactions:   transactions,
	}, nil
}

// GetTransactionHistory lists the authenticated user's transactions
// @Summary Transaction history
// @Description List the authenticated user's transactions with optional filters
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param date_from query string false "Start date (RFC 3339 or YYYY-MM-DD)"
// @Param date_to query string false "End date, exclusive (RFC 3339 or YYYY-MM-DD)"
// @Param type query string false "Transaction type" Enums(deposit, withdrawal, transfer)
// @Param min_amount query string false "Minimum absolute amount"
// @Param max_amount query string false "Maximum absolute amount"
// @Param limit query int false "Maximum rows (default 50, max 200)"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /transactions [get]
func (s *TransactionService) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountForRequest(w, r)
	if !ok {
		return
	}

	filter, err := parseTransactionFilter(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	transactions, err := s.History(account.AccountNumber, filter)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransaction fetches one transaction by its public id
// @Summary Transaction detail
// @Description Fetch a single transaction belonging to the authenticated user
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountForRequest(w, r)
	if !ok {
		return
	}

	txID := chi.URLParam(r, "txId")
	transaction, err := s.FindByTransactionID(account.AccountNumber, txID)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transaction)
}

// GetStatement returns an account statement for a date range
// @Summary Account statement
// @Description Statement with opening and closing balances for a date range
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param date_from query string true "Start date (RFC 3339 or YYYY-MM-DD)"
// @Param date_to query string true "End date, exclusive (RFC 3339 or YYYY-MM-DD)"
// @Success 200 {object} Statement
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /accounts/statement [get]
func (s *TransactionService) GetStatement(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountForRequest(w, r)
	if !ok {
		return
	}

	from, err := parseDateParam(r.URL.Query().Get("date_from"))
	if err != nil || from == nil {
		SendErrorResponse(w, "date_from is required", http.StatusBadRequest, nil)
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("date_to"))
	if err != nil || to == nil {
		SendErrorResponse(w, "date_to is required", http.StatusBadRequest, nil)
		return
	}
	if !from.Before(*to) {
		SendErrorResponse(w, "date_from must be before date_to", http.StatusBadRequest, nil)
		return
	}

	statement, err := s.BuildStatement(account.AccountNumber, *from, *to)
	if err != nil {
		SendErrorResponse(w, "Failed to build statement", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statement)
}

func (s *TransactionService) accountForRequest(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}
	account, err := s.ledger.FindAccountByUser(userID)
	if err != nil {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return nil, false
	}
	return account, true
}

func parseTransactionFilter(r *http.Request) (*models.TransactionFilter, error) {
	q := r.URL.Query()
	filter := &models.TransactionFilter{}

	var err error
	if filter.DateFrom, err = parseDateParam(q.Get("date_from")); err != nil {
		return nil, fmt.Errorf("invalid date_from")
	}
	if filter.DateTo, err = parseDateParam(q.Get("date_to")); err != nil {
		return nil, fmt.Errorf("invalid date_to")
	}

	if t := q.Get("type"); t != "" {
		switch strings.ToLower(t) {
		case models.TransactionTypeDeposit, models.TransactionTypeWithdrawal, models.TransactionTypeTransfer:
			filter.Type = strings.ToLower(t)
		default:
			return nil, fmt.Errorf("invalid type")
		}
	}

	if v := q.Get("min_amount"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil || min.IsNegative() {
			return nil, fmt.Errorf("invalid min_amount")
		}
		filter.MinAmount = &min
	}
	if v := q.Get("max_amount"); v != "" {
		max, err := decimal.NewFromString(v)
		if err != nil || max.IsNegative() {
			return nil, fmt.Errorf("invalid max_amount")
		}
		filter.MaxAmount = &max
	}
	if filter.MinAmount != nil && filter.MaxAmount != nil && filter.MinAmount.GreaterThan(*filter.MaxAmount) {
		return nil, fmt.Errorf("min_amount exceeds max_amount")
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid limit")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid date")
}
