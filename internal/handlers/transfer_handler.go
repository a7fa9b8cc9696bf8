package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/trustbank/backend/internal/models"
	"github.com/trustbank/backend/internal/services"
)

type TransferHandler struct {
	transfers *services.TransferService
	otp       *services.OTPService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewTransferHandler(transfers *services.TransferService, otp *services.OTPService, ledger *services.LedgerService) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		otp:       otp,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

type otpRequest struct {
	ToAccount string          `json:"toAccount" validate:"required,numeric,min=10,max=20"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// RequestOTP issues a confirmation code for a pending transfer
// @Summary Request transfer OTP
// @Description Issue a one-time code confirming a transfer to the given destination
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body otpRequest true "Pending transfer details"
// @Success 200 {object} object{transferId=string,expiresAt=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /transfers/otp [post]
func (h *TransferHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req otpRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	fromAccount, err := h.ledger.FindAccountByUser(userID)
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	pending, err := h.otp.Issue(r.Context(), fromAccount, req.ToAccount, req.Amount, req.Currency)
	if err != nil {
		status := services.StatusForError(err)
		if err.Error() == "OTP rate limit exceeded" {
			status = http.StatusTooManyRequests
		}
		services.SendErrorResponse(w, err.Error(), status, nil)
		return
	}

	log.Printf("[TRANSFER] OTP issued for account %s, transfer %s", fromAccount.AccountNumber, pending.TransferID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transferId": pending.TransferID,
		"expiresAt":  pending.ExpiresAt,
	})
}

// ExecuteTransfer runs a confirmed transfer
// @Summary Execute transfer
// @Description Move funds between accounts, gated by the confirmation OTP
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.TransferRequest true "Transfer request"
// @Success 200 {object} models.TransferResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transfers [post]
func (h *TransferHandler) ExecuteTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.TransferRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	// The debited account is always the caller's own.
	fromAccount, err := h.ledger.FindAccountByUser(userID)
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	req.FromAccount = fromAccount.AccountNumber

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.transfers.Execute(r.Context(), &req)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"transfer": result,
	})
}
