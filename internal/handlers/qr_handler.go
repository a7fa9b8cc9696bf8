package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/trustbank/backend/internal/models"
	"github.com/trustbank/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService, ledger *services.LedgerService) *QRHandler {
	return &QRHandler{
		service:   service,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR generates a receive code for the caller's account
// @Summary Generate QR Code
// @Description Generate a QR code other users can scan to send money to the caller
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string} false "Optional fixed amount"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount *decimal.Decimal `json:"amount,omitempty"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil && err != io.EOF {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	account, err := h.ledger.FindAccountByUser(userID)
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	qrCode, qrImage, err := h.service.GenerateReceiveCode(r.Context(), account.AccountNumber, req.Amount)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAmount) || errors.Is(err, models.ErrAccountInactive) {
			services.SendErrorResponse(w, err.Error(), services.StatusForError(err), nil)
		} else {
			services.SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"qrCode":  qrCode,
		"qrImage": qrImage,
	})
}

// ProcessQR processes a scanned QR code
// @Summary Process QR Code
// @Description Resolve a scanned QR code into its receive details
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} services.ReceivePayload
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}

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

	payload, err := h.service.ProcessReceiveCode(r.Context(), req.QRData)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    payload,
	})
}
