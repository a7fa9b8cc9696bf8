package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/trustbank/backend/internal/models"
)

type ContactService struct {
	db        *sql.DB
	notifier  Notifier
	validator *ValidationHelper
}

func NewContactService(db *sql.DB, notifier Notifier) *ContactService {
	return &ContactService{
		db:        db,
		notifier:  notifier,
		validator: NewValidationHelper(),
	}
}

type contactRequest struct {
	Subject string `json:"subject" validate:"required,min=3,max=120"`
	Message string `json:"message" validate:"required,min=10,max=2000"`
}

// ContactAdmin records a message from a user to the admin team
// @Summary Contact admin
// @Description Send a message to the bank's admin team
// @Tags support
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body contactRequest true "Contact message"
// @Success 201 {object} models.ContactMessage
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /contact-admin [post]
func (s *ContactService) ContactAdmin(w http.ResponseWriter, r *http.Request) {
	userIDStr, ok := r.Context().Value("userID").(string)
	if !ok || userIDStr == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	userID, err := strconv.Atoi(userIDStr)
	if err != nil {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req contactRequest
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

	msg := &models.ContactMessage{
		UserID:  userID,
		Subject: req.Subject,
		Message: req.Message,
	}
	err = s.db.QueryRow(
		"INSERT INTO contact_messages (user_id, subject, message) VALUES ($1, $2, $3) RETURNING id, created_at",
		msg.UserID, msg.Subject, msg.Message,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		log.Printf("[CONTACT] Failed to store message from user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to submit message", http.StatusInternalServerError, nil)
		return
	}

	// Admin alerting rides the broker and never blocks the request.
	go s.notifier.AdminContact(context.Background(), msg)

	log.Printf("[CONTACT] Message %d stored for user %d", msg.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}
