package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/messaging"
	"github.com/trustbank/backend/internal/models"
)

// Notifier delivers messages to users. All methods are best effort:
// failures are logged and never propagated as operation failures,
// because the operation that triggered the notification has already
// committed by the time delivery is attempted.
type Notifier interface {
	TransferReceived(ctx context.Context, toUserID int, fromName string, amount decimal.Decimal, currency string)
	OTPIssued(ctx context.Context, userID int, code string, amount decimal.Decimal, currency string)
	AdminContact(ctx context.Context, msg *models.ContactMessage)
}

type NotificationService struct {
	db        *sql.DB
	publisher messaging.Publisher
}

func NewNotificationService(db *sql.DB, publisher messaging.Publisher) *NotificationService {
	if publisher == nil {
		publisher = &messaging.NoopProducer{}
	}
	return &NotificationService{
		db:        db,
		publisher: publisher,
	}
}

type notificationEvent struct {
	UserID    int             `json:"user_id"`
	Kind      string          `json:"kind"`
	Message   string          `json:"message"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Currency  string          `json:"currency,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferReceived records an in-app notification for the destination
// owner and publishes an event for out-of-band delivery.
func (s *NotificationService) TransferReceived(ctx context.Context, toUserID int, fromName string, amount decimal.Decimal, currency string) {
	message := "You received " + currency + " " + amount.StringFixed(2) + " from " + fromName

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, message, is_read, created_at)
		VALUES ($1, $2, false, $3)
	`, toUserID, message, time.Now())
	if err != nil {
		log.Printf("[NOTIFY] Failed to store notification for user %d: %v", toUserID, err)
	}

	event := notificationEvent{
		UserID:    toUserID,
		Kind:      "transfer_received",
		Message:   message,
		Amount:    amount,
		Currency:  currency,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(ctx, "transfer.received", event); err != nil {
		log.Printf("[NOTIFY] Failed to publish transfer notification for user %d: %v", toUserID, err)
	}
}

// OTPIssued dispatches a one-time transfer code to its owner. The code
// travels only on the out-of-band channel, never through the API
// response.
func (s *NotificationService) OTPIssued(ctx context.Context, userID int, code string, amount decimal.Decimal, currency string) {
	event := notificationEvent{
		UserID:    userID,
		Kind:      "otp_issued",
		Message:   "Your OTP for transferring " + currency + " " + amount.StringFixed(2) + " is " + code,
		Amount:    amount,
		Currency:  currency,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(ctx, "otp.issued", event); err != nil {
		log.Printf("[NOTIFY] Failed to publish OTP notification for user %d: %v", userID, err)
	}
}

// AdminContact forwards a contact message to the admin delivery queue.
func (s *NotificationService) AdminContact(ctx context.Context, msg *models.ContactMessage) {
	event := map[string]any{
		"user_id":   msg.UserID,
		"subject":   msg.Subject,
		"message":   msg.Message,
		"timestamp": time.Now(),
	}
	if err := s.publisher.Publish(ctx, "admin.contact", event); err != nil {
		log.Printf("[NOTIFY] Failed to publish admin contact message from user %d: %v", msg.UserID, err)
	}
}

// ListNotifications returns the user's unread notifications and marks
// them read in the same transaction
// @Summary List notifications
// @Description Get unread notifications for the authenticated user; listing marks them read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{notifications=[]models.Notification,count=int}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications [get]
func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(r.Context(), `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1::integer AND is_read = false
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			rows.Close()
			SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
			return
		}
		notifications = append(notifications, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch notifications", http.StatusInternalServerError, nil)
		return
	}

	_, err = tx.ExecContext(r.Context(), `
		UPDATE notifications SET is_read = true
		WHERE user_id = $1::integer AND is_read = false
	`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}
