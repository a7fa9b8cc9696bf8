package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustbank/backend/internal/config"
	"github.com/trustbank/backend/internal/models"
)

// OTPService issues and confirms one-time transfer authorization
// codes. Codes are stored hashed with a TTL; confirmation and
// consumption are separate steps so the transfer engine can defer
// consumption until the transfer it authorizes is certain to commit,
// inside the same store transaction.
type OTPService struct {
	db       *sql.DB
	redis    *redis.Client
	ledger   *LedgerService
	notifier Notifier
	config   *config.TransferConfig
}

func NewOTPService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, notifier Notifier, cfg *config.TransferConfig) *OTPService {
	return &OTPService{
		db:       db,
		redis:    redisClient,
		ledger:   ledger,
		notifier: notifier,
		config:   cfg,
	}
}

// Issue creates a PendingTransfer bound to (source, destination,
// amount) and dispatches the code to the source owner out-of-band.
// Issuance is authoritative; delivery is best effort.
func (s *OTPService) Issue(ctx context.Context, fromAccount *models.Account, toAccountNumber string, amount decimal.Decimal, currency string) (*models.PendingTransfer, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, models.ErrInvalidAmount
	}

	if _, err := s.ledger.FindAccountByNumber(toAccountNumber); err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, fromAccount.UserID); err != nil {
		return nil, err
	}

	code := s.generateCode()
	transferID := uuid.NewString()
	now := time.Now()
	expiresAt := now.Add(s.config.OTPTimeout)

	if currency == "" {
		currency = fromAccount.Currency
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_transfers
		(transfer_id, from_account, to_account, amount, currency, otp_hash, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
	`, transferID, fromAccount.AccountNumber, toAccountNumber, amount, currency, s.hashCode(code), now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store pending transfer: %w", err)
	}

	s.incrementRateLimit(ctx, fromAccount.UserID)

	s.notifier.OTPIssued(ctx, fromAccount.UserID, code, amount, currency)
	log.Printf("[OTP] Issued transfer code %s for account %s, expires %v", transferID, fromAccount.AccountNumber, expiresAt)

	return &models.PendingTransfer{
		TransferID:  transferID,
		FromAccount: fromAccount.AccountNumber,
		ToAccount:   toAccountNumber,
		Amount:      amount,
		Currency:    currency,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}, nil
}

// ConfirmTx locates the unconsumed, unexpired PendingTransfer matching
// (source, code) and locks its row for the duration of the caller's
// store transaction. It does not mark consumption; the caller consumes
// via ConsumeTx once the authorized transfer is certain to commit.
func (s *OTPService) ConfirmTx(tx *sql.Tx, fromAccountNumber, code string) (*models.PendingTransfer, error) {
	var pt models.PendingTransfer
	err := tx.QueryRow(`
		SELECT id, transfer_id, from_account, to_account, amount, currency, created_at, expires_at
		FROM pending_transfers
		WHERE from_account = $1 AND otp_hash = $2 AND used = false AND expires_at > $3
		FOR UPDATE
	`, fromAccountNumber, s.hashCode(code), time.Now()).Scan(
		&pt.ID, &pt.TransferID, &pt.FromAccount, &pt.ToAccount, &pt.Amount,
		&pt.Currency, &pt.CreatedAt, &pt.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrInvalidOTP
	}
	if err != nil {
		return nil, err
	}

	return &pt, nil
}

// ConsumeTx marks a confirmed PendingTransfer as spent. Must run in
// the same transaction that commits the transfer it authorizes.
func (s *OTPService) ConsumeTx(tx *sql.Tx, pt *models.PendingTransfer) error {
	result, err := tx.Exec(`
		UPDATE pending_transfers
		SET used = true, used_at = $1
		WHERE id = $2 AND used = false
	`, time.Now(), pt.ID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrInvalidOTP
	}

	return nil
}

// CleanupExpired deletes expired codes and consumed codes older than a
// day.
func (s *OTPService) CleanupExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_transfers
		WHERE expires_at < $1 OR (used = true AND used_at < $2)
	`, time.Now(), time.Now().Add(-24*time.Hour))
	return err
}

func (s *OTPService) generateCode() string {
	const charset = "0123456789"
	code := make([]byte, s.config.OTPLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}

	return string(code)
}

func (s *OTPService) hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	for i := 1; i < s.config.HashIterations; i++ {
		hash = sha256.Sum256(hash[:])
	}
	return hex.EncodeToString(hash[:])
}

func (s *OTPService) checkRateLimit(ctx context.Context, userID int) error {
	if s.redis == nil {
		return nil
	}

	key := fmt.Sprintf("otp:ratelimit:%d", userID)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return err
	}

	if count >= s.config.MaxOTPPerUser {
		return errors.New("OTP rate limit exceeded")
	}

	return nil
}

func (s *OTPService) incrementRateLimit(ctx context.Context, userID int) {
	if s.redis == nil {
		return
	}

	key := fmt.Sprintf("otp:ratelimit:%d", userID)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.RateLimitWindow)
	pipe.Exec(ctx)
}
