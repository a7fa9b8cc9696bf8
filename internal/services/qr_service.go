package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/trustbank/backend/internal/models"
)

// Receive codes live in Redis; without it they cannot be single use.
var errReceiveCodesUnavailable = errors.New("receive codes temporarily unavailable")

// QRService issues single-use receive codes. Scanning one pre-fills a
// transfer to the encoded account.
type QRService struct {
	ledger *LedgerService
	redis  *redis.Client
}

func NewQRService(ledger *LedgerService, redis *redis.Client) *QRService {
	return &QRService{
		ledger: ledger,
		redis:  redis,
	}
}

type ReceivePayload struct {
	AccountNumber string           `json:"accountNumber"`
	AccountName   string           `json:"accountName"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Timestamp     int64            `json:"timestamp"`
	Nonce         string           `json:"nonce"`
}

// GenerateReceiveCode builds a QR payload for receiving money into the
// given account. Amount is optional; when nil the sender chooses.
func (s *QRService) GenerateReceiveCode(ctx context.Context, accountNumber string, amount *decimal.Decimal) (string, string, error) {
	if s.redis == nil {
		return "", "", errReceiveCodesUnavailable
	}

	account, err := s.ledger.FindAccountByNumber(accountNumber)
	if err != nil {
		return "", "", err
	}
	if account.Status != models.AccountStatusActive {
		return "", "", models.ErrAccountInactive
	}
	if amount != nil && amount.LessThanOrEqual(decimal.Zero) {
		return "", "", models.ErrInvalidAmount
	}

	payload := ReceivePayload{
		AccountNumber: account.AccountNumber,
		AccountName:   account.AccountName,
		Amount:        amount,
		Timestamp:     time.Now().Unix(),
		Nonce:         s.generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", qrCode)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return qrCode, qrImage, nil
}

// ProcessReceiveCode resolves a scanned code into its payload. Codes
// are single use; a second scan fails.
func (s *QRService) ProcessReceiveCode(ctx context.Context, qrData string) (*ReceivePayload, error) {
	if s.redis == nil {
		return nil, errReceiveCodesUnavailable
	}

	key := fmt.Sprintf("qr:%s", qrData)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var payload ReceivePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &payload, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
