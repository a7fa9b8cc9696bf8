package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       any             `json:"details"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogTransfer(transferID, fromAccount, toAccount string, amount decimal.Decimal, status string) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		TransactionID: transferID,
		Amount:        amount,
		Status:        status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	}
	a.log(event)
}

func (a *Logger) LogError(transferID, accountNumber string, err error) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transferID,
		AccountNumber: accountNumber,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) LogOperation(transferID, accountNumber, operation, details string) {
	event := Event{
		Timestamp:     time.Now(),
		EventType:     operation,
		TransactionID: transferID,
		AccountNumber: accountNumber,
		Status:        "SUCCESS",
		Details:       map[string]string{"details": details},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
