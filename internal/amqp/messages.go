package amqp

import (
	"encoding/json"
	"time"

	"altarfunds/internal/core"
)

// PaymentResultMessage announces that a payment session reached a terminal
// status. Consumers refresh their view of the giving history; the message
// carries only the reference and outcome, not the full transaction.
type PaymentResultMessage struct {
	Reference string                 `json:"reference"`
	Status    core.TransactionStatus `json:"status"`
	Receipt   string                 `json:"receipt,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewPaymentResultMessage creates a message for a resolved session.
func NewPaymentResultMessage(reference string, status core.TransactionStatus, receipt string) *PaymentResultMessage {
	return &PaymentResultMessage{
		Reference: reference,
		Status:    status,
		Receipt:   receipt,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PaymentResultMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentResultMessageFromJSON creates a message from JSON bytes
func PaymentResultMessageFromJSON(data []byte) (*PaymentResultMessage, error) {
	var msg PaymentResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
