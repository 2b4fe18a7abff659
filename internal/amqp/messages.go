package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financas/internal/core"
)

// EventOp names the ledger change carried by a TransactionEvent.
type EventOp string

const (
	OpCreated EventOp = "created"
	OpUpdated EventOp = "updated"
	OpDeleted EventOp = "deleted"
)

func (op EventOp) Valid() bool {
	switch op {
	case OpCreated, OpUpdated, OpDeleted:
		return true
	}
	return false
}

// TransactionSnapshot is the wire shape of a transaction. It carries every
// field the sheet needs so the worker never reads the database.
type TransactionSnapshot struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	AmountCents   int64  `json:"amount_cents"`
	Category      string `json:"category"`
	Type          string `json:"type"`
	PaymentMethod string `json:"payment_method"`
	CreditCardID  string `json:"credit_card_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// TransactionEvent is published after a transaction change is committed.
type TransactionEvent struct {
	Op          EventOp             `json:"op"`
	UserID      string              `json:"user_id"`
	Transaction TransactionSnapshot `json:"transaction"`
	Timestamp   time.Time           `json:"timestamp"`
}

func SnapshotOf(t core.Transaction) TransactionSnapshot {
	return TransactionSnapshot{
		ID:            t.ID,
		Date:          t.Date.String(),
		Description:   t.Description,
		AmountCents:   t.Amount.Cents,
		Category:      string(t.Category),
		Type:          string(t.Type),
		PaymentMethod: string(t.PaymentMethod),
		CreditCardID:  t.CreditCardID,
		Notes:         t.Notes,
	}
}

// ToCore rebuilds the transaction. Unknown vocabulary falls back like any other input.
func (s TransactionSnapshot) ToCore() (core.Transaction, error) {
	d, err := core.ParseDate(s.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("snapshot date: %w", err)
	}
	return core.Transaction{
		ID:            s.ID,
		Description:   s.Description,
		Amount:        core.Money{Cents: s.AmountCents},
		Date:          d,
		Category:      core.ParseCategory(s.Category),
		Notes:         s.Notes,
		Type:          core.ParseTxType(s.Type),
		PaymentMethod: core.ParsePaymentMethod(s.PaymentMethod),
		CreditCardID:  s.CreditCardID,
	}, nil
}

func NewTransactionEvent(op EventOp, userID string, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Op:          op,
		UserID:      userID,
		Transaction: SnapshotOf(t),
		Timestamp:   time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("unknown event op %q", msg.Op)
	}
	if msg.Transaction.ID == "" {
		return nil, fmt.Errorf("event without transaction id")
	}
	return &msg, nil
}
