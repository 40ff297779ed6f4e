package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation names a composite banking operation.
type Operation string

const (
	OperationGrantProduct Operation = "grant-product"
	OperationDeposit      Operation = "deposit"
	OperationWithdraw     Operation = "withdraw"
)

// Event types emitted for records persisted by a composite operation.
const (
	EventPurchaseGranted     = "purchase.granted"
	EventTransactionRecorded = "transaction.recorded"
)

// OperationEvent is the canonical envelope dispatched for every record a
// composite operation persists on the resource backend.
type OperationEvent struct {
	ID          uuid.UUID       `json:"id"`
	OperationID string          `json:"operation_id"`
	Operation   Operation       `json:"operation"`
	EventType   string          `json:"event_type"`
	CustomerID  string          `json:"customer_id"`
	RecordID    string          `json:"record_id"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Subject returns the messaging subject for the event, e.g. evt.bank.purchase.granted.v1.
func (e OperationEvent) Subject() string {
	return "evt.bank." + e.EventType + ".v1"
}

// NewPurchaseEvent builds the event for a purchase persisted by grant-product.
func NewPurchaseEvent(operationID string, p Purchase) OperationEvent {
	payload, _ := json.Marshal(p)
	return OperationEvent{
		ID:          uuid.New(),
		OperationID: operationID,
		Operation:   OperationGrantProduct,
		EventType:   EventPurchaseGranted,
		CustomerID:  p.CustomerID,
		RecordID:    p.ID,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

// NewTransactionEvent builds the event for a transaction persisted by deposit or withdraw.
func NewTransactionEvent(operationID string, op Operation, t Transaction) OperationEvent {
	payload, _ := json.Marshal(t)
	return OperationEvent{
		ID:          uuid.New(),
		OperationID: operationID,
		Operation:   op,
		EventType:   EventTransactionRecorded,
		CustomerID:  t.CustomerID,
		RecordID:    t.ID,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}
