package model

import (
	"encoding/json"
	"time"
)

// OperationStatus is the final state of a journaled composite operation.
type OperationStatus string

const (
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
	OperationAbandoned OperationStatus = "abandoned"
)

// OperationItem is one stream element as it was delivered to the caller.
type OperationItem struct {
	Phase  string          `json:"phase"`
	Record json.RawMessage `json:"record"`
}

// OperationRecord is the journal entry kept for each composite invocation.
type OperationRecord struct {
	ID         string            `json:"id"`
	Operation  Operation         `json:"operation"`
	Params     map[string]string `json:"params,omitempty"`
	Status     OperationStatus   `json:"status"`
	Items      []OperationItem   `json:"items"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}
