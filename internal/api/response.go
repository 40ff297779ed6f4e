package api

import "github.com/Checker-Finance/bank-gateway/internal/bank"

// OperationResponse is the buffered JSON reply of a composite operation.
// Items holds everything emitted before a failure, if any.
type OperationResponse[T any] struct {
	OperationID string         `json:"operationId"`
	Operation   string         `json:"operation"`
	Items       []bank.Item[T] `json:"items"`
	Error       string         `json:"error,omitempty"`
}

// streamError is the final NDJSON line written when a stream fails.
type streamError struct {
	OperationID string `json:"operationId"`
	Error       string `json:"error"`
}
