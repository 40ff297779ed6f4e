package bank

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the resource client, the engine, and the gateway.
// Callers classify with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrRemoteUnavailable = errors.New("resource backend unavailable")
	ErrValidation        = errors.New("validation failed")
)

var (
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)

	// ErrIncompleteRecord is raised when a record is about to be persisted
	// without every field the operation guarantees.
	ErrIncompleteRecord = fmt.Errorf("incomplete record: %w", ErrValidation)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
