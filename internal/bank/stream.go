package bank

import "iter"

// Phase distinguishes the two kinds of items an operation emits.
type Phase string

const (
	// PhasePreview marks a partially populated record emitted before its
	// dependent lookups finish. It is never persisted.
	PhasePreview Phase = "preview"
	// PhasePersisted marks a record as returned by the backend after creation.
	PhasePersisted Phase = "persisted"
)

// Item is one element of an operation's output stream.
type Item[T any] struct {
	Phase  Phase `json:"phase"`
	Record T     `json:"record"`
}

// Preview wraps a record emitted ahead of persistence.
func Preview[T any](record T) Item[T] { return Item[T]{Phase: PhasePreview, Record: record} }

// Persisted wraps a record returned by the backend.
func Persisted[T any](record T) Item[T] { return Item[T]{Phase: PhasePersisted, Record: record} }

// Stream is the ordered output of a composite operation. Items arrive in
// emission order; a failure is delivered as a final (zero Item, err) pair and
// ends the stream. Breaking out of the range loop stops the pipeline before
// its next remote call.
type Stream[T any] = iter.Seq2[Item[T], error]

// Collect drains s, returning the items emitted before any failure together
// with that failure.
func Collect[T any](s Stream[T]) ([]Item[T], error) {
	var items []Item[T]
	for item, err := range s {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// fail yields err as the terminal element of a stream.
func fail[T any](yield func(Item[T], error) bool, err error) {
	var zero Item[T]
	yield(zero, err)
}
