package replay

import (
	"errors"
	"fmt"
)

var (
	// ErrEnumeration marks a failed ancestry-diff query. It is fatal for the run.
	ErrEnumeration = errors.New("enumeration failed")

	// ErrCheckout marks a failed checkout of the target branch.
	ErrCheckout = errors.New("checkout failed")

	// ErrInvalidBatchSize is returned when the stride size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrMissingDependency is returned when a Driver is built without a required collaborator.
	ErrMissingDependency = errors.New("missing driver dependency")
)

// EnumerationError describes a failed ancestry-diff query between two refs.
type EnumerationError struct {
	From string
	To   string
	Err  error
}

// NewEnumerationError wraps err as an enumeration failure for from..to.
func NewEnumerationError(from, to string, err error) *EnumerationError {
	return &EnumerationError{From: from, To: to, Err: err}
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s..%s: %v", e.To, e.From, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EnumerationError) Unwrap() error { return e.Err }

// Is makes every EnumerationError match ErrEnumeration.
func (e *EnumerationError) Is(target error) bool {
	return target == ErrEnumeration
}
