/*
errors.go - Error taxonomy for the ledger engine

ERROR CATEGORIES:
  1. Validation - bad input, always recoverable by correcting it
  2. Not found  - a referenced row does not exist
  3. Integrity  - the change would break a catalog constraint
  4. Storage    - the persistence layer failed; never swallowed

USAGE:
    if errors.Is(err, ledger.ErrValidation) {
        var verr *ledger.ValidationError
        errors.As(err, &verr)
        // show verr.Fields inline
    }

SEE ALSO:
  - validator.go: produces ValidationError
  - store/sqlite/sqlite.go: produces StorageError
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the class of every field-level input problem.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a movement or catalog row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity is returned when a catalog change would violate a constraint.
	ErrIntegrity = errors.New("integrity violation")

	// ErrStorage marks failures of the underlying store.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidPeriod is returned when a window ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNothingToUpdate is returned for an empty Patch.
	ErrNothingToUpdate = errors.New("nothing to update")
)

// =============================================================================
// FIELD ERRORS
// =============================================================================

// Field error codes.
const (
	CodeRequired           = "required"
	CodeInvalidDate        = "invalid_date"
	CodeFutureDate         = "future_date"
	CodeInvalidNumber      = "invalid_number"
	CodeNegativeAmount     = "negative_amount"
	CodeSimultaneousAmount = "simultaneous_amount"
	CodeMissingAmount      = "missing_amount"
	CodeUnknownReference   = "unknown_reference"
	CodeInactiveReference  = "inactive_reference"
	CodeCategoryLocation   = "category_location_mismatch"
	CodeCategoryKind       = "category_kind_mismatch"
	CodeInvalidValue       = "invalid_value"
	CodeDuplicate          = "duplicate"
)

// FieldError is one problem with one input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// ValidationError collects every field problem found in one pass.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Has reports whether a field error with the given code was collected.
func (e *ValidationError) Has(code string) bool {
	for _, f := range e.Fields {
		if f.Code == code {
			return true
		}
	}
	return false
}

// newValidationError returns nil for an empty list so callers can return it directly.
func newValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing row.
type NotFoundError struct {
	Kind string // "movement", "account", "location", "category"
	ID   int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IntegrityError explains why a catalog change was refused.
type IntegrityError struct {
	Kind   string
	ID     int64
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s %d: %s", e.Kind, e.ID, e.Reason)
}
func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// WrapStorage wraps err unless it is nil or already classified.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to correctable caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNothingToUpdate)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStorageError returns true if the store itself failed.
func IsStorageError(err error) bool { return errors.Is(err, ErrStorage) }
