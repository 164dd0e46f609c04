package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrDuplicateCode       = errors.New("duplicate code")
	ErrDanglingReference   = errors.New("dangling reference")
	ErrOutOfRange          = errors.New("date outside configured partitions")
	ErrDuplicateResult     = errors.New("duplicate analysis result")
	ErrConfiguration       = errors.New("invalid configuration")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrReferenced          = errors.New("record is referenced")
	ErrIdempotencyConflict = errors.New("operation id reused for a different operation")
)

// DuplicateCodeError reports a catalog insert whose code already exists.
type DuplicateCodeError struct {
	Catalog EntityType
	Code    string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("%s code %q already exists", e.Catalog, e.Code)
}

// Is matches ErrDuplicateCode.
func (e *DuplicateCodeError) Is(target error) bool { return target == ErrDuplicateCode }

// DanglingReferenceError reports a write whose parent record does not exist,
// including a sample id that exists under a different valuation date.
type DanglingReferenceError struct {
	Entity EntityType
	Ref    string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling %s reference %s", e.Entity, e.Ref)
}

// Is matches ErrDanglingReference.
func (e *DanglingReferenceError) Is(target error) bool { return target == ErrDanglingReference }

// OutOfRangeError reports a valuation date no partition accepts.
type OutOfRangeError struct {
	Date Date
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("valuation date %s is outside every configured partition", e.Date)
}

// Is matches ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// DuplicateResultError reports a second result for the same sample, parameter and date.
type DuplicateResultError struct {
	Key       SampleKey
	Parameter string
}

func (e *DuplicateResultError) Error() string {
	return fmt.Sprintf("analysis result %q already recorded for sample %s", e.Parameter, e.Key)
}

// Is matches ErrDuplicateResult.
func (e *DuplicateResultError) Is(target error) bool { return target == ErrDuplicateResult }

// ConfigurationError is returned at startup when partition configuration is
// invalid or disagrees with what a durable backend recorded earlier.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "partition configuration: " + e.Reason
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NotFoundError reports a lookup miss.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ReferencedError reports a delete refused because dependents still exist.
type ReferencedError struct {
	Entity EntityType
	ID     string
	By     EntityType
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %q is still referenced by %s records", e.Entity, e.ID, e.By)
}

// Is matches ErrReferenced.
func (e *ReferencedError) Is(target error) bool { return target == ErrReferenced }

// IdempotencyConflictError reports an operation id replayed with a different kind.
type IdempotencyConflictError struct {
	OperationID string
	Existing    string
	Requested   string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("operation %q was recorded as %s, not %s", e.OperationID, e.Existing, e.Requested)
}

// Is matches ErrIdempotencyConflict.
func (e *IdempotencyConflictError) Is(target error) bool { return target == ErrIdempotencyConflict }

// Required returns a ValidationError when value is blank.
func Required(entity EntityType, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Entity: entity, Field: field, Reason: "is required"}
	}
	return nil
}
