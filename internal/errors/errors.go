// Package errors provides explicit, human-readable error types for medstock.
// All errors must include a Reason and Suggestion for actionable feedback.
package errors

import (
	stderrors "errors"
	"fmt"
)

// MedstockError is the base error type for all medstock errors.
// Every error must provide a human-readable reason and suggestion.
type MedstockError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeAuth       ErrorCode = 2
	CodeStorage    ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *MedstockError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *MedstockError) Unwrap() error {
	return e.Cause
}

// coder is satisfied by every error embedding MedstockError, via method
// promotion.
type coder interface {
	errorCode() ErrorCode
}

func (e *MedstockError) errorCode() ErrorCode { return e.Code }

// ExitCode maps an error to a CLI exit code. Unknown errors map to
// CodeInternal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var c coder
	if stderrors.As(err, &c) {
		return int(c.errorCode())
	}
	return int(CodeInternal)
}

type detailer interface {
	details() *MedstockError
}

func (e *MedstockError) details() *MedstockError { return e }

// Describe returns the MedstockError carried by err, if any. Used to render
// structured error responses.
func Describe(err error) (*MedstockError, bool) {
	var d detailer
	if stderrors.As(err, &d) {
		return d.details(), true
	}
	return nil, false
}

// ErrInvalidRecord is returned when an inventory record fails validation.
type ErrInvalidRecord struct {
	MedstockError
	Field string
}

// NewInvalidRecord creates a new ErrInvalidRecord.
func NewInvalidRecord(field, reason string) *ErrInvalidRecord {
	return &ErrInvalidRecord{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    "invalid inventory record",
			Reason:     fmt.Sprintf("field '%s': %s", field, reason),
			Suggestion: "correct the field and retry",
		},
		Field: field,
	}
}

// ErrRecordNotFound is returned when a referenced inventory record does not exist.
type ErrRecordNotFound struct {
	MedstockError
	ID string
}

// NewRecordNotFound creates a new ErrRecordNotFound.
func NewRecordNotFound(id string) *ErrRecordNotFound {
	return &ErrRecordNotFound{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("inventory record not found: %s", id),
			Reason:     "no record exists with this ID",
			Suggestion: "list records with GET /api/v1/records",
		},
		ID: id,
	}
}

// ErrBatchNotFound is returned when no record matches a medicine and batch number.
type ErrBatchNotFound struct {
	MedstockError
	Medicine string
	BatchNo  string
}

// NewBatchNotFound creates a new ErrBatchNotFound.
func NewBatchNotFound(medicine, batchNo string) *ErrBatchNotFound {
	return &ErrBatchNotFound{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("no inventory for %s (batch %s)", medicine, batchNo),
			Reason:     "no record exists for this medicine and batch number",
			Suggestion: "check the batch number, or receive stock for it first",
		},
		Medicine: medicine,
		BatchNo:  batchNo,
	}
}

// ErrInsufficientStock is returned when a dispense would overdraw a batch.
type ErrInsufficientStock struct {
	MedstockError
	Medicine  string
	BatchNo   string
	Requested int
	Balance   int
}

// NewInsufficientStock creates a new ErrInsufficientStock.
func NewInsufficientStock(medicine, batchNo string, requested, balance int) *ErrInsufficientStock {
	return &ErrInsufficientStock{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("insufficient stock for %s (batch %s)", medicine, batchNo),
			Reason:     fmt.Sprintf("requested %d units but only %d available", requested, balance),
			Suggestion: "reduce the quantity or dispense from another batch",
		},
		Medicine:  medicine,
		BatchNo:   batchNo,
		Requested: requested,
		Balance:   balance,
	}
}

// ErrAlertNotFound is returned when a referenced stock alert does not exist.
type ErrAlertNotFound struct {
	MedstockError
	ID string
}

// NewAlertNotFound creates a new ErrAlertNotFound.
func NewAlertNotFound(id string) *ErrAlertNotFound {
	return &ErrAlertNotFound{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("alert not found: %s", id),
			Reason:     "no alert exists with this ID",
			Suggestion: "list open alerts with 'medstock alerts list'",
		},
		ID: id,
	}
}

// ErrAuthFailed is returned when authentication fails.
type ErrAuthFailed struct {
	MedstockError
}

// NewAuthFailed creates a new ErrAuthFailed.
func NewAuthFailed(reason string) *ErrAuthFailed {
	return &ErrAuthFailed{
		MedstockError: MedstockError{
			Code:       CodeAuth,
			Message:    "authentication failed",
			Reason:     reason,
			Suggestion: "pass a valid API token via the Authorization header",
		},
	}
}

// ErrForbidden is returned when an authenticated user lacks the role an
// operation requires.
type ErrForbidden struct {
	MedstockError
	User string
}

// NewForbidden creates a new ErrForbidden.
func NewForbidden(user, operation string) *ErrForbidden {
	return &ErrForbidden{
		MedstockError: MedstockError{
			Code:       CodeAuth,
			Message:    "permission denied",
			Reason:     fmt.Sprintf("user '%s' may not %s", user, operation),
			Suggestion: "use a token with the admin or pharmacist role",
		},
		User: user,
	}
}

// ErrImportFailed is returned when an import file cannot be processed at all.
// Row-level problems are reported in the import result instead.
type ErrImportFailed struct {
	MedstockError
	Path string
}

// NewImportFailed creates a new ErrImportFailed.
func NewImportFailed(path, reason string, cause error) *ErrImportFailed {
	return &ErrImportFailed{
		MedstockError: MedstockError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("cannot import %s", path),
			Reason:     reason,
			Suggestion: "run with --dry-run to inspect how the file is interpreted",
			Cause:      cause,
		},
		Path: path,
	}
}

// ErrMigrationFailed is returned when a schema migration cannot be applied.
type ErrMigrationFailed struct {
	MedstockError
	Migration string
}

// NewMigrationFailed creates a new ErrMigrationFailed.
func NewMigrationFailed(name string, cause error) *ErrMigrationFailed {
	return &ErrMigrationFailed{
		MedstockError: MedstockError{
			Code:       CodeStorage,
			Message:    fmt.Sprintf("migration failed: %s", name),
			Reason:     "the schema migration could not be applied",
			Suggestion: "check database connectivity and permissions",
			Cause:      cause,
		},
		Migration: name,
	}
}

// ErrStorageUnavailable is returned when the database cannot be reached.
type ErrStorageUnavailable struct {
	MedstockError
}

// NewStorageUnavailable creates a new ErrStorageUnavailable.
func NewStorageUnavailable(cause error) *ErrStorageUnavailable {
	return &ErrStorageUnavailable{
		MedstockError: MedstockError{
			Code:       CodeStorage,
			Message:    "database unavailable",
			Reason:     "the configured database did not respond",
			Suggestion: "check the database settings in the medstock config",
			Cause:      cause,
		},
	}
}
