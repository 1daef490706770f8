// Package errors defines the domain error model: sentinel errors for
// ledger-level outcomes, coded DomainError values for everything a caller
// can act on, and typed errors for validation and concurrency failures.
// The HTTP adapter is the only place these map to transport status codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes carried by DomainError. These are the machine-readable kinds
// of the service; transport mapping lives in the HTTP adapter.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeAmountTooSmall       = "AMOUNT_TOO_SMALL"
	CodeInvalidWalletID      = "INVALID_WALLET_ID"
	CodeSameWalletTransfer   = "SAME_WALLET_TRANSFER"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeWalletNotFound       = "WALLET_NOT_FOUND"
	CodeDuplicateRequest     = "DUPLICATE_REQUEST"
	CodeConcurrentProcessing = "CONCURRENT_PROCESSING"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeOwnerAlreadyExists   = "OWNER_ALREADY_EXISTS"
	CodeTransferFailed       = "TRANSFER_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Sentinel errors for ledger-level outcomes. Wrapped into DomainError by the
// application layer; tests and repositories match on them with errors.Is.
var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrLogNotFound             = errors.New("transaction log not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrOwnerAlreadyExists      = errors.New("owner already has a wallet")
	ErrConcurrentProcessing    = errors.New("concurrent request with the same idempotency key")
	ErrLogTerminal             = errors.New("transaction log is in a terminal state")
)

// DomainError carries a machine-readable code, a human-readable message and
// an optional underlying error for the chain.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports errors.Is and errors.As over the chain.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(e))
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConcurrencyError reports a lost optimistic-version check. Unreachable while
// the executor holds row locks, but kept as a contract check on the repository.
type ConcurrencyError struct {
	EntityType string
	EntityID   string
	Message    string
}

// Error implements the error interface.
func (e ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency error on %s [%s]: %s", e.EntityType, e.EntityID, e.Message)
}

// NewConcurrencyError creates a new concurrency error.
func NewConcurrencyError(entityType, entityID, message string) *ConcurrencyError {
	return &ConcurrencyError{
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
	}
}

// IsNotFound checks if an error reports an absent wallet or log.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) || errors.Is(err, ErrLogNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var valErr ValidationError
	var valErrs ValidationErrors
	return errors.As(err, &valErr) || errors.As(err, &valErrs)
}

// IsConcurrencyError checks if an error is a concurrency error.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// CodeOf returns the code of the first DomainError in the chain, or
// CodeInternalError when the chain carries none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternalError
}
