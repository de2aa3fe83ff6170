package errors

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("precondition violated")
	ErrPersistence         = errors.New("storage failure")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrObligationNotFound  = errors.New("obligation not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrUnsupportedKind     = errors.New("unsupported obligation kind")
	ErrInvalidPaymentState = errors.New("payment is not pending")
	// ErrTransient marks storage failures that are safe to retry from the
	// classification step: timeouts, serialization failures, deadlocks.
	ErrTransient = errors.New("transient storage failure")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
	// Details carries the identifiers and current state shown to the operator.
	Details map[string]string
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail attaches an identifier or state value to the error.
func (e *BusinessError) WithDetail(key, value string) *BusinessError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeConflict           = "CONFLICT"
	ErrCodePersistence        = "PERSISTENCE_ERROR"
	ErrCodeTransient          = "TRANSIENT_ERROR"
	ErrCodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	ErrCodeObligationNotFound = "OBLIGATION_NOT_FOUND"
	ErrCodeCustomerNotFound   = "CUSTOMER_NOT_FOUND"
	ErrCodeUnsupportedKind    = "UNSUPPORTED_OBLIGATION_KIND"
	ErrCodeCacheError         = "CACHE_ERROR"
)

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(ErrCodeValidation, message, ErrValidation)
}

func WrapInvalidPaymentAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		fmt.Sprintf("Payment amount %s must be greater than zero", amount),
		ErrValidation,
	).WithDetail("amount", amount)
}

func WrapCustomerNotFound(identity string) *BusinessError {
	return NewBusinessError(
		ErrCodeCustomerNotFound,
		fmt.Sprintf("Customer identity %s does not resolve to a known customer", identity),
		errors.Join(ErrValidation, ErrCustomerNotFound),
	).WithDetail("customer_identity", identity)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %s not found", paymentID),
		ErrPaymentNotFound,
	).WithDetail("payment_id", paymentID)
}

func WrapObligationNotFound(kind, obligationID string) *BusinessError {
	return NewBusinessError(
		ErrCodeObligationNotFound,
		fmt.Sprintf("%s with ID %s not found", kind, obligationID),
		ErrObligationNotFound,
	).WithDetail("obligation_kind", kind).WithDetail("obligation_id", obligationID)
}

func WrapUnsupportedKind(kind string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnsupportedKind,
		fmt.Sprintf("Obligation kind %q is not supported", kind),
		ErrUnsupportedKind,
	).WithDetail("obligation_kind", kind)
}

// WrapPaymentConflict reports a payment that is no longer pending at commit time.
func WrapPaymentConflict(paymentID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeConflict,
		fmt.Sprintf("Payment %s is %s, expected pending; re-run classification", paymentID, status),
		errors.Join(ErrConflict, ErrInvalidPaymentState),
	).WithDetail("payment_id", paymentID).WithDetail("payment_status", status)
}

// WrapObligationConflict reports an obligation that no longer accepts the payment.
func WrapObligationConflict(paymentID, kind, obligationID, status, reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeConflict,
		fmt.Sprintf("%s %s (status %s) cannot accept payment %s: %s", kind, obligationID, status, paymentID, reason),
		ErrConflict,
	).
		WithDetail("payment_id", paymentID).
		WithDetail("obligation_kind", kind).
		WithDetail("obligation_id", obligationID).
		WithDetail("obligation_status", status)
}

// WrapPersistence wraps a storage failure. Deadline and cancellation errors
// are reported as transient so callers know the whole operation may be retried.
func WrapPersistence(err error) *BusinessError {
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewBusinessError(ErrCodeTransient, "storage operation timed out", errors.Join(ErrPersistence, err))
	}
	return NewBusinessError(ErrCodePersistence, "database operation failed", errors.Join(ErrPersistence, err))
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }
func IsTransient(err error) bool   { return Code(err) == ErrCodeTransient }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}

// Code extracts the business error code, or "" for foreign errors.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// DetailsOf returns the operator-facing details attached to err, if any.
func DetailsOf(err error) map[string]string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Details
	}
	return nil
}
