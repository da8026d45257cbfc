package lifecycle

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes lifecycle errors.
type ErrorCode string

const (
	// ErrCodeInvalidTransition indicates the status change is not permitted
	// for the role and current status.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeBusy indicates the order already has a transition in flight.
	ErrCodeBusy ErrorCode = "BUSY"

	// ErrCodeNotFound indicates the order (or item) is absent locally and in the store.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidState indicates the order's state does not allow the operation.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeForbidden indicates the actor may not perform the operation at all.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeDuplicate indicates the idempotency guard suppressed a repeat.
	ErrCodeDuplicate ErrorCode = "DUPLICATE"

	// ErrCodePrintFailure indicates receipt emission failed.
	ErrCodePrintFailure ErrorCode = "PRINT_FAILURE"
)

// Error is returned by every engine operation that is rejected.
type Error struct {
	Code    ErrorCode
	OrderID string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s (order=%s)", e.Code, e.Message, e.OrderID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, orderID, format string, args ...any) *Error {
	return &Error{Code: code, OrderID: orderID, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrorCode of err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsInvalidTransition reports whether err is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool {
	return CodeOf(err) == ErrCodeInvalidTransition
}

// IsBusy reports whether err is a BUSY error.
func IsBusy(err error) bool {
	return CodeOf(err) == ErrCodeBusy
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsInvalidState reports whether err is an INVALID_STATE error.
func IsInvalidState(err error) bool {
	return CodeOf(err) == ErrCodeInvalidState
}

// IsForbidden reports whether err is a FORBIDDEN error.
func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

// IsDuplicate reports whether err is a DUPLICATE error.
func IsDuplicate(err error) bool {
	return CodeOf(err) == ErrCodeDuplicate
}
