package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is the cause of a RetCStoreUnavailable error if the store was never started or stopped on purpose
	ErrUnavailable = errors.New("store is not started")
	// ErrTransactionTooLarge is returned if a transaction exceeds the configured maximum size
	ErrTransactionTooLarge = errors.New("transaction too large")
	// ErrTransactionCompleted is returned if a completed transaction is used again
	ErrTransactionCompleted = errors.New("transaction already completed")
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the error that caused it.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target is an *Error with the same code,
// so errors.Is(err, NewError(RetCStoreUnavailable, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code, message and cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// IsCode reports whether any error in err's chain is a store error with the given code
func IsCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCInvalidState                        // 4: Lifecycle operation not allowed in the current state.
	RetCStoreUnavailable                    // 5: The store is not started.
	RetCRootRecordMissing                   // 6: The persistence backend has no root record.
	RetCInvalidTransactionID                // 7: A transaction id could not be parsed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCInvalidState:
		return "InvalidState"
	case RetCStoreUnavailable:
		return "StoreUnavailable"
	case RetCRootRecordMissing:
		return "RootRecordMissing"
	case RetCInvalidTransactionID:
		return "InvalidTransactionID"
	default:
		return "Unknown"
	}
}
