package common

import (
	"errors"
	"fmt"
)

// Code is the numeric failure code surfaced to callers.
type Code uint32

const (
	CodeNotAuthorized             Code = 1
	CodeAlreadyInitialized        Code = 2
	CodeNotInitialized            Code = 3
	CodeReentrancy                Code = 4
	CodeMerchantAlreadyRegistered Code = 5
	CodeMerchantNotFound          Code = 6
	CodeInvalidAmount             Code = 7
	CodeInvoiceNotFound           Code = 8
	CodeTokenNotAccepted          Code = 9
)

// Error is one member of the closed contract error enumeration. Values are
// compared by identity, so wrap them with %w to add context.
type Error struct {
	Code Code
	Name string
}

func (e *Error) Error() string {
	return fmt.Sprintf("shade: %s (#%d)", e.Name, e.Code)
}

var (
	ErrNotAuthorized             = &Error{Code: CodeNotAuthorized, Name: "not authorized"}
	ErrAlreadyInitialized        = &Error{Code: CodeAlreadyInitialized, Name: "already initialized"}
	ErrNotInitialized            = &Error{Code: CodeNotInitialized, Name: "not initialized"}
	ErrReentrancy                = &Error{Code: CodeReentrancy, Name: "reentrant call"}
	ErrMerchantAlreadyRegistered = &Error{Code: CodeMerchantAlreadyRegistered, Name: "merchant already registered"}
	ErrMerchantNotFound          = &Error{Code: CodeMerchantNotFound, Name: "merchant not found"}
	ErrInvalidAmount             = &Error{Code: CodeInvalidAmount, Name: "invalid amount"}
	ErrInvoiceNotFound           = &Error{Code: CodeInvoiceNotFound, Name: "invoice not found"}
	ErrTokenNotAccepted          = &Error{Code: CodeTokenNotAccepted, Name: "token not accepted"}
)

// CodeOf extracts the contract error code from err. The boolean is false for
// storage failures, external errors and anything outside the enumeration.
func CodeOf(err error) (Code, bool) {
	var contractErr *Error
	if errors.As(err, &contractErr) {
		return contractErr.Code, true
	}
	return 0, false
}

// ExternalError wraps a failure raised by code outside the contract, such as
// a token probe. It never carries a contract code.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("shade: external call %s failed: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// External wraps err as an ExternalError for op. A nil err stays nil.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Op: op, Err: err}
}
