package models

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures of the order capture and sync subsystem.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindPaymentInsufficient ErrorKind = "PAYMENT_INSUFFICIENT"
	KindMissingReference    ErrorKind = "MISSING_REFERENCE"
	KindEmptyOrder          ErrorKind = "EMPTY_ORDER"
	KindNetwork             ErrorKind = "NETWORK"
	KindValidation          ErrorKind = "VALIDATION"
)

// Error carries a kind plus the offending field, if any.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func NewInvalidInput(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: message}
}

func NewPaymentInsufficient(message string) *Error {
	return &Error{Kind: KindPaymentInsufficient, Field: "tendered", Message: message}
}

func NewMissingReference() *Error {
	return &Error{Kind: KindMissingReference, Field: "reference", Message: "digital payment requires a reference"}
}

func NewEmptyOrder() *Error {
	return &Error{Kind: KindEmptyOrder, Field: "lines", Message: "order has no lines"}
}

// NewNetworkError marks err as a transient transport failure; the write may be retried.
func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// NewValidationError marks err as a rejection by the remote store; retrying
// the same payload will not help.
func NewValidationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}
