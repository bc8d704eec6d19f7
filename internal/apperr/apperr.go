// Package apperr defines the caller-facing error kinds shared by the event
// service, the swap engine and the auth service.
//
// Every kind has a sentinel usable with errors.Is:
//
//	if errors.Is(err, apperr.ErrInvalidSlotState) { ... }
//
// Errors that carry no kind are infrastructure failures and are reported to
// callers as internal errors.
package apperr

import "errors"

type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindInvalidSlotState    Kind = "INVALID_SLOT_STATE"
	KindInvalidRequestState Kind = "INVALID_REQUEST_STATE"
	KindInconsistentState   Kind = "INCONSISTENT_STATE"
	KindOwnershipMismatch   Kind = "OWNERSHIP_MISMATCH"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindInternal            Kind = "INTERNAL"
)

// Error is a failure with a stable kind and a message safe to show callers.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so the message-less sentinels
// below compare equal to every concrete error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInvalidSlotState    = &Error{Kind: KindInvalidSlotState}
	ErrInvalidRequestState = &Error{Kind: KindInvalidRequestState}
	ErrInconsistentState   = &Error{Kind: KindInconsistentState}
	ErrOwnershipMismatch   = &Error{Kind: KindOwnershipMismatch}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
)

func Validation(msg string) error          { return &Error{Kind: KindValidation, Message: msg} }
func InvalidSlotState(msg string) error    { return &Error{Kind: KindInvalidSlotState, Message: msg} }
func InvalidRequestState(msg string) error { return &Error{Kind: KindInvalidRequestState, Message: msg} }
func InconsistentState(msg string) error   { return &Error{Kind: KindInconsistentState, Message: msg} }
func OwnershipMismatch(msg string) error   { return &Error{Kind: KindOwnershipMismatch, Message: msg} }
func NotFound(msg string) error            { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) error            { return &Error{Kind: KindConflict, Message: msg} }
func Unauthorized(msg string) error        { return &Error{Kind: KindUnauthorized, Message: msg} }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
