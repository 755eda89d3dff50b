package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can branch without parsing messages.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindUpstream     Kind = "upstream"
)

const (
	CodeAlreadyAssigned = "already_assigned"
	CodeNotApproved     = "not_approved"
	CodeInvalidToken    = "invalid_token"
	CodeInvalidState    = "invalid_state"
	CodeRateLimited     = "rate_limited"
)

type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and, when the target has one, Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrAlreadyAssigned = &Error{Kind: KindConflict, Code: CodeAlreadyAssigned, Message: "job already assigned to another technician"}
	ErrNotApproved     = &Error{Kind: KindUnauthorized, Code: CodeNotApproved, Message: "technician is not approved"}
	ErrInvalidToken    = &Error{Kind: KindUnauthorized, Code: CodeInvalidToken, Message: "invalid or expired token"}

	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUpstream     = &Error{Kind: KindUpstream}
)

func Validation(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf("%s: %s", field, message)}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Code: CodeInvalidState, Message: message}
}

// RateLimited reports a caller that exceeded its attempt budget.
func RateLimited(message string) error {
	return &Error{Kind: KindConflict, Code: CodeRateLimited, Message: message}
}

func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Message: op, Err: err}
}

// KindOf extracts the Kind of err; untyped errors count as upstream failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUpstream
}

// CodeOf extracts the machine-readable code of err, if any.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
