package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so the transport layer can render it.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindDuplicateEntity
	KindEntityNotFound
	KindImmutableFieldUpdate
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation_error"
	case KindDuplicateEntity:
		return "duplicate_entity"
	case KindEntityNotFound:
		return "entity_not_found"
	case KindImmutableFieldUpdate:
		return "immutable_field_update"
	default:
		return "internal_error"
	}
}

// Sentinel errors for value object validation. They are wrapped in a
// validation *Error so errors.Is keeps working at the call site.
var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidPhone     = errors.New("invalid phone")
	ErrInvalidTaxNumber = errors.New("invalid tax number")
	ErrInvalidEdrpou    = errors.New("invalid edrpou")
	ErrInvalidPassport  = errors.New("invalid passport details")
	ErrInvalidSlug      = errors.New("invalid slug")
	ErrUnknownRole      = errors.New("unknown role")
)

// Error is the structured failure returned by every use case.
type Error struct {
	Kind    ErrorKind
	Entity  string
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindForbidden}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

// KindOf returns the kind of err. Errors that are not domain errors are internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

func NewUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NewForbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// WrapValidation attaches a field name to a value object failure.
func WrapValidation(field, value string, err error) *Error {
	return &Error{Kind: KindValidation, Field: field, Value: value, Message: "invalid " + field, Err: err}
}

func NewDuplicateEntity(entity, field, value string) *Error {
	return &Error{
		Kind:    KindDuplicateEntity,
		Entity:  entity,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("%s with %s %q already exists", entity, field, value),
	}
}

func NewEntityNotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindEntityNotFound,
		Entity:  entity,
		Field:   "id",
		Value:   id,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func NewImmutableFieldUpdate(entity, field string) *Error {
	return &Error{
		Kind:    KindImmutableFieldUpdate,
		Entity:  entity,
		Field:   field,
		Message: fmt.Sprintf("%s.%s cannot be changed", entity, field),
	}
}

func NewInternal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
