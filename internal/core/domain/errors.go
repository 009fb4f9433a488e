package domain

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Kind is the status class an error maps to at the HTTP edge. It is set by
// the component that detects the failure.
type Kind uint8

const (
	// KindInternal is the default for untagged errors.
	KindInternal Kind = iota
	KindBadRequest
	KindValidation
	// KindInvalidID marks identifiers that cannot be a record id at all.
	KindInvalidID
	KindNotFound
	KindConflict
	KindTimeout
	KindStorage
	// KindUpstream marks failures of the enrichment provider.
	KindUpstream
)

var kindNames = [...]string{
	KindInternal:   "internal",
	KindBadRequest: "bad_request",
	KindValidation: "validation",
	KindInvalidID:  "invalid_id",
	KindNotFound:   "not_found",
	KindConflict:   "conflict",
	KindTimeout:    "timeout",
	KindStorage:    "storage",
	KindUpstream:   "upstream",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// FieldViolation is a single failed validation rule.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged error produced by every layer of the pipeline.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldViolation
	Err     error

	trace error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StackTrace exposes the stack recorded when the error was created, so
// zerolog/pkgerrors can marshal it.
func (e *Error) StackTrace() errors.StackTrace {
	if st, ok := e.trace.(interface{ StackTrace() errors.StackTrace }); ok {
		return st.StackTrace()
	}
	return nil
}

func newError(kind Kind, msg string, cause error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: cause}
	if cause != nil {
		e.trace = errors.WithStack(cause)
	} else {
		e.trace = errors.New(msg)
	}
	return e
}

func BadRequest(msg string) *Error { return newError(KindBadRequest, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

func InvalidID(id string) *Error { return newError(KindInvalidID, "invalid id "+id, nil) }

func Conflict(msg string, cause error) *Error { return newError(KindConflict, msg, cause) }

func Timeout(msg string, cause error) *Error { return newError(KindTimeout, msg, cause) }

func Storage(msg string, cause error) *Error { return newError(KindStorage, msg, cause) }

func Upstream(msg string, cause error) *Error { return newError(KindUpstream, msg, cause) }

func Internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

// Validation builds a KindValidation error carrying every violation.
func Validation(fields []FieldViolation) *Error {
	e := newError(KindValidation, "validation failed", nil)
	e.Fields = fields
	return e
}

// Retag returns err re-classified as kind, keeping its message and stack.
// Untagged errors are wrapped.
func Retag(err error, kind Kind) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		clone := *e
		clone.Kind = kind
		return &clone
	}
	return newError(kind, err.Error(), err)
}

// KindOf returns the tag carried by err, or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTagged reports whether err carries a *Error anywhere in its chain.
func IsTagged(err error) bool {
	var e *Error
	return stderrors.As(err, &e)
}

// IsKind reports whether err is tagged with kind.
func IsKind(err error, kind Kind) bool {
	return IsTagged(err) && KindOf(err) == kind
}
