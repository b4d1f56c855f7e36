// Package apperr defines the error taxonomy shared by the relay pipeline and
// its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one concrete failure kind. Its string form is what clients
// see in the "kind" field of an error envelope.
type Code string

const (
	CodeMissingField        Code = "missing_field"
	CodeMissingCredential   Code = "missing_credential"
	CodeInvalidRequest      Code = "invalid_request"
	CodeUnsupportedProvider Code = "unsupported_provider"
	CodeTransportFailure    Code = "transport_failure"
	CodeNoJSONFound         Code = "no_json_found"
	CodeMalformedJSON       Code = "malformed_json"
	CodeSchemaViolation     Code = "schema_violation"
	CodeInternal            Code = "internal"
)

// Category groups codes by pipeline stage.
type Category string

const (
	CategoryRequest    Category = "request_error"
	CategoryUpstream   Category = "upstream_error"
	CategoryExtraction Category = "extraction_error"
	CategorySchema     Category = "schema_error"
	CategoryInternal   Category = "internal_error"
)

// Category returns the group c belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeMissingField, CodeMissingCredential, CodeInvalidRequest:
		return CategoryRequest
	case CodeUnsupportedProvider, CodeTransportFailure:
		return CategoryUpstream
	case CodeNoJSONFound:
		return CategoryExtraction
	case CodeMalformedJSON, CodeSchemaViolation:
		return CategorySchema
	default:
		return CategoryInternal
	}
}

// HTTPStatus maps c onto the status returned to clients. Only transport and
// internal failures are server errors.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeTransportFailure, CodeInternal:
		return http.StatusInternalServerError
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is the single error type produced by the pipeline. Raw carries the
// offending model output for extraction and schema failures; Field, Expected
// and Actual are set for schema violations and missing request fields.
type Error struct {
	Code     Code
	Message  string
	Raw      string
	Field    string
	Expected string
	Actual   string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Category is shorthand for e.Code.Category().
func (e *Error) Category() Category { return e.Code.Category() }

// HTTPStatus is shorthand for e.Code.HTTPStatus().
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithRaw returns a copy of e carrying the offending text.
func (e *Error) WithRaw(raw string) *Error {
	c := *e
	c.Raw = raw
	return &c
}

// WithField returns a copy of e describing a field-level mismatch.
func (e *Error) WithField(field, expected, actual string) *Error {
	c := *e
	c.Field = field
	c.Expected = expected
	c.Actual = actual
	return &c
}

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// From returns err as an *Error, wrapping anything else as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "internal error")
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

var (
	ErrMissingField        = New(CodeMissingField, "missing required field")
	ErrMissingCredential   = New(CodeMissingCredential, "Missing API key")
	ErrInvalidRequest      = New(CodeInvalidRequest, "Empty or invalid JSON")
	ErrUnsupportedProvider = New(CodeUnsupportedProvider, "unsupported provider")
	ErrTransportFailure    = New(CodeTransportFailure, "provider call failed")
	ErrNoJSONFound         = New(CodeNoJSONFound, "No JSON found in response")
	ErrMalformedJSON       = New(CodeMalformedJSON, "Invalid JSON")
	ErrSchemaViolation     = New(CodeSchemaViolation, "schema violation")
	ErrInternal            = New(CodeInternal, "internal error")
)
