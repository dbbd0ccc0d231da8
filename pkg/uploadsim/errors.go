package uploadsim

import (
	"fmt"
	"strings"
)

// Error is a kind of failure reported by this package. Every error returned
// by BuildUploadURL or Upload matches exactly one kind via errors.Is.
type Error uint8

const (
	ErrParamsEncodingFailed    Error = iota + 1 // query params could not be serialized
	ErrURLValidationFailed                      // built URL is not a valid URL
	ErrBuildingRequest                          // upload URL could not be built
	ErrInvalidFilename                          // path has no file name component
	ErrSendingRequest                           // transport failure
	ErrIo                                       // local file could not be read
	ErrResponseReturnedFailure                  // API answered with a failure record
	ErrParsingResponse                          // response matched no known shape
)

const errorsPrefix = "uploads.im:"

// Error returns the kind in a string representation.
func (err Error) Error() string {
	var buf strings.Builder

	buf.WriteString(errorsPrefix + " ")

	switch err {
	case ErrParamsEncodingFailed:
		buf.WriteString("URL params serialization failed")

	case ErrURLValidationFailed:
		buf.WriteString("URL validation failed")

	case ErrBuildingRequest:
		buf.WriteString("failed building upload request")

	case ErrInvalidFilename:
		buf.WriteString("invalid filename")

	case ErrSendingRequest:
		buf.WriteString("could not transmit upload request")

	case ErrIo:
		buf.WriteString("cannot access file to upload")

	case ErrResponseReturnedFailure:
		buf.WriteString("the server returned a failure")

	case ErrParsingResponse:
		buf.WriteString("internal error: unable to parse upload response")

	default:
		buf.WriteString("unknown error")
	}

	return buf.String()
}

// URLBuildError is returned by BuildUploadURL.
type URLBuildError struct {
	Kind Error // ErrParamsEncodingFailed or ErrURLValidationFailed
	Err  error
}

func (e *URLBuildError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *URLBuildError) Unwrap() error { return e.Err }

func (e *URLBuildError) Is(target error) bool {
	kind, ok := target.(Error)
	return ok && kind == e.Kind
}

// UploadError is returned by Upload and DecodeResponse.
type UploadError struct {
	Kind Error

	// Path is set for ErrInvalidFilename.
	Path string

	// StatusCode and StatusText are set for ErrResponseReturnedFailure. The
	// code comes from the response body, not the HTTP status line.
	StatusCode int
	StatusText string

	Err error
}

func (e *UploadError) Error() string {
	switch e.Kind {
	case ErrInvalidFilename:
		return fmt.Sprintf("%s %q", e.Kind.Error(), e.Path)
	case ErrResponseReturnedFailure:
		return fmt.Sprintf("%s the server returned HTTP error code %d (%q)", errorsPrefix, e.StatusCode, e.StatusText)
	}
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool {
	kind, ok := target.(Error)
	return ok && kind == e.Kind
}

// InvalidValueError describes a response field whose value failed coercion.
type InvalidValueError struct {
	Field      string
	Unexpected string
	Expected   string
}

func (e *InvalidValueError) Error() string {
	msg := fmt.Sprintf("invalid value: %s, expected %s", e.Unexpected, e.Expected)
	if e.Field == "" {
		return msg
	}
	return e.Field + ": " + msg
}

func newUploadError(kind Error, err error) *UploadError {
	return &UploadError{Kind: kind, Err: err}
}
