package pipeline

import (
	"context"
	"errors"
	"fmt"

	"docsummary/internal/extract"
	"docsummary/internal/format"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageValidation Stage = "validation"
	StageExtraction Stage = "extraction"
	StageSummary    Stage = "summary"
	StageCleanup    Stage = "cleanup"
)

// Kind is the cause category of a failure.
type Kind string

const (
	KindUnsupportedType Kind = "unsupported_type"
	KindDecode          Kind = "decode_error"
	KindMalformed       Kind = "malformed_document"
	KindCanceled        Kind = "canceled"
	KindInternal        Kind = "internal"
)

// Class tells the transport whose fault a failure is.
type Class int

const (
	ClassClient Class = iota + 1
	ClassServer
)

func (c Class) String() string {
	if c == ClassClient {
		return "client"
	}
	return "server"
}

// Error is the only error shape Process returns. Message is safe to show
// to callers; Err carries the library detail for logs.
type Error struct {
	Stage   Stage
	Kind    Kind
	Class   Class
	Message string
	Err     error
	Trace   []State
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError returns the *Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Classify maps an error raised at stage onto a pipeline *Error.
func Classify(stage Stage, err error) *Error {
	if pe, ok := AsError(err); ok {
		return pe
	}

	out := &Error{Stage: stage, Err: err}
	var verr *format.ValidationError
	switch {
	case errors.As(err, &verr):
		out.Kind, out.Class = KindUnsupportedType, ClassClient
		out.Message = verr.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Kind, out.Class = KindCanceled, ClassClient
		out.Message = "request canceled"
	default:
		switch extract.KindOf(err) {
		case extract.KindDecode:
			out.Kind, out.Class = KindDecode, ClassClient
			out.Message = "document text could not be decoded"
		case extract.KindMalformed:
			out.Kind, out.Class = KindMalformed, ClassClient
			out.Message = "document is malformed or unreadable"
		case extract.KindUnsupportedType:
			// accepted by the validator but missing from the dispatch table
			out.Kind, out.Class = KindUnsupportedType, ClassServer
			out.Message = "no extractor available for this file type"
		default:
			out.Kind, out.Class = KindInternal, ClassServer
			out.Message = "internal error"
		}
	}
	out.Message = string(stage) + " failed: " + out.Message
	return out
}
