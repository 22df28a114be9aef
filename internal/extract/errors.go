package extract

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindMalformed
	KindUnsupportedType
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode error"
	case KindMalformed:
		return "malformed document"
	case KindUnsupportedType:
		return "unsupported type"
	default:
		return "unknown extraction failure"
	}
}

// Error is the single failure shape returned by extractors and the dispatcher.
type Error struct {
	Kind      Kind
	MediaType string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.MediaType, e.Kind)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.MediaType, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind carried by err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func malformed(mediaType string, err error) *Error {
	return &Error{Kind: KindMalformed, MediaType: mediaType, Err: err}
}
