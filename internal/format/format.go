// Package format decides which declared media types the service accepts.
package format

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Accepted declared media types.
const (
	TypePlainText   = "text/plain"
	TypePDF         = "application/pdf"
	TypeWordLegacy  = "application/msword"
	TypeWordOpenXML = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var accepted = []string{TypePlainText, TypePDF, TypeWordLegacy, TypeWordOpenXML}

// ErrUnsupportedType is wrapped by every ValidationError.
var ErrUnsupportedType = errors.New("unsupported file type")

// ValidationError reports a declared media type outside the allow-list.
type ValidationError struct {
	MediaType string
}

func (e *ValidationError) Error() string {
	declared := e.MediaType
	if declared == "" {
		declared = "(none)"
	}
	return fmt.Sprintf("%s %q: accepted types are %s", ErrUnsupportedType, declared, strings.Join(accepted, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrUnsupportedType }

// Accepted returns a copy of the allow-list.
func Accepted() []string {
	out := make([]string, len(accepted))
	copy(out, accepted)
	return out
}

// Validate checks the declared media type and returns its canonical token.
// Parameters such as "; charset=utf-8" and letter case are ignored; the file
// bytes are never consulted.
func Validate(mediaType string) (string, error) {
	canonical := Canonical(mediaType)
	for _, allowed := range accepted {
		if canonical == allowed {
			return canonical, nil
		}
	}
	return "", &ValidationError{MediaType: strings.TrimSpace(mediaType)}
}

// Canonical strips parameters and lowercases a media type. Unparseable input
// yields an empty string.
func Canonical(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	return base
}

var byExtension = map[string]string{
	".txt":  TypePlainText,
	".text": TypePlainText,
	".pdf":  TypePDF,
	".doc":  TypeWordLegacy,
	".docx": TypeWordOpenXML,
}

// FromExtension maps a file extension to the media type a browser would
// declare for it. Unknown extensions yield "application/octet-stream".
func FromExtension(ext string) string {
	if t, ok := byExtension[strings.ToLower(ext)]; ok {
		return t
	}
	return "application/octet-stream"
}
