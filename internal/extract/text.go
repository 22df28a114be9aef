package extract

import (
	"context"
	"fmt"
	"unicode/utf8"

	"docsummary/internal/format"
)

// PlainText decodes UTF-8 text as is. Invalid sequences are rejected rather
// than replaced.
type PlainText struct{}

func (PlainText) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", &Error{
			Kind:      KindDecode,
			MediaType: format.TypePlainText,
			Err:       fmt.Errorf("invalid UTF-8 at byte %d", firstInvalidUTF8(data)),
		}
	}
	return string(data), nil
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
