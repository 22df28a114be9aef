package extract

import (
	"bytes"
	"context"
	"errors"
)

var (
	zipSignature = []byte("PK\x03\x04")
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Word reads raw text from both Word containers. The sub-variant is picked
// from the container signature, not from the declared type.
type Word struct{}

func (Word) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case bytes.HasPrefix(data, zipSignature):
		return extractOpenXML(ctx, data)
	case bytes.HasPrefix(data, oleSignature):
		return extractBinaryDoc(ctx, data)
	default:
		return "", malformed("", errors.New("not a Word document container"))
	}
}
