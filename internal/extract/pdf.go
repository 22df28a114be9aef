package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docsummary/internal/format"
)

var disablePDFConfigDir sync.Once

// PDF validates the container with pdfcpu and reads page text with
// ledongthuc/pdf. Pages are joined with a blank line in page order.
type PDF struct{}

func (PDF) Extract(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// ledongthuc/pdf panics on some broken object graphs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = malformed(format.TypePDF, fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	if err := validatePDF(data); err != nil {
		return "", malformed(format.TypePDF, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", malformed(format.TypePDF, fmt.Errorf("open reader: %w", err))
	}
	pages := r.NumPage()

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", malformed(format.TypePDF, fmt.Errorf("page %d: %w", i, err))
		}
		appendPage(&sb, pageText)
	}
	return sb.String(), nil
}

// appendPage separates pages with a blank line once any text was written.
func appendPage(sb *strings.Builder, text string) {
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString(text)
}

// validatePDF parses the cross-reference table and object graph.
func validatePDF(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty file")
	}
	disablePDFConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if _, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("pdfcpu read: %w", err)
	}
	return nil
}
