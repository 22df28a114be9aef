package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"

	"docsummary/internal/format"
)

// Extractor turns raw document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Dispatcher routes a canonical media type to exactly one Extractor.
// The table is read-only after construction.
type Dispatcher struct {
	table  map[string]Extractor
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher over table. A nil logger discards output.
func NewDispatcher(table map[string]Extractor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	copied := make(map[string]Extractor, len(table))
	for k, v := range table {
		copied[k] = v
	}
	return &Dispatcher{table: copied, logger: logger}
}

// DefaultDispatcher covers every accepted media type.
func DefaultDispatcher(logger *slog.Logger) *Dispatcher {
	return NewDispatcher(map[string]Extractor{
		format.TypePlainText:   PlainText{},
		format.TypePDF:         PDF{},
		format.TypeWordLegacy:  Word{},
		format.TypeWordOpenXML: Word{},
	}, logger)
}

// Lookup returns the extractor registered for mediaType.
func (d *Dispatcher) Lookup(mediaType string) (Extractor, bool) {
	ex, ok := d.table[mediaType]
	return ex, ok
}

// Dispatch invokes the extractor for mediaType once. Context errors pass
// through unchanged; everything else comes back as *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, mediaType string, data []byte) (string, error) {
	ex, ok := d.Lookup(mediaType)
	if !ok {
		return "", &Error{
			Kind:      KindUnsupportedType,
			MediaType: mediaType,
			Err:       errors.New("no extractor registered"),
		}
	}

	text, err := ex.Extract(ctx, data)
	if err == nil {
		d.logger.Debug("extracted text", "media_type", mediaType, "bytes", len(data), "chars", len(text))
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	var typed *Error
	if errors.As(err, &typed) {
		if typed.MediaType == "" {
			typed.MediaType = mediaType
		}
		return "", typed
	}
	return "", malformed(mediaType, err)
}

// DispatchFile reads the file at path through the eino file loader and
// extracts it with the extractor for mediaType.
func (d *Dispatcher) DispatchFile(ctx context.Context, mediaType, path string) (string, error) {
	p := NewParser(d, mediaType)
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      p,
	})
	if err != nil {
		return "", fmt.Errorf("create file loader: %w", err)
	}

	docs, err := loader.Load(ctx, document.Source{URI: path})
	if perr := p.Err(); perr != nil {
		// the loader may wrap parser errors; hand back the typed one
		return "", perr
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].Content, nil
}
