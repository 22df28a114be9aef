package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

var _ parser.Parser = (*Parser)(nil)

// Parser adapts a Dispatcher to the eino document parser interface for a
// single media type. It remembers the last extraction error so callers can
// recover the typed failure after the loader has wrapped it.
type Parser struct {
	dispatcher *Dispatcher
	mediaType  string
	err        error
}

// NewParser returns a parser bound to mediaType.
func NewParser(d *Dispatcher, mediaType string) *Parser {
	return &Parser{dispatcher: d, mediaType: mediaType}
}

func (p *Parser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)

	data, err := io.ReadAll(reader)
	if err != nil {
		p.err = fmt.Errorf("read source: %w", err)
		return nil, p.err
	}
	text, err := p.dispatcher.Dispatch(ctx, p.mediaType, data)
	if err != nil {
		p.err = err
		return nil, err
	}
	p.err = nil

	meta := map[string]any{
		"media_type": p.mediaType,
		"size":       len(data),
	}
	for k, v := range options.ExtraMeta {
		meta[k] = v
	}
	return []*schema.Document{{
		ID:       options.URI,
		Content:  text,
		MetaData: meta,
	}}, nil
}

// Err reports the error from the most recent Parse call.
func (p *Parser) Err() error { return p.err }
