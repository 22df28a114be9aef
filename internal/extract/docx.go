package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docsummary/internal/format"
)

const (
	wordMainNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictMainNS = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	markupCompatNS   = "http://schemas.openxmlformats.org/markup-compatibility/2006"

	// maxDocumentXML caps the inflated size of word/document.xml.
	maxDocumentXML = 256 << 20
)

// extractOpenXML reads word/document.xml and emits one paragraph per line
// followed by a blank line.
func extractOpenXML(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", malformed(format.TypeWordOpenXML, fmt.Errorf("open zip: %w", err))
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", malformed(format.TypeWordOpenXML, errors.New("word/document.xml not found in archive"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", malformed(format.TypeWordOpenXML, fmt.Errorf("open document.xml: %w", err))
	}
	defer rc.Close()

	text, err := readDocumentXML(ctx, io.LimitReader(rc, maxDocumentXML))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", malformed(format.TypeWordOpenXML, err)
	}
	return text, nil
}

func readDocumentXML(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out       strings.Builder
		paragraph strings.Builder
		runDepth  int
		inText    bool
		sawBody   bool

		// mc:Choice content repeats its mc:Fallback; only the fallback is read.
		choiceDepth int
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isChoice(t.Name) {
				choiceDepth++
				continue
			}
			if choiceDepth > 0 || !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "body":
				sawBody = true
			case "r":
				runDepth++
			case "t":
				inText = runDepth > 0
			case "tab":
				if runDepth > 0 {
					paragraph.WriteByte('\t')
				}
			case "br", "cr":
				if runDepth > 0 {
					paragraph.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if isChoice(t.Name) {
				choiceDepth--
				continue
			}
			if choiceDepth > 0 || !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "t":
				inText = false
			case "p":
				out.WriteString(paragraph.String())
				out.WriteString("\n\n")
				paragraph.Reset()
			}
		case xml.CharData:
			if inText && choiceDepth == 0 {
				paragraph.Write(t)
			}
		}
	}
	if !sawBody {
		return "", errors.New("document.xml has no w:body")
	}
	return out.String(), nil
}

func isWordElement(name xml.Name) bool {
	return name.Space == wordMainNS || name.Space == wordStrictMainNS
}

func isChoice(name xml.Name) bool {
	return name.Space == markupCompatNS && name.Local == "Choice"
}
