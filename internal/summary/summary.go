// Package summary derives the preview and statistics shown for an upload.
package summary

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docsummary/internal/models"
)

const (
	// PreviewLimit is the preview length in code points.
	PreviewLimit = 500
	// TruncationMarker is appended to a preview cut short.
	TruncationMarker = "..."
)

// FileMeta describes the upload the text came from.
type FileMeta struct {
	Name      string
	SizeBytes int64
	MediaType string
}

// Build computes the report for text. It never fails.
func Build(text string, meta FileMeta) *models.SummaryReport {
	preview, truncated := Preview(text, PreviewLimit)
	return &models.SummaryReport{
		HeaderLabel:    HeaderLabel(meta.Name),
		PreviewText:    preview,
		Truncated:      truncated,
		FileName:       meta.Name,
		FileSizeBytes:  meta.SizeBytes,
		FileSizeKB:     FormatKB(meta.SizeBytes),
		MediaType:      meta.MediaType,
		CharacterCount: CharCount(text),
		WordCount:      WordCount(text),
	}
}

// Preview returns the first limit code points of text. The marker is added
// only when something was cut.
func Preview(text string, limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i] + TruncationMarker, true
		}
		n++
	}
	return text, false
}

// CharCount counts Unicode code points.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// WordCount counts maximal runs of non-whitespace.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// FormatKB renders bytes/1024 with two decimals, rounding half up.
func FormatKB(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	hundredths := (bytes*100 + 512) / 1024
	return fmt.Sprintf("%d.%02d", hundredths/100, hundredths%100)
}

// HeaderLabel is the first line of the rendered summary.
func HeaderLabel(name string) string {
	return "File Analysis for: " + name
}

// Render lays the report out as the plain-text summary body.
func Render(r *models.SummaryReport) string {
	var sb strings.Builder
	sb.WriteString(r.HeaderLabel)
	sb.WriteString("\n\nContent Preview:\n")
	sb.WriteString(r.PreviewText)
	sb.WriteString("\n\nFile Details:\n")
	fmt.Fprintf(&sb, "- File Name: %s\n", r.FileName)
	fmt.Fprintf(&sb, "- File Size: %s KB\n", r.FileSizeKB)
	fmt.Fprintf(&sb, "- File Type: %s\n", r.MediaType)
	fmt.Fprintf(&sb, "- Character Count: %d\n", r.CharacterCount)
	fmt.Fprintf(&sb, "- Word Count: %d\n", r.WordCount)
	return sb.String()
}
