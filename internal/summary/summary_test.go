package summary

import (
	"strings"
	"testing"
)

func TestPreviewBoundary(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantTruncated bool
		wantPreview   string
	}{
		{"empty", "", false, ""},
		{"exactly limit", strings.Repeat("a", 500), false, strings.Repeat("a", 500)},
		{"one over", strings.Repeat("a", 501), true, strings.Repeat("a", 500) + "..."},
		{"multibyte over", strings.Repeat("é", 600), true, strings.Repeat("é", 500) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Preview(tt.text, PreviewLimit)
			if truncated != tt.wantTruncated {
				t.Fatalf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
			if got != tt.wantPreview {
				t.Fatalf("preview length %d, want %d", len(got), len(tt.wantPreview))
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	tests := map[string]int{
		"":                      0,
		"   ":                   0,
		"  a   b  ":             2,
		"Hello world":           2,
		"tabs\tand\nnewlines\r": 3,
		"中文 text":               2,
	}
	for in, want := range tests {
		if got := WordCount(in); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatKB(t *testing.T) {
	tests := map[int64]string{
		0:        "0.00",
		11:       "0.01",
		5:        "0.00",
		512:      "0.50",
		1024:     "1.00",
		1536:     "1.50",
		31457280: "30720.00",
	}
	for in, want := range tests {
		if got := FormatKB(in); got != want {
			t.Errorf("FormatKB(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildHelloWorld(t *testing.T) {
	r := Build("Hello world", FileMeta{Name: "note.txt", SizeBytes: 11, MediaType: "text/plain"})
	if r.HeaderLabel != "File Analysis for: note.txt" {
		t.Fatalf("header = %q", r.HeaderLabel)
	}
	if r.PreviewText != "Hello world" || r.Truncated {
		t.Fatalf("preview = %q truncated=%v", r.PreviewText, r.Truncated)
	}
	if r.CharacterCount != 11 || r.WordCount != 2 {
		t.Fatalf("counts = %d/%d", r.CharacterCount, r.WordCount)
	}
	if r.FileSizeKB != "0.01" {
		t.Fatalf("size = %q", r.FileSizeKB)
	}

	want := "File Analysis for: note.txt\n\nContent Preview:\nHello world\n\nFile Details:\n" +
		"- File Name: note.txt\n- File Size: 0.01 KB\n- File Type: text/plain\n" +
		"- Character Count: 11\n- Word Count: 2\n"
	if got := Render(r); got != want {
		t.Fatalf("render mismatch:\n%s", got)
	}
}

func TestBuildCountsFullText(t *testing.T) {
	text := strings.Repeat("word ", 300)
	r := Build(text, FileMeta{Name: "long.txt", SizeBytes: int64(len(text))})
	if !r.Truncated {
		t.Fatal("expected truncated preview")
	}
	if r.CharacterCount != 1500 {
		t.Fatalf("character count = %d", r.CharacterCount)
	}
	if r.WordCount != 300 {
		t.Fatalf("word count = %d", r.WordCount)
	}
	if r.PreviewText == text {
		t.Fatal("preview must differ from full text")
	}
}
