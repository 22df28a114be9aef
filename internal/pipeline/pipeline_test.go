package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"docsummary/internal/extract"
	"docsummary/internal/format"
	"docsummary/internal/models"
)

type countingStaged struct {
	path     string
	releases int
	err      error
}

func (s *countingStaged) Path() string { return s.path }
func (s *countingStaged) Release() error {
	s.releases++
	return s.err
}

type recordingExtractor struct {
	calls int
	text  string
	err   error
	panic bool
}

func (r *recordingExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	r.calls++
	if r.panic {
		panic("extractor blew up")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.err != nil {
		return "", r.err
	}
	if r.text != "" {
		return r.text, nil
	}
	return string(data), nil
}

type memRecorder struct {
	mu   sync.Mutex
	rows []*models.UploadRecord
}

func (m *memRecorder) Record(_ context.Context, rec *models.UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

type stubAbstracter struct {
	text string
	err  error
}

func (s stubAbstracter) Abstract(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func newStaged(t *testing.T, content string) *countingStaged {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.upload")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return &countingStaged{path: path}
}

func newOrchestrator(t *testing.T, ex extract.Extractor, rec Recorder, abs Abstracter) *Orchestrator {
	t.Helper()
	table := map[string]extract.Extractor{}
	for _, mt := range format.Accepted() {
		table[mt] = ex
	}
	o, err := New(Config{
		Dispatcher: extract.NewDispatcher(table, nil),
		Recorder:   rec,
		Abstracter: abs,
	})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestProcessSuccess(t *testing.T) {
	staged := newStaged(t, "Hello world")
	rec := &memRecorder{}
	o := newOrchestrator(t, &recordingExtractor{}, rec, stubAbstracter{text: "A greeting."})

	res, err := o.Process(context.Background(), UploadedFile{
		OriginalName: "note.txt",
		MediaType:    "text/plain; charset=utf-8",
		Size:         11,
		Content:      staged,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if staged.releases != 1 {
		t.Fatalf("released %d times", staged.releases)
	}
	if res.Report.CharacterCount != 11 || res.Report.WordCount != 2 {
		t.Fatalf("report = %+v", res.Report)
	}
	if res.Report.MediaType != format.TypePlainText {
		t.Fatalf("media type not canonical: %q", res.Report.MediaType)
	}
	if !strings.HasPrefix(res.Summary, "File Analysis for: note.txt\n\nContent Preview:\nHello world\n") {
		t.Fatalf("summary = %q", res.Summary)
	}
	if res.Abstract != "A greeting." {
		t.Fatalf("abstract = %q", res.Abstract)
	}
	want := []State{StateReceived, StateValidated, StateExtracted, StateSummarized, StateCleaned}
	if !reflect.DeepEqual(res.Trace, want) {
		t.Fatalf("trace = %v", res.Trace)
	}
	if len(rec.rows) != 1 || rec.rows[0].State != string(StateCleaned) || rec.rows[0].FailureStage != "" {
		t.Fatalf("audit rows = %+v", rec.rows)
	}
}

func TestProcessRejectsUnsupportedType(t *testing.T) {
	staged := newStaged(t, "\x89PNG")
	ex := &recordingExtractor{}
	rec := &memRecorder{}
	o := newOrchestrator(t, ex, rec, nil)

	_, err := o.Process(context.Background(), UploadedFile{
		OriginalName: "image.png",
		MediaType:    "image/png",
		Content:      staged,
	})
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Stage != StageValidation || pe.Kind != KindUnsupportedType || pe.Class != ClassClient {
		t.Fatalf("unexpected error %+v", pe)
	}
	if !errors.Is(err, format.ErrUnsupportedType) {
		t.Fatal("expected ErrUnsupportedType in chain")
	}
	if !strings.Contains(pe.Message, "image/png") {
		t.Fatalf("message should name the type: %q", pe.Message)
	}
	if ex.calls != 0 {
		t.Fatalf("extractor invoked %d times", ex.calls)
	}
	if staged.releases != 1 {
		t.Fatalf("released %d times", staged.releases)
	}
	if got := pe.Trace; !reflect.DeepEqual(got, []State{StateReceived, StateFailed}) {
		t.Fatalf("trace = %v", got)
	}
	if len(rec.rows) != 1 || rec.rows[0].FailureStage != string(StageValidation) {
		t.Fatalf("audit rows = %+v", rec.rows)
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  Kind
		wantClass Class
	}{
		{"malformed", &extract.Error{Kind: extract.KindMalformed, Err: errors.New("bad xref")}, KindMalformed, ClassClient},
		{"decode", &extract.Error{Kind: extract.KindDecode, Err: errors.New("bad utf-8")}, KindDecode, ClassClient},
		{"untyped", errors.New("weird"), KindMalformed, ClassClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staged := newStaged(t, "%PDF-1.4 broken")
			o := newOrchestrator(t, &recordingExtractor{err: tt.err}, nil, nil)
			_, err := o.Process(context.Background(), UploadedFile{
				OriginalName: "broken.pdf",
				MediaType:    format.TypePDF,
				Content:      staged,
			})
			pe, ok := AsError(err)
			if !ok {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pe.Stage != StageExtraction || pe.Kind != tt.wantKind || pe.Class != tt.wantClass {
				t.Fatalf("unexpected error %+v", pe)
			}
			if strings.Contains(pe.Message, "bad xref") {
				t.Fatalf("library detail leaked into message: %q", pe.Message)
			}
			if staged.releases != 1 {
				t.Fatalf("released %d times", staged.releases)
			}
		})
	}
}

func TestProcessCanceled(t *testing.T) {
	staged := newStaged(t, "Hello")
	o := newOrchestrator(t, &recordingExtractor{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Process(ctx, UploadedFile{OriginalName: "a.txt", MediaType: format.TypePlainText, Content: staged})
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Kind != KindCanceled || pe.Class != ClassClient {
		t.Fatalf("unexpected error %+v", pe)
	}
	if staged.releases != 1 {
		t.Fatalf("released %d times", staged.releases)
	}
}

func TestProcessRecoversPanic(t *testing.T) {
	staged := newStaged(t, "Hello")
	o := newOrchestrator(t, &recordingExtractor{panic: true}, nil, nil)

	_, err := o.Process(context.Background(), UploadedFile{OriginalName: "a.txt", MediaType: format.TypePlainText, Content: staged})
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Stage != StageExtraction || pe.Kind != KindInternal || pe.Class != ClassServer {
		t.Fatalf("unexpected error %+v", pe)
	}
	if staged.releases != 1 {
		t.Fatalf("released %d times", staged.releases)
	}
}

func TestProcessReleaseFailure(t *testing.T) {
	staged := newStaged(t, "Hello")
	staged.err = errors.New("disk gone")
	o := newOrchestrator(t, &recordingExtractor{}, nil, nil)

	res, err := o.Process(context.Background(), UploadedFile{OriginalName: "a.txt", MediaType: format.TypePlainText, Content: staged})
	if res != nil {
		t.Fatal("expected no result")
	}
	pe, ok := AsError(err)
	if !ok || pe.Stage != StageCleanup || pe.Kind != KindInternal {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestProcessReleaseFailureKeepsOriginalError(t *testing.T) {
	staged := newStaged(t, "Hello")
	staged.err = errors.New("disk gone")
	o := newOrchestrator(t, &recordingExtractor{}, nil, nil)

	_, err := o.Process(context.Background(), UploadedFile{OriginalName: "a.gif", MediaType: "image/gif", Content: staged})
	pe, ok := AsError(err)
	if !ok || pe.Stage != StageValidation {
		t.Fatalf("expected validation failure to win, got %v", err)
	}
}

func TestProcessAbstractFailureIsIgnored(t *testing.T) {
	staged := newStaged(t, "Hello")
	o := newOrchestrator(t, &recordingExtractor{}, nil, stubAbstracter{err: errors.New("provider down")})

	res, err := o.Process(context.Background(), UploadedFile{OriginalName: "a.txt", MediaType: format.TypePlainText, Content: staged})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Abstract != "" {
		t.Fatalf("abstract = %q", res.Abstract)
	}
}

func TestClassifyDispatcherTableGap(t *testing.T) {
	pe := Classify(StageExtraction, &extract.Error{Kind: extract.KindUnsupportedType})
	if pe.Class != ClassServer || pe.Kind != KindUnsupportedType {
		t.Fatalf("unexpected %+v", pe)
	}
}
