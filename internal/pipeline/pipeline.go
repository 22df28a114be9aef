// Package pipeline runs one uploaded document through validation,
// extraction and summarisation, and guarantees the staged file is released.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"docsummary/internal/format"
	"docsummary/internal/models"
	"docsummary/internal/summary"
)

// State is a pipeline lifecycle state.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateExtracted  State = "extracted"
	StateSummarized State = "summarized"
	StateCleaned    State = "cleaned"
	StateFailed     State = "failed"
)

// Staged is the request-scoped handle to the uploaded bytes.
type Staged interface {
	Path() string
	Release() error
}

// UploadedFile is what the transport hands the pipeline.
type UploadedFile struct {
	OriginalName string
	MediaType    string
	Size         int64
	Content      Staged
	ClientIP     string
}

// Dispatcher extracts text from a staged file.
type Dispatcher interface {
	DispatchFile(ctx context.Context, mediaType, path string) (string, error)
}

// Abstracter writes a short free-form abstract of extracted text.
type Abstracter interface {
	Abstract(ctx context.Context, fileName, text string) (string, error)
}

// Recorder stores one audit row per run.
type Recorder interface {
	Record(ctx context.Context, rec *models.UploadRecord) error
}

// Result is a successful run.
type Result struct {
	Report   *models.SummaryReport
	Summary  string
	Abstract string
	Trace    []State
}

type Config struct {
	Dispatcher Dispatcher
	Abstracter Abstracter
	Recorder   Recorder
	Logger     *slog.Logger
}

// Orchestrator is safe for concurrent use; every call to Process is
// independent.
type Orchestrator struct {
	dispatcher Dispatcher
	abstracter Abstracter
	recorder   Recorder
	logger     *slog.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("pipeline: dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		dispatcher: cfg.Dispatcher,
		abstracter: cfg.Abstracter,
		recorder:   cfg.Recorder,
		logger:     logger,
	}, nil
}

// Process runs f through the pipeline. f.Content is released exactly once
// before Process returns, whatever the outcome.
func (o *Orchestrator) Process(ctx context.Context, f UploadedFile) (res *Result, err error) {
	start := time.Now()
	trace := []State{StateReceived}
	stage := StageValidation
	log := o.logger.With("file", f.OriginalName, "media_type", f.MediaType, "size", f.Size)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "stage", stage, "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = &Error{
				Stage:   stage,
				Kind:    KindInternal,
				Class:   ClassServer,
				Message: string(stage) + " failed: internal error",
				Err:     fmt.Errorf("panic: %v", r),
			}
		}

		if relErr := release(f.Content); relErr != nil {
			if err == nil {
				res = nil
				err = &Error{
					Stage:   StageCleanup,
					Kind:    KindInternal,
					Class:   ClassServer,
					Message: "cleanup failed: internal error",
					Err:     relErr,
				}
			} else {
				log.Warn("release staged file after failure", "err", relErr)
			}
		}

		if err == nil {
			trace = append(trace, StateCleaned)
			res.Trace = trace
		} else {
			trace = append(trace, StateFailed)
			pe := Classify(stage, err)
			pe.Trace = trace
			err = pe
			logFailure(log, pe)
		}
		o.record(ctx, f, trace, err, time.Since(start))
	}()

	if f.Content == nil {
		return nil, &Error{
			Stage:   StageValidation,
			Kind:    KindInternal,
			Class:   ClassServer,
			Message: "validation failed: no staged content",
		}
	}

	mediaType, err := format.Validate(f.MediaType)
	if err != nil {
		return nil, Classify(StageValidation, err)
	}
	trace = append(trace, StateValidated)

	stage = StageExtraction
	text, err := o.dispatcher.DispatchFile(ctx, mediaType, f.Content.Path())
	if err != nil {
		return nil, Classify(StageExtraction, err)
	}
	trace = append(trace, StateExtracted)

	stage = StageSummary
	report := summary.Build(text, summary.FileMeta{
		Name:      f.OriginalName,
		SizeBytes: f.Size,
		MediaType: mediaType,
	})
	result := &Result{Report: report, Summary: summary.Render(report)}
	if o.abstracter != nil {
		abstract, aerr := o.abstracter.Abstract(ctx, f.OriginalName, text)
		if aerr != nil {
			log.Warn("abstract generation failed", "err", aerr)
		} else {
			result.Abstract = abstract
		}
	}
	trace = append(trace, StateSummarized)

	stage = StageCleanup
	log.Info("document summarized", "chars", report.CharacterCount, "words", report.WordCount)
	return result, nil
}

func release(s Staged) error {
	if s == nil {
		return nil
	}
	return s.Release()
}

func logFailure(log *slog.Logger, pe *Error) {
	attrs := []any{"stage", pe.Stage, "kind", pe.Kind, "class", pe.Class.String(), "err", pe.Err}
	if pe.Class == ClassServer {
		log.Error("pipeline failed", attrs...)
		return
	}
	log.Info("pipeline rejected upload", attrs...)
}

func (o *Orchestrator) record(ctx context.Context, f UploadedFile, trace []State, err error, took time.Duration) {
	if o.recorder == nil {
		return
	}
	rec := &models.UploadRecord{
		FileName:   f.OriginalName,
		MediaType:  f.MediaType,
		Size:       f.Size,
		State:      string(trace[len(trace)-1]),
		DurationMS: took.Milliseconds(),
		ClientIP:   f.ClientIP,
		CreatedAt:  time.Now().UTC(),
	}
	if pe, ok := AsError(err); ok {
		rec.FailureStage = string(pe.Stage)
		rec.FailureKind = string(pe.Kind)
	}
	if rerr := o.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		o.logger.Warn("record upload", "file", f.OriginalName, "err", rerr)
	}
}
