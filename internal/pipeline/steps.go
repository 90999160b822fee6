package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Document     domain.RawDocument
	Kind         domain.DocumentKind
	ResolvedKind domain.DocumentKind
	Attempts     int
	Extraction   extract.Extraction
}

// Step 1: ValidateFileStep rejects missing, empty and oversized files before
// any extraction is attempted.
type ValidateFileStep struct {
	MaxBytes int64
}

func (s *ValidateFileStep) Execute(ctx context.Context, state *PipelineState) error {
	info, err := os.Stat(state.Document.FilePath)
	if err != nil {
		if faults.IsTransient(err) {
			return faults.New(faults.TransientIO, "ValidateFile", err)
		}
		return faults.New(faults.OversizedOrEmptyFile, "ValidateFile", err)
	}
	if info.IsDir() {
		return faults.Newf(faults.OversizedOrEmptyFile, "ValidateFile", "%s is a directory", state.Document.FileName)
	}

	size := info.Size()
	state.Document.ByteSize = size

	if size == 0 {
		return faults.Newf(faults.OversizedOrEmptyFile, "ValidateFile", "%s is empty", state.Document.FileName)
	}
	if s.MaxBytes > 0 && size > s.MaxBytes {
		return faults.Newf(faults.OversizedOrEmptyFile, "ValidateFile",
			"%s is %d bytes, limit is %d", state.Document.FileName, size, s.MaxBytes)
	}
	return nil
}

// Step 2: ExtractTextStep reads the document text, retrying transient failures.
type ExtractTextStep struct {
	Source extract.TextSource
	Retry  RetryPolicy
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	var text string
	attempts, err := s.Retry.Do(ctx, "ExtractText", func(ctx context.Context, attempt int) error {
		log := logger.FromContext(ctx)
		log.Debug().Int("attempt", attempt).Msg("Extracting text")
		t, err := extractWithin(ctx, s.Source, state.Document.FilePath)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	state.Attempts = attempts
	if err != nil {
		if faults.KindOf(err) == faults.Unclassified {
			return faults.New(faults.MalformedDocument, "ExtractText", err)
		}
		return err
	}

	if strings.TrimSpace(text) == "" {
		return faults.Newf(faults.MalformedDocument, "ExtractText", "%s yielded no text", state.Document.FileName)
	}
	state.Document.Text = text
	return nil
}

type textResult struct {
	text string
	err  error
}

// extractWithin returns as soon as ctx is done, even when the source ignores
// ctx. The abandoned call finishes in the background.
func extractWithin(ctx context.Context, source extract.TextSource, path string) (string, error) {
	done := make(chan textResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- textResult{err: faults.New(faults.MalformedDocument, "ExtractText", fmt.Errorf("extractor panic: %v", r))}
			}
		}()
		text, err := source.ExtractText(ctx, path)
		done <- textResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", faults.New(faults.TransientIO, "ExtractText", fmt.Errorf("file timeout: %w", ctx.Err()))
	}
}

// Step 3: ExtractRecordsStep runs the extractor for the classified kind. Unknown
// documents go through every card extractor and keep the best result.
type ExtractRecordsStep struct{}

func (s *ExtractRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	var result extract.Extraction
	if state.Kind == domain.KindUnknown {
		result = extract.Best(state.Document.Text, extract.FallbackOrder()...)
		log.Debug().
			Str("resolved_kind", string(result.Kind)).
			Int("score", result.Score()).
			Msg("Resolved unknown document with fallback extractors")
	} else {
		ex, ok := extract.ForKind(state.Kind)
		if !ok {
			return faults.Newf(faults.MalformedDocument, "ExtractRecords", "no extractor for kind %s", state.Kind)
		}
		result = ex.Extract(state.Document.Text)
	}

	if result.SkippedLines > 0 {
		log.Debug().Int("skipped_lines", result.SkippedLines).Msg("Skipped unreadable lines")
	}
	if result.Empty() {
		return faults.Newf(faults.MalformedDocument, "ExtractRecords",
			"no recognizable line items in %s", state.Document.FileName)
	}

	state.Extraction = result
	state.ResolvedKind = result.Kind
	return nil
}
