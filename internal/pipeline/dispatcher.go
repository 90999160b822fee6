package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Config holds the dispatcher settings.
type Config struct {
	MaxFileBytes int64
	MaxAttempts  int
	RetryBackoff time.Duration
	FileTimeout  time.Duration
	Markers      Markers

	// Sleep overrides the retry wait. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		MaxFileBytes: DefaultMaxFileBytes,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
		FileTimeout:  DefaultFileTimeout,
		Markers:      DefaultMarkers(),
	}
}

// RetryPolicy builds the text extraction retry policy.
func (c Config) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.RetryBackoff > 0 {
		p.Backoff = c.RetryBackoff
	}
	if c.Sleep != nil {
		p.Sleep = c.Sleep
	}
	return p
}

// Dispatcher classifies a file, runs the document pipeline and folds every
// outcome into an IngestionResult.
type Dispatcher struct {
	classifier Classifier
	pipeline   *Pipeline
	timeout    time.Duration
}

// NewDispatcher creates a Dispatcher reading text from source.
func NewDispatcher(source extract.TextSource, cfg Config) *Dispatcher {
	return &Dispatcher{
		classifier: NewClassifier(cfg.Markers),
		pipeline:   NewDocumentPipeline(source, cfg),
		timeout:    cfg.FileTimeout,
	}
}

// Ingest processes one file. It never returns an error and never panics:
// every problem becomes a Failure.
func (d *Dispatcher) Ingest(ctx context.Context, filePath string) (result IngestionResult) {
	name := filepath.Base(filePath)
	state := &PipelineState{Kind: d.classifier.Classify(name)}
	state.Document.FilePath = filePath
	state.Document.FileName = name

	log := logger.ForFile(ctx, name).With().Str("kind", string(state.Kind)).Logger()
	ctx = logger.WithContext(ctx, log)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err := faults.New(faults.MalformedDocument, "Ingest", fmt.Errorf("extractor panic: %v", r))
			log.Error().Err(err).Msg("Recovered from panic while ingesting")
			result = failureFrom(state, err)
		}
	}()

	log.Debug().Msg("Ingesting document")

	if err := d.pipeline.Execute(ctx, state); err != nil {
		f := failureFrom(state, err)
		log.Warn().
			Str("error_kind", string(f.ErrorKind)).
			Int("attempts", f.Attempts).
			Str("reason", f.Message).
			Msg("Document ingestion failed")
		return f
	}

	log.Info().
		Str("resolved_kind", string(state.ResolvedKind)).
		Int("transactions", len(state.Extraction.Transactions)).
		Bool("income", state.Extraction.Income != nil).
		Int("attempts", state.Attempts).
		Msg("Document extracted")

	return Success{
		FileName:     name,
		Kind:         state.Kind,
		ResolvedKind: state.ResolvedKind,
		Extraction:   state.Extraction,
		Attempts:     state.Attempts,
	}
}
