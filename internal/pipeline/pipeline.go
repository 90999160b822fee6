package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/extract"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewDocumentPipeline creates the standard 3-step pipeline for one document:
// validate the file, extract its text, extract its records.
func NewDocumentPipeline(source extract.TextSource, cfg Config) *Pipeline {
	return NewPipeline(
		&ValidateFileStep{MaxBytes: cfg.MaxFileBytes},
		&ExtractTextStep{Source: source, Retry: cfg.RetryPolicy()},
		&ExtractRecordsStep{},
	)
}
