package pipeline

import (
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/faults"
)

// IngestionResult is either a Success or a Failure.
type IngestionResult interface {
	ingestionResult()
}

// Success carries the draft records of one document.
type Success struct {
	FileName string
	// Kind is the classified kind; ResolvedKind is the extractor actually used.
	Kind         domain.DocumentKind
	ResolvedKind domain.DocumentKind
	Extraction   extract.Extraction
	Attempts     int
}

// Failure describes why a document could not be ingested.
type Failure struct {
	FileName  string
	Kind      domain.DocumentKind
	ErrorKind faults.Kind
	Message   string
	Attempts  int
}

func (Success) ingestionResult() {}
func (Failure) ingestionResult() {}

func failureFrom(state *PipelineState, err error) Failure {
	kind := faults.KindOf(err)
	if kind == faults.Unclassified {
		kind = faults.MalformedDocument
	}
	return Failure{
		FileName:  state.Document.FileName,
		Kind:      state.Kind,
		ErrorKind: kind,
		Message:   err.Error(),
		Attempts:  state.Attempts,
	}
}
