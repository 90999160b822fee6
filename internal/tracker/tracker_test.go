package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
)

// failingRepo returns err from every lookup.
type failingRepo struct {
	*memory.Store
	err error
}

func (f failingRepo) GetProcessedFile(ctx context.Context, fileName string) (*domain.ProcessedFileRecord, error) {
	return nil, f.err
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.NewStore())
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	processed, err := tr.IsProcessed(ctx, "amex_jan.pdf")
	if err != nil || processed {
		t.Fatalf("IsProcessed() = %v, %v; want false, nil", processed, err)
	}

	if err := tr.MarkProcessed(ctx, "amex_jan.pdf", domain.KindCardStatementA); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := tr.MarkProcessed(ctx, "payslip_jan.pdf", domain.KindPayslip); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	processed, err = tr.IsProcessed(ctx, "amex_jan.pdf")
	if err != nil || !processed {
		t.Fatalf("IsProcessed() = %v, %v; want true, nil", processed, err)
	}

	records, err := tr.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].FileName != "amex_jan.pdf" || !records[0].ProcessedAt.Equal(fixed) {
		t.Errorf("List() = %+v", records)
	}

	removed, err := tr.Forget(ctx, "amex_jan.pdf")
	if err != nil || !removed {
		t.Errorf("Forget() = %v, %v; want true, nil", removed, err)
	}

	n, err := tr.ClearAll(ctx)
	if err != nil || n != 1 {
		t.Errorf("ClearAll() = %d, %v; want 1, nil", n, err)
	}
}

func TestTracker_IsProcessedError(t *testing.T) {
	tr := New(failingRepo{Store: memory.NewStore(), err: errors.New("disk I/O error")})

	if _, err := tr.IsProcessed(context.Background(), "a.pdf"); err == nil {
		t.Error("Expected error, got nil")
	}

	tr = New(failingRepo{Store: memory.NewStore(), err: store.ErrNotFound})
	if processed, err := tr.IsProcessed(context.Background(), "a.pdf"); err != nil || processed {
		t.Errorf("IsProcessed() = %v, %v; want false, nil", processed, err)
	}
}
