package pipeline

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/faults"
)

// recordSleeps returns a Sleep func that records waits instead of sleeping.
func recordSleeps(waits *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	busy := errors.New("open statement.pdf: resource busy")

	tests := []struct {
		name         string
		failures     []error
		wantAttempts int
		wantKind     faults.Kind
		wantWaits    []time.Duration
	}{
		{
			name:         "succeeds first time",
			wantAttempts: 1,
		},
		{
			name:         "transient twice then success",
			failures:     []error{busy, syscall.EMFILE},
			wantAttempts: 3,
			wantWaits:    []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:         "transient on every attempt",
			failures:     []error{busy, busy, busy},
			wantAttempts: 3,
			wantKind:     faults.TransientIO,
			wantWaits:    []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:         "non transient fails at once",
			failures:     []error{errors.New("malformed xref table")},
			wantAttempts: 1,
			wantKind:     faults.Unclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration
			p := RetryPolicy{MaxAttempts: 3, Backoff: time.Second, Sleep: recordSleeps(&waits)}

			calls := 0
			attempts, err := p.Do(context.Background(), "test", func(ctx context.Context, attempt int) error {
				calls++
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				if attempt <= len(tt.failures) {
					return tt.failures[attempt-1]
				}
				return nil
			})

			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if got := faults.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(err) = %q, want %q (err=%v)", got, tt.wantKind, err)
			}
			if len(waits) != len(tt.wantWaits) {
				t.Fatalf("waits = %v, want %v", waits, tt.wantWaits)
			}
			var total time.Duration
			for i := range waits {
				if waits[i] != tt.wantWaits[i] {
					t.Errorf("wait[%d] = %v, want %v", i, waits[i], tt.wantWaits[i])
				}
				total += waits[i]
			}
			if total > 3*time.Second {
				t.Errorf("cumulative backoff %v exceeds 3s", total)
			}
		})
	}
}

func TestRetryPolicy_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Hour}
	attempts, err := p.Do(ctx, "test", func(ctx context.Context, attempt int) error {
		return syscall.EAGAIN
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !faults.Is(err, faults.TransientIO) {
		t.Errorf("Expected TransientIO, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}
