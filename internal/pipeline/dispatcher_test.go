package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
)

// mockTextSource is a hand-written extract.TextSource.
type mockTextSource struct {
	ExtractTextFunc func(ctx context.Context, path string) (string, error)
	calls           int
}

func (m *mockTextSource) ExtractText(ctx context.Context, path string) (string, error) {
	m.calls++
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, path)
	}
	return "", nil
}

func textOf(text string) *mockTextSource {
	return &mockTextSource{ExtractTextFunc: func(ctx context.Context, path string) (string, error) {
		return text, nil
	}}
}

const amexText = `AMEX STATEMENT
03/03/2024 SHELL FUEL 45.00
09/03/2024 WOOLWORTHS 120.00
`

const westpacText = `Statement period 01 Mar 2024 to 31 Mar 2024
02 Mar COLES 0412 $56.10
05 Mar NETFLIX.COM $16.99
`

const payslipText = `Pay date: 15/03/2024
Gross pay $5,000.00
PAYG tax $900.00
Net pay $3,800.00
`

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return cfg
}

func TestDispatcher_Ingest(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name         string
		fileName     string
		size         int
		text         string
		maxBytes     int64
		wantKind     domain.DocumentKind
		wantResolved domain.DocumentKind
		wantErrKind  faults.Kind
		wantTxs      int
		wantIncome   bool
	}{
		{
			name:         "issuer A statement",
			fileName:     "amex_march.pdf",
			size:         10,
			text:         amexText,
			wantKind:     domain.KindCardStatementA,
			wantResolved: domain.KindCardStatementA,
			wantTxs:      2,
		},
		{
			name:         "payslip",
			fileName:     "payslip_march.pdf",
			size:         10,
			text:         payslipText,
			wantKind:     domain.KindPayslip,
			wantResolved: domain.KindPayslip,
			wantIncome:   true,
		},
		{
			name:         "unknown falls back to the better card extractor",
			fileName:     "statement.pdf",
			size:         10,
			text:         westpacText,
			wantKind:     domain.KindUnknown,
			wantResolved: domain.KindCardStatementB,
			wantTxs:      2,
		},
		{
			name:        "empty file",
			fileName:    "amex_empty.pdf",
			size:        0,
			text:        amexText,
			wantKind:    domain.KindCardStatementA,
			wantErrKind: faults.OversizedOrEmptyFile,
		},
		{
			name:        "oversized file",
			fileName:    "amex_big.pdf",
			size:        2048,
			maxBytes:    1024,
			text:        amexText,
			wantKind:    domain.KindCardStatementA,
			wantErrKind: faults.OversizedOrEmptyFile,
		},
		{
			name:        "blank text",
			fileName:    "amex_scan.pdf",
			size:        10,
			text:        "  \n\f ",
			wantKind:    domain.KindCardStatementA,
			wantErrKind: faults.MalformedDocument,
		},
		{
			name:        "no recognizable items",
			fileName:    "westpac_letter.pdf",
			size:        10,
			text:        "Dear customer, your card is on its way.",
			wantKind:    domain.KindCardStatementB,
			wantErrKind: faults.MalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.fileName, tt.size)
			cfg := testConfig()
			if tt.maxBytes > 0 {
				cfg.MaxFileBytes = tt.maxBytes
			}
			source := textOf(tt.text)
			d := NewDispatcher(source, cfg)

			switch res := d.Ingest(context.Background(), path).(type) {
			case Success:
				if tt.wantErrKind != "" {
					t.Fatalf("Expected failure %s, got success", tt.wantErrKind)
				}
				if res.Kind != tt.wantKind || res.ResolvedKind != tt.wantResolved {
					t.Errorf("Kind = %s/%s, want %s/%s", res.Kind, res.ResolvedKind, tt.wantKind, tt.wantResolved)
				}
				if len(res.Extraction.Transactions) != tt.wantTxs {
					t.Errorf("transactions = %d, want %d", len(res.Extraction.Transactions), tt.wantTxs)
				}
				if (res.Extraction.Income != nil) != tt.wantIncome {
					t.Errorf("income = %v, want %v", res.Extraction.Income != nil, tt.wantIncome)
				}
			case Failure:
				if tt.wantErrKind == "" {
					t.Fatalf("Unexpected failure: %+v", res)
				}
				if res.ErrorKind != tt.wantErrKind || res.Kind != tt.wantKind {
					t.Errorf("Failure = %+v, want %s/%s", res, tt.wantErrKind, tt.wantKind)
				}
				if tt.wantErrKind == faults.OversizedOrEmptyFile && source.calls != 0 {
					t.Errorf("text source called %d times for rejected file", source.calls)
				}
			}
		})
	}
}

func TestDispatcher_RetryBound(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "amex_busy.pdf", 10)

	tests := []struct {
		name         string
		failFirst    int
		wantSuccess  bool
		wantAttempts int
	}{
		{"transient on attempts 1 and 2", 2, true, 3},
		{"transient on all attempts", 3, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mockTextSource{}
			source.ExtractTextFunc = func(ctx context.Context, path string) (string, error) {
				if source.calls <= tt.failFirst {
					return "", errors.New("read amex_busy.pdf: resource temporarily unavailable")
				}
				return amexText, nil
			}

			res := NewDispatcher(source, testConfig()).Ingest(context.Background(), path)

			switch r := res.(type) {
			case Success:
				if !tt.wantSuccess {
					t.Fatalf("Expected failure, got success")
				}
				if r.Attempts != tt.wantAttempts {
					t.Errorf("Attempts = %d, want %d", r.Attempts, tt.wantAttempts)
				}
			case Failure:
				if tt.wantSuccess {
					t.Fatalf("Expected success, got %+v", r)
				}
				if r.ErrorKind != faults.TransientIO || r.Attempts != tt.wantAttempts {
					t.Errorf("Failure = %+v, want TransientIO after %d attempts", r, tt.wantAttempts)
				}
			}
		})
	}
}

func TestDispatcher_NonTransientFailsImmediately(t *testing.T) {
	path := writeFile(t, t.TempDir(), "amex_bad.pdf", 10)
	source := &mockTextSource{ExtractTextFunc: func(ctx context.Context, path string) (string, error) {
		return "", errors.New("malformed PDF: missing xref")
	}}

	res, ok := NewDispatcher(source, testConfig()).Ingest(context.Background(), path).(Failure)
	if !ok {
		t.Fatal("Expected failure")
	}
	if res.ErrorKind != faults.MalformedDocument || source.calls != 1 {
		t.Errorf("Failure = %+v after %d calls", res, source.calls)
	}
}

func TestDispatcher_MissingFile(t *testing.T) {
	res, ok := NewDispatcher(textOf(amexText), testConfig()).Ingest(context.Background(), "/does/not/exist/amex.pdf").(Failure)
	if !ok {
		t.Fatal("Expected failure")
	}
	if res.FileName != "amex.pdf" || res.ErrorKind != faults.OversizedOrEmptyFile {
		t.Errorf("Failure = %+v", res)
	}
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "amex_panic.pdf", 10)
	source := &mockTextSource{ExtractTextFunc: func(ctx context.Context, path string) (string, error) {
		panic("index out of range")
	}}

	res, ok := NewDispatcher(source, testConfig()).Ingest(context.Background(), path).(Failure)
	if !ok {
		t.Fatal("Expected failure")
	}
	if res.ErrorKind != faults.MalformedDocument {
		t.Errorf("ErrorKind = %s, want %s", res.ErrorKind, faults.MalformedDocument)
	}
}

func TestDispatcher_FileTimeout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "amex_slow.pdf", 10)
	release := make(chan struct{})
	defer close(release)
	source := &mockTextSource{ExtractTextFunc: func(ctx context.Context, path string) (string, error) {
		// Never looks at ctx.
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		return amexText, nil
	}}

	cfg := testConfig()
	cfg.FileTimeout = 50 * time.Millisecond

	start := time.Now()
	res, ok := NewDispatcher(source, cfg).Ingest(context.Background(), path).(Failure)
	elapsed := time.Since(start)

	if !ok {
		t.Fatal("Expected failure")
	}
	if res.ErrorKind != faults.TransientIO {
		t.Errorf("ErrorKind = %s, want %s", res.ErrorKind, faults.TransientIO)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if elapsed > time.Second {
		t.Errorf("Ingest took %v with a 50ms file timeout", elapsed)
	}
}
