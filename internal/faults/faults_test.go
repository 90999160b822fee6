package faults

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain error", base, Unclassified},
		{"direct", New(MalformedDocument, "extract", base), MalformedDocument},
		{"wrapped", fmt.Errorf("pipeline step 3 failed: %w", New(TransientIO, "read", base)), TransientIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ebusy", &fs.PathError{Op: "open", Path: "a.pdf", Err: syscall.EBUSY}, true},
		{"emfile", fmt.Errorf("open: %w", syscall.EMFILE), true},
		{"eagain", syscall.EAGAIN, true},
		{"message", errors.New("Resource temporarily unavailable"), true},
		{"classified", New(TransientIO, "read", errors.New("x")), true},
		{"not exist", &fs.PathError{Op: "open", Path: "a.pdf", Err: syscall.ENOENT}, false},
		{"malformed", New(MalformedDocument, "extract", errors.New("no items")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("disk gone")
	err := New(MigrationFault, "Run", base)

	if !errors.Is(err, base) {
		t.Error("Expected errors.Is to find the wrapped error")
	}
	if !strings.Contains(err.Error(), "MIGRATION_FAULT") {
		t.Errorf("Expected kind in message, got %q", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate(strings.Repeat("x", 2500), 2000); len(got) != 2000 {
		t.Errorf("Truncate length = %d, want 2000", len(got))
	}
	if got := Truncate("short", 2000); got != "short" {
		t.Errorf("Truncate changed a short message: %q", got)
	}
}
