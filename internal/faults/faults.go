// Package faults defines the error taxonomy shared by ingestion, categorization
// and the taxonomy migration tool.
package faults

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Kind classifies a failure.
type Kind string

const (
	// TransientIO is a retryable I/O failure (busy, locked, too many handles).
	TransientIO Kind = "TRANSIENT_IO"
	// MalformedDocument means no recognizable line items were found.
	MalformedDocument Kind = "MALFORMED_DOCUMENT"
	// OversizedOrEmptyFile is raised before extraction is attempted.
	OversizedOrEmptyFile Kind = "OVERSIZED_OR_EMPTY_FILE"
	// CategorizationFault is logged and answered with the fallback category.
	CategorizationFault Kind = "CATEGORIZATION_FAULT"
	// MigrationFault aborts a migration run and triggers rollback.
	MigrationFault Kind = "MIGRATION_FAULT"
	// Unclassified covers everything else.
	Unclassified Kind = "UNCLASSIFIED"
)

// Error is a classified error. Op names the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unclassified
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var transientMessages = []string{
	"resource busy",
	"device or resource busy",
	"too many open files",
	"resource temporarily unavailable",
	"database is locked",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, TransientIO) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.EBUSY, syscall.EMFILE, syscall.ENFILE, syscall.EAGAIN} {
		if errors.Is(err, errno) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Truncate shortens an error message for audit storage.
func Truncate(msg string, maxLen int) string {
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
