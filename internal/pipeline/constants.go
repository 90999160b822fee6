package pipeline

import "time"

// Default values for document processing.
// These can be overridden via configuration (ingest.* keys).
const (
	// DefaultMaxFileBytes is the largest file accepted for extraction (50 MB).
	DefaultMaxFileBytes int64 = 50 * 1024 * 1024

	// DefaultMaxAttempts bounds text extraction attempts per file.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is multiplied by the attempt index between retries.
	DefaultRetryBackoff = 1000 * time.Millisecond

	// DefaultFileTimeout is the total time budget of one file.
	DefaultFileTimeout = 30 * time.Second

	// DefaultCategorizeWorkers bounds concurrent categorization inside one document.
	DefaultCategorizeWorkers = 8
)

// Default file name markers, checked case-insensitively in this order.
const (
	DefaultMarkerCardA   = "amex"
	DefaultMarkerCardB   = "westpac"
	DefaultMarkerPayslip = "payslip"
)
