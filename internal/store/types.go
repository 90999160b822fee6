package store

import (
	"context"
	"errors"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// FileCommit is everything one ingested file writes to the ledger. It is
// applied atomically together with the processed-file mark.
type FileCommit struct {
	Transactions []domain.Transaction
	Income       *domain.IncomeRecord
	Processed    domain.ProcessedFileRecord

	// Replace drops the rows previously written for Processed.FileName
	// before inserting.
	Replace bool
}

// CommitResult reports what a FileCommit changed.
type CommitResult struct {
	Inserted   int
	Duplicates int
	Replaced   int
}

// Snapshot is the categorized state the taxonomy migration backs up and
// restores.
type Snapshot struct {
	Transactions []domain.Transaction      `json:"transactions"`
	Rules        []domain.CategoryRule     `json:"rules"`
	Overrides    []domain.CategoryOverride `json:"overrides"`
	Summaries    []domain.MonthlySummary   `json:"summaries"`
}

// RuleRepository stores category rules and overrides.
type RuleRepository interface {
	// ListRules returns every rule, enabled or not.
	ListRules(ctx context.Context) ([]domain.CategoryRule, error)

	// ListOverrides returns every manual override.
	ListOverrides(ctx context.Context) ([]domain.CategoryOverride, error)

	// CreateRule stores a rule and returns its id.
	CreateRule(ctx context.Context, rule domain.CategoryRule) (int64, error)

	// SetRuleEnabled toggles a rule. Returns ErrNotFound for unknown ids.
	SetRuleEnabled(ctx context.Context, id int64, enabled bool) error

	// UpdateRuleCategory rewrites the target category of a rule.
	UpdateRuleCategory(ctx context.Context, id int64, category string) error

	// DeleteRule removes a rule. Returns ErrNotFound for unknown ids.
	DeleteRule(ctx context.Context, id int64) error

	// UpsertOverride stores an override and applies it to any stored
	// transaction with the same content hash.
	UpsertOverride(ctx context.Context, override domain.CategoryOverride) error

	// DeleteOverride removes the override for contentHash, if any.
	DeleteOverride(ctx context.Context, contentHash string) error
}

// LedgerRepository stores transactions and income.
type LedgerRepository interface {
	// CommitFile writes one file's records and marks it processed.
	CommitFile(ctx context.Context, commit FileCommit) (CommitResult, error)

	// ListTransactions returns all transactions ordered by date, id.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	// ListIncome returns all income records ordered by pay date.
	ListIncome(ctx context.Context) ([]domain.IncomeRecord, error)

	// ApplyCategoryChanges rewrites transaction categories in one transaction.
	ApplyCategoryChanges(ctx context.Context, changes []domain.CategoryChange) error
}

// SummaryRepository stores derived monthly summaries.
type SummaryRepository interface {
	// ReplaceMonthlySummaries drops every summary and inserts summaries.
	ReplaceMonthlySummaries(ctx context.Context, summaries []domain.MonthlySummary) error

	// ListMonthlySummaries returns summaries ordered by month.
	ListMonthlySummaries(ctx context.Context) ([]domain.MonthlySummary, error)

	// DeleteMonthlySummaries drops every summary and returns how many existed.
	DeleteMonthlySummaries(ctx context.Context) (int, error)
}

// ProcessedFileRepository stores the ingestion tracker.
type ProcessedFileRepository interface {
	// GetProcessedFile returns ErrNotFound when fileName was never processed.
	GetProcessedFile(ctx context.Context, fileName string) (*domain.ProcessedFileRecord, error)

	// MarkProcessed inserts or refreshes a record.
	MarkProcessed(ctx context.Context, record domain.ProcessedFileRecord) error

	// DeleteProcessedFile reports whether a record was removed.
	DeleteProcessedFile(ctx context.Context, fileName string) (bool, error)

	// ClearProcessedFiles removes every record and returns how many existed.
	ClearProcessedFiles(ctx context.Context) (int, error)

	// ListProcessedFiles returns records ordered by file name.
	ListProcessedFiles(ctx context.Context) ([]domain.ProcessedFileRecord, error)
}

// SnapshotRepository captures and restores categorized state.
type SnapshotRepository interface {
	Snapshot(ctx context.Context) (*Snapshot, error)

	// RestoreSnapshot replaces transactions, rules, overrides and summaries
	// with the snapshot contents.
	RestoreSnapshot(ctx context.Context, snap *Snapshot) error
}

// Repository combines all storage operations.
type Repository interface {
	RuleRepository
	LedgerRepository
	SummaryRepository
	ProcessedFileRepository
	SnapshotRepository
}
