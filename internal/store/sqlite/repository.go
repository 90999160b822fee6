package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the SQLite implementation of store.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open, migrated database.
func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// DB exposes the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database.
func (r *Repository) Close() error { return r.db.Close() }

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// ---- rules and overrides ----

// ListRules implements store.RuleRepository.
func (r *Repository) ListRules(ctx context.Context) ([]domain.CategoryRule, error) {
	return listRules(ctx, r.db)
}

func listRules(ctx context.Context, q queryer) ([]domain.CategoryRule, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, pattern, category, priority, enabled FROM category_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListRules: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryRule
	for rows.Next() {
		var rule domain.CategoryRule
		if err := rows.Scan(&rule.ID, &rule.Pattern, &rule.Category, &rule.Priority, &rule.Enabled); err != nil {
			return nil, fmt.Errorf("ListRules: scan: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListOverrides implements store.RuleRepository.
func (r *Repository) ListOverrides(ctx context.Context) ([]domain.CategoryOverride, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT content_hash, category, created_at FROM category_overrides ORDER BY content_hash`)
	if err != nil {
		return nil, fmt.Errorf("ListOverrides: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryOverride
	for rows.Next() {
		var o domain.CategoryOverride
		var created string
		if err := rows.Scan(&o.ContentHash, &o.Category, &created); err != nil {
			return nil, fmt.Errorf("ListOverrides: scan: %w", err)
		}
		if o.CreatedAt, err = parseStamp(created); err != nil {
			return nil, fmt.Errorf("ListOverrides: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateRule implements store.RuleRepository.
func (r *Repository) CreateRule(ctx context.Context, rule domain.CategoryRule) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO category_rules(pattern, category, priority, enabled) VALUES(?, ?, ?, ?)
	`, rule.Pattern, rule.Category, rule.Priority, rule.Enabled)
	if err != nil {
		return 0, fmt.Errorf("CreateRule: %w", err)
	}
	return res.LastInsertId()
}

// SetRuleEnabled implements store.RuleRepository.
func (r *Repository) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.execRule(ctx, "SetRuleEnabled", id, `UPDATE category_rules SET enabled = ? WHERE id = ?`, enabled, id)
}

// UpdateRuleCategory implements store.RuleRepository.
func (r *Repository) UpdateRuleCategory(ctx context.Context, id int64, category string) error {
	return r.execRule(ctx, "UpdateRuleCategory", id, `UPDATE category_rules SET category = ? WHERE id = ?`, category, id)
}

// DeleteRule implements store.RuleRepository.
func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	return r.execRule(ctx, "DeleteRule", id, `DELETE FROM category_rules WHERE id = ?`, id)
}

func (r *Repository) execRule(ctx context.Context, op string, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("%s: rule %d: %w", op, id, store.ErrNotFound)
	}
	return nil
}

// UpsertOverride implements store.RuleRepository.
func (r *Repository) UpsertOverride(ctx context.Context, o domain.CategoryOverride) error {
	if o.ContentHash == "" {
		return fmt.Errorf("UpsertOverride: content hash is required")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = ledgerNow()
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO category_overrides(content_hash, category, created_at) VALUES(?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET category = excluded.category, created_at = excluded.created_at
		`, o.ContentHash, o.Category, stamp(o.CreatedAt)); err != nil {
			return fmt.Errorf("UpsertOverride: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE content_hash = ?`, o.Category, o.ContentHash); err != nil {
			return fmt.Errorf("UpsertOverride: apply: %w", err)
		}
		return nil
	})
}

// DeleteOverride implements store.RuleRepository.
func (r *Repository) DeleteOverride(ctx context.Context, contentHash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM category_overrides WHERE content_hash = ?`, contentHash); err != nil {
		return fmt.Errorf("DeleteOverride: %w", err)
	}
	return nil
}

// ---- ledger ----

// CommitFile implements store.LedgerRepository.
func (r *Repository) CommitFile(ctx context.Context, commit store.FileCommit) (store.CommitResult, error) {
	var result store.CommitResult
	name := commit.Processed.FileName
	if name == "" {
		return result, fmt.Errorf("CommitFile: file name is required")
	}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if commit.Replace {
			res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE source_file_name = ?`, name)
			if err != nil {
				return fmt.Errorf("replace transactions: %w", err)
			}
			result.Replaced += rowsAffected(res)

			res, err = tx.ExecContext(ctx, `DELETE FROM income WHERE source_file_name = ?`, name)
			if err != nil {
				return fmt.Errorf("replace income: %w", err)
			}
			result.Replaced += rowsAffected(res)
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions(
		 id, date, description, amount, category, account_type, source_file_name, content_hash)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range commit.Transactions {
			if t.ID == "" {
				t.ID = uuid.New().String()
			}
			res, err := stmt.ExecContext(ctx, t.ID, t.Date.Format(domain.DateLayout), t.Description,
				money(t.Amount), t.Category, t.AccountType, t.SourceFileName, t.ContentHash)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			if rowsAffected(res) == 0 {
				result.Duplicates++
			} else {
				result.Inserted++
			}
		}

		if inc := commit.Income; inc != nil {
			id := inc.ID
			if id == "" {
				id = uuid.New().String()
			}
			res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO income(
			 id, pay_date, gross_pay, net_pay, tax, superannuation, other_deductions, source_file_name)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			`, id, inc.PayDate.Format(domain.DateLayout), money(inc.GrossPay), money(inc.NetPay),
				money(inc.Tax), money(inc.Superannuation), money(inc.OtherDeductions), inc.SourceFileName)
			if err != nil {
				return fmt.Errorf("insert income: %w", err)
			}
			if rowsAffected(res) == 0 {
				result.Duplicates++
			} else {
				result.Inserted++
			}
		}

		return markProcessed(ctx, tx, commit.Processed)
	})
	if err != nil {
		return store.CommitResult{}, fmt.Errorf("CommitFile: %w", err)
	}
	return result, nil
}

// ListTransactions implements store.LedgerRepository.
func (r *Repository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return listTransactions(ctx, r.db)
}

func listTransactions(ctx context.Context, q queryer) ([]domain.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT id, date, description, amount, category, account_type, source_file_name, content_hash
	FROM transactions ORDER BY date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var date, amount string
		if err := rows.Scan(&t.ID, &date, &t.Description, &amount, &t.Category, &t.AccountType, &t.SourceFileName, &t.ContentHash); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		if t.Date, err = parseDay(date); err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		if t.Amount, err = parseMoney(amount); err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListIncome implements store.LedgerRepository.
func (r *Repository) ListIncome(ctx context.Context) ([]domain.IncomeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, pay_date, gross_pay, net_pay, tax, superannuation, other_deductions, source_file_name
	FROM income ORDER BY pay_date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListIncome: %w", err)
	}
	defer rows.Close()

	var out []domain.IncomeRecord
	for rows.Next() {
		var inc domain.IncomeRecord
		var payDate string
		var amounts [5]string
		if err := rows.Scan(&inc.ID, &payDate, &amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &inc.SourceFileName); err != nil {
			return nil, fmt.Errorf("ListIncome: scan: %w", err)
		}
		if inc.PayDate, err = parseDay(payDate); err != nil {
			return nil, fmt.Errorf("ListIncome: %w", err)
		}
		targets := []*decimal.Decimal{&inc.GrossPay, &inc.NetPay, &inc.Tax, &inc.Superannuation, &inc.OtherDeductions}
		for i, target := range targets {
			if *target, err = parseMoney(amounts[i]); err != nil {
				return nil, fmt.Errorf("ListIncome: %w", err)
			}
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ApplyCategoryChanges implements store.LedgerRepository.
func (r *Repository) ApplyCategoryChanges(ctx context.Context, changes []domain.CategoryChange) error {
	if len(changes) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("ApplyCategoryChanges: prepare: %w", err)
		}
		defer stmt.Close()

		for _, c := range changes {
			res, err := stmt.ExecContext(ctx, c.NewCategory, c.TransactionID)
			if err != nil {
				return fmt.Errorf("ApplyCategoryChanges: %w", err)
			}
			if rowsAffected(res) == 0 {
				return fmt.Errorf("ApplyCategoryChanges: transaction %s: %w", c.TransactionID, store.ErrNotFound)
			}
		}
		return nil
	})
}

// ---- summaries ----

// ReplaceMonthlySummaries implements store.SummaryRepository.
func (r *Repository) ReplaceMonthlySummaries(ctx context.Context, summaries []domain.MonthlySummary) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return replaceSummaries(ctx, tx, summaries)
	})
}

func replaceSummaries(ctx context.Context, tx *sql.Tx, summaries []domain.MonthlySummary) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_summaries`); err != nil {
		return fmt.Errorf("ReplaceMonthlySummaries: delete: %w", err)
	}
	for _, s := range summaries {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO monthly_summaries(month, total_income, total_expenses, savings, transaction_count)
		VALUES(?, ?, ?, ?, ?)
		`, s.Month, money(s.TotalIncome), money(s.TotalExpenses), money(s.Savings), s.TransactionCount); err != nil {
			return fmt.Errorf("ReplaceMonthlySummaries: insert %s: %w", s.Month, err)
		}
	}
	return nil
}

// ListMonthlySummaries implements store.SummaryRepository.
func (r *Repository) ListMonthlySummaries(ctx context.Context) ([]domain.MonthlySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT month, total_income, total_expenses, savings, transaction_count
	FROM monthly_summaries ORDER BY month
	`)
	if err != nil {
		return nil, fmt.Errorf("ListMonthlySummaries: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlySummary
	for rows.Next() {
		var s domain.MonthlySummary
		var income, expenses, savings string
		if err := rows.Scan(&s.Month, &income, &expenses, &savings, &s.TransactionCount); err != nil {
			return nil, fmt.Errorf("ListMonthlySummaries: scan: %w", err)
		}
		if s.TotalIncome, err = parseMoney(income); err != nil {
			return nil, fmt.Errorf("ListMonthlySummaries: %w", err)
		}
		if s.TotalExpenses, err = parseMoney(expenses); err != nil {
			return nil, fmt.Errorf("ListMonthlySummaries: %w", err)
		}
		if s.Savings, err = parseMoney(savings); err != nil {
			return nil, fmt.Errorf("ListMonthlySummaries: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteMonthlySummaries implements store.SummaryRepository.
func (r *Repository) DeleteMonthlySummaries(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_summaries`)
	if err != nil {
		return 0, fmt.Errorf("DeleteMonthlySummaries: %w", err)
	}
	return rowsAffected(res), nil
}

// ---- processed files ----

// GetProcessedFile implements store.ProcessedFileRepository.
func (r *Repository) GetProcessedFile(ctx context.Context, fileName string) (*domain.ProcessedFileRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT file_name, file_type, processed_at FROM processed_files WHERE file_name = ?`, fileName)

	var rec domain.ProcessedFileRecord
	var fileType, processedAt string
	if err := row.Scan(&rec.FileName, &fileType, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetProcessedFile: %q: %w", fileName, store.ErrNotFound)
		}
		return nil, fmt.Errorf("GetProcessedFile: %w", err)
	}
	rec.FileType = domain.DocumentKind(fileType)

	var err error
	if rec.ProcessedAt, err = parseStamp(processedAt); err != nil {
		return nil, fmt.Errorf("GetProcessedFile: %w", err)
	}
	return &rec, nil
}

// MarkProcessed implements store.ProcessedFileRepository.
func (r *Repository) MarkProcessed(ctx context.Context, record domain.ProcessedFileRecord) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return markProcessed(ctx, tx, record)
	})
}

func markProcessed(ctx context.Context, tx *sql.Tx, record domain.ProcessedFileRecord) error {
	if record.FileName == "" {
		return fmt.Errorf("MarkProcessed: file name is required")
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = ledgerNow()
	}
	_, err := tx.ExecContext(ctx, `
	INSERT INTO processed_files(file_name, file_type, processed_at) VALUES(?, ?, ?)
	ON CONFLICT(file_name) DO UPDATE SET file_type = excluded.file_type, processed_at = excluded.processed_at
	`, record.FileName, string(record.FileType), stamp(record.ProcessedAt))
	if err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

// DeleteProcessedFile implements store.ProcessedFileRepository.
func (r *Repository) DeleteProcessedFile(ctx context.Context, fileName string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_files WHERE file_name = ?`, fileName)
	if err != nil {
		return false, fmt.Errorf("DeleteProcessedFile: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// ClearProcessedFiles implements store.ProcessedFileRepository.
func (r *Repository) ClearProcessedFiles(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM processed_files`)
	if err != nil {
		return 0, fmt.Errorf("ClearProcessedFiles: %w", err)
	}
	return rowsAffected(res), nil
}

// ListProcessedFiles implements store.ProcessedFileRepository.
func (r *Repository) ListProcessedFiles(ctx context.Context) ([]domain.ProcessedFileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_name, file_type, processed_at FROM processed_files ORDER BY file_name`)
	if err != nil {
		return nil, fmt.Errorf("ListProcessedFiles: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessedFileRecord
	for rows.Next() {
		var rec domain.ProcessedFileRecord
		var fileType, processedAt string
		if err := rows.Scan(&rec.FileName, &fileType, &processedAt); err != nil {
			return nil, fmt.Errorf("ListProcessedFiles: scan: %w", err)
		}
		rec.FileType = domain.DocumentKind(fileType)
		if rec.ProcessedAt, err = parseStamp(processedAt); err != nil {
			return nil, fmt.Errorf("ListProcessedFiles: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- snapshot ----

// Snapshot implements store.SnapshotRepository.
func (r *Repository) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	txs, err := r.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	rules, err := r.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	overrides, err := r.ListOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	summaries, err := r.ListMonthlySummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("Snapshot: %w", err)
	}
	return &store.Snapshot{Transactions: txs, Rules: rules, Overrides: overrides, Summaries: summaries}, nil
}

// RestoreSnapshot implements store.SnapshotRepository.
func (r *Repository) RestoreSnapshot(ctx context.Context, snap *store.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("RestoreSnapshot: snapshot is nil")
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "category_rules", "category_overrides"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("RestoreSnapshot: clear %s: %w", table, err)
			}
		}

		for _, t := range snap.Transactions {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions(
			 id, date, description, amount, category, account_type, source_file_name, content_hash)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			`, t.ID, t.Date.Format(domain.DateLayout), t.Description, money(t.Amount), t.Category,
				t.AccountType, t.SourceFileName, t.ContentHash); err != nil {
				return fmt.Errorf("RestoreSnapshot: transaction %s: %w", t.ID, err)
			}
		}

		for _, rule := range snap.Rules {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO category_rules(id, pattern, category, priority, enabled) VALUES(?, ?, ?, ?, ?)
			`, rule.ID, rule.Pattern, rule.Category, rule.Priority, rule.Enabled); err != nil {
				return fmt.Errorf("RestoreSnapshot: rule %d: %w", rule.ID, err)
			}
		}

		for _, o := range snap.Overrides {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO category_overrides(content_hash, category, created_at) VALUES(?, ?, ?)
			`, o.ContentHash, o.Category, stamp(o.CreatedAt)); err != nil {
				return fmt.Errorf("RestoreSnapshot: override %s: %w", o.ContentHash, err)
			}
		}

		return replaceSummaries(ctx, tx, snap.Summaries)
	})
}

// Ensure Repository implements the store interface.
var _ store.Repository = (*Repository)(nil)
