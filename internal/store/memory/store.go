package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of store.Repository.
// It is safe for concurrent use. Data is lost when the process exits, so it
// serves tests and dry runs.
type Store struct {
	mu        sync.RWMutex
	txs       []domain.Transaction
	hashes    map[string]bool
	income    []domain.IncomeRecord
	rules     []domain.CategoryRule
	nextRule  int64
	overrides map[string]domain.CategoryOverride
	summaries []domain.MonthlySummary
	processed map[string]domain.ProcessedFileRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		hashes:    make(map[string]bool),
		overrides: make(map[string]domain.CategoryOverride),
		processed: make(map[string]domain.ProcessedFileRecord),
	}
}

// ListRules implements store.RuleRepository.
func (s *Store) ListRules(ctx context.Context) ([]domain.CategoryRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CategoryRule(nil), s.rules...), nil
}

// ListOverrides implements store.RuleRepository.
func (s *Store) ListOverrides(ctx context.Context) ([]domain.CategoryOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CategoryOverride, 0, len(s.overrides))
	for _, o := range s.overrides {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContentHash < result[j].ContentHash })
	return result, nil
}

// CreateRule implements store.RuleRepository.
func (s *Store) CreateRule(ctx context.Context, rule domain.CategoryRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRule++
	rule.ID = s.nextRule
	s.rules = append(s.rules, rule)
	return rule.ID, nil
}

// SetRuleEnabled implements store.RuleRepository.
func (s *Store) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.updateRule(id, func(r *domain.CategoryRule) { r.Enabled = enabled })
}

// UpdateRuleCategory implements store.RuleRepository.
func (s *Store) UpdateRuleCategory(ctx context.Context, id int64, category string) error {
	return s.updateRule(id, func(r *domain.CategoryRule) { r.Category = category })
}

func (s *Store) updateRule(id int64, fn func(r *domain.CategoryRule)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].ID == id {
			fn(&s.rules[i])
			return nil
		}
	}
	return fmt.Errorf("rule %d: %w", id, store.ErrNotFound)
}

// DeleteRule implements store.RuleRepository.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %d: %w", id, store.ErrNotFound)
}

// UpsertOverride implements store.RuleRepository.
func (s *Store) UpsertOverride(ctx context.Context, override domain.CategoryOverride) error {
	if override.ContentHash == "" {
		return fmt.Errorf("content hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides[override.ContentHash] = override
	for i := range s.txs {
		if s.txs[i].ContentHash == override.ContentHash {
			s.txs[i].Category = override.Category
		}
	}
	return nil
}

// DeleteOverride implements store.RuleRepository.
func (s *Store) DeleteOverride(ctx context.Context, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.overrides, contentHash)
	return nil
}

// CommitFile implements store.LedgerRepository.
func (s *Store) CommitFile(ctx context.Context, commit store.FileCommit) (store.CommitResult, error) {
	if commit.Processed.FileName == "" {
		return store.CommitResult{}, fmt.Errorf("file name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result store.CommitResult
	name := commit.Processed.FileName

	if commit.Replace {
		kept := s.txs[:0]
		for _, tx := range s.txs {
			if tx.SourceFileName == name {
				delete(s.hashes, tx.ContentHash)
				result.Replaced++
				continue
			}
			kept = append(kept, tx)
		}
		s.txs = kept

		keptIncome := s.income[:0]
		for _, inc := range s.income {
			if inc.SourceFileName == name {
				result.Replaced++
				continue
			}
			keptIncome = append(keptIncome, inc)
		}
		s.income = keptIncome
	}

	for _, tx := range commit.Transactions {
		if s.hashes[tx.ContentHash] {
			result.Duplicates++
			continue
		}
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		s.hashes[tx.ContentHash] = true
		s.txs = append(s.txs, tx)
		result.Inserted++
	}

	if commit.Income != nil {
		inc := *commit.Income
		if s.hasIncome(inc) {
			result.Duplicates++
		} else {
			if inc.ID == "" {
				inc.ID = uuid.New().String()
			}
			s.income = append(s.income, inc)
			result.Inserted++
		}
	}

	s.processed[name] = commit.Processed
	return result, nil
}

func (s *Store) hasIncome(inc domain.IncomeRecord) bool {
	for _, existing := range s.income {
		if existing.PayDate.Equal(inc.PayDate) &&
			existing.GrossPay.Equal(inc.GrossPay) &&
			existing.NetPay.Equal(inc.NetPay) {
			return true
		}
	}
	return false
}

// ListTransactions implements store.LedgerRepository.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.Transaction(nil), s.txs...)
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListIncome implements store.LedgerRepository.
func (s *Store) ListIncome(ctx context.Context) ([]domain.IncomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.IncomeRecord(nil), s.income...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].PayDate.Before(result[j].PayDate) })
	return result, nil
}

// ApplyCategoryChanges implements store.LedgerRepository.
func (s *Store) ApplyCategoryChanges(ctx context.Context, changes []domain.CategoryChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.txs))
	for i, tx := range s.txs {
		index[tx.ID] = i
	}
	for _, c := range changes {
		if _, ok := index[c.TransactionID]; !ok {
			return fmt.Errorf("transaction %s: %w", c.TransactionID, store.ErrNotFound)
		}
	}
	for _, c := range changes {
		s.txs[index[c.TransactionID]].Category = c.NewCategory
	}
	return nil
}

// ReplaceMonthlySummaries implements store.SummaryRepository.
func (s *Store) ReplaceMonthlySummaries(ctx context.Context, summaries []domain.MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append([]domain.MonthlySummary(nil), summaries...)
	sort.Slice(s.summaries, func(i, j int) bool { return s.summaries[i].Month < s.summaries[j].Month })
	return nil
}

// ListMonthlySummaries implements store.SummaryRepository.
func (s *Store) ListMonthlySummaries(ctx context.Context) ([]domain.MonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MonthlySummary(nil), s.summaries...), nil
}

// DeleteMonthlySummaries implements store.SummaryRepository.
func (s *Store) DeleteMonthlySummaries(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.summaries)
	s.summaries = nil
	return n, nil
}

// GetProcessedFile implements store.ProcessedFileRepository.
func (s *Store) GetProcessedFile(ctx context.Context, fileName string) (*domain.ProcessedFileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.processed[fileName]
	if !ok {
		return nil, fmt.Errorf("processed file %q: %w", fileName, store.ErrNotFound)
	}
	return &rec, nil
}

// MarkProcessed implements store.ProcessedFileRepository.
func (s *Store) MarkProcessed(ctx context.Context, record domain.ProcessedFileRecord) error {
	if record.FileName == "" {
		return fmt.Errorf("file name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[record.FileName] = record
	return nil
}

// DeleteProcessedFile implements store.ProcessedFileRepository.
func (s *Store) DeleteProcessedFile(ctx context.Context, fileName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.processed[fileName]
	delete(s.processed, fileName)
	return ok, nil
}

// ClearProcessedFiles implements store.ProcessedFileRepository.
func (s *Store) ClearProcessedFiles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.processed)
	s.processed = make(map[string]domain.ProcessedFileRecord)
	return n, nil
}

// ListProcessedFiles implements store.ProcessedFileRepository.
func (s *Store) ListProcessedFiles(ctx context.Context) ([]domain.ProcessedFileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProcessedFileRecord, 0, len(s.processed))
	for _, rec := range s.processed {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FileName < result[j].FileName })
	return result, nil
}

// Snapshot implements store.SnapshotRepository.
func (s *Store) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	txs, _ := s.ListTransactions(ctx)
	rules, _ := s.ListRules(ctx)
	overrides, _ := s.ListOverrides(ctx)
	summaries, _ := s.ListMonthlySummaries(ctx)

	return &store.Snapshot{
		Transactions: txs,
		Rules:        rules,
		Overrides:    overrides,
		Summaries:    summaries,
	}, nil
}

// RestoreSnapshot implements store.SnapshotRepository.
func (s *Store) RestoreSnapshot(ctx context.Context, snap *store.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs = append([]domain.Transaction(nil), snap.Transactions...)
	s.hashes = make(map[string]bool, len(s.txs))
	for _, tx := range s.txs {
		s.hashes[tx.ContentHash] = true
	}

	s.rules = append([]domain.CategoryRule(nil), snap.Rules...)
	s.nextRule = 0
	for _, r := range s.rules {
		if r.ID > s.nextRule {
			s.nextRule = r.ID
		}
	}

	s.overrides = make(map[string]domain.CategoryOverride, len(snap.Overrides))
	for _, o := range snap.Overrides {
		s.overrides[o.ContentHash] = o
	}

	s.summaries = append([]domain.MonthlySummary(nil), snap.Summaries...)
	return nil
}

// Ensure Store implements the Repository interface.
var _ store.Repository = (*Store)(nil)
