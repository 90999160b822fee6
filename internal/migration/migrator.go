// Package migration rewrites persisted category codes from the legacy flat
// scheme to the hierarchical taxonomy, with backup and rollback.
package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// ErrLocked is returned when another migration holds the lock.
var ErrLocked = errors.New("migration already running")

const lockFileName = "migration.lock"

// Repository is the part of the store the migration reads and rewrites.
type Repository interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	RestoreSnapshot(ctx context.Context, snap *store.Snapshot) error
	ApplyCategoryChanges(ctx context.Context, changes []domain.CategoryChange) error
	UpdateRuleCategory(ctx context.Context, id int64, category string) error
	UpsertOverride(ctx context.Context, override domain.CategoryOverride) error
	DeleteMonthlySummaries(ctx context.Context) (int, error)
}

// RecordType names the kind of record a remap touched.
type RecordType string

const (
	RecordTransaction RecordType = "transaction"
	RecordRule        RecordType = "rule"
	RecordOverride    RecordType = "override"
)

// RemapEntry is one audited code change.
type RemapEntry struct {
	Record   RecordType `json:"record"`
	RecordID string     `json:"record_id"`
	OldCode  string     `json:"old_code"`
	NewCode  string     `json:"new_code"`
	Outcome  Outcome    `json:"outcome"`
}

// Migrator runs the taxonomy migration. Only one run per backup directory may
// be active at a time.
type Migrator struct {
	repo    Repository
	mapping *Mapping
	backups *Backups
	now     func() time.Time

	mu sync.Mutex
}

// NewMigrator creates a Migrator.
func NewMigrator(repo Repository, mapping *Mapping, backups *Backups) *Migrator {
	return &Migrator{repo: repo, mapping: mapping, backups: backups, now: time.Now}
}

type plan struct {
	changes   []domain.CategoryChange
	rules     []domain.CategoryRule
	overrides []domain.CategoryOverride
	entries   []RemapEntry
	unmapped  map[string]int
}

// Analyze previews the migration without mutating anything.
func (m *Migrator) Analyze(ctx context.Context) (Preview, error) {
	snap, err := m.repo.Snapshot(ctx)
	if err != nil {
		return Preview{}, fmt.Errorf("Analyze: snapshot: %w", err)
	}
	return m.preview(*snap), nil
}

// Run backs up, migrates transactions then rules and overrides, and clears
// monthly summaries. Any failure after the backup rolls back and is returned
// as a MigrationFault.
func (m *Migrator) Run(ctx context.Context) (report Report, entries []RemapEntry, err error) {
	log := logger.FromContext(ctx).With().Str("component", "taxonomy_migration").Logger()
	ctx = logger.WithContext(ctx, log)

	report.StartedAt = m.now().UTC()
	release, err := m.acquire()
	if err != nil {
		return report, nil, faults.New(faults.MigrationFault, "Run", err)
	}
	defer release()

	sm := newStateMachine()
	defer func() {
		report.FinalState = sm.State()
		report.States = sm.history
		report.FinishedAt = m.now().UTC()
	}()

	// Backing up
	_ = sm.to(StateBackingUp)
	snap, err := m.repo.Snapshot(ctx)
	if err == nil {
		var set BackupSet
		set, err = m.backups.Create(ctx, *snap)
		report.BackupSet = set.Name
	}
	if err != nil {
		_ = sm.to(StateFailed)
		log.Error().Err(err).Msg("Backup failed, migration not started")
		return report, nil, faults.New(faults.MigrationFault, "Run", fmt.Errorf("backup: %w", err))
	}

	var p plan
	steps := []struct {
		state State
		run   func() error
	}{
		{StateAnalyzing, func() error {
			p = m.plan(*snap)
			report.Unmapped = p.unmapped
			preview := m.preview(*snap)
			log.Info().Int("pending", preview.Pending).Int("codes", len(preview.Codes)).Msg("Migration analyzed")
			return nil
		}},
		{StateMigratingTransactions, func() error {
			if len(p.changes) == 0 {
				return nil
			}
			if err := m.repo.ApplyCategoryChanges(ctx, p.changes); err != nil {
				return fmt.Errorf("transactions: %w", err)
			}
			report.TransactionsRemapped = len(p.changes)
			logEntries(log, p.entries, RecordTransaction)
			return nil
		}},
		{StateMigratingRules, func() error {
			for _, r := range p.rules {
				if err := m.repo.UpdateRuleCategory(ctx, r.ID, r.Category); err != nil {
					return fmt.Errorf("rule %d: %w", r.ID, err)
				}
			}
			for _, o := range p.overrides {
				if err := m.repo.UpsertOverride(ctx, o); err != nil {
					return fmt.Errorf("override %s: %w", o.ContentHash, err)
				}
			}
			report.RulesRemapped = len(p.rules)
			report.OverridesRemapped = len(p.overrides)
			logEntries(log, p.entries, RecordRule, RecordOverride)
			return nil
		}},
		{StateClearingDerivedCaches, func() error {
			n, err := m.repo.DeleteMonthlySummaries(ctx)
			if err != nil {
				return fmt.Errorf("clear summaries: %w", err)
			}
			report.SummariesCleared = n
			return nil
		}},
		{StateReporting, func() error {
			path, err := writeRunLog(m.backups.Dir(), report, p.entries)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			report.LogFile = path
			return nil
		}},
	}

	for _, step := range steps {
		if err := sm.to(step.state); err != nil {
			return report, nil, faults.New(faults.MigrationFault, "Run", err)
		}
		if err := ctx.Err(); err != nil {
			return report, nil, m.abort(ctx, sm, &report, step.state, err)
		}
		if err := step.run(); err != nil {
			return report, nil, m.abort(ctx, sm, &report, step.state, err)
		}
		log.Debug().Str("state", string(step.state)).Msg("Migration step complete")
	}

	_ = sm.to(StateDone)
	log.Info().
		Int("transactions", report.TransactionsRemapped).
		Int("rules", report.RulesRemapped).
		Int("overrides", report.OverridesRemapped).
		Int("summaries_cleared", report.SummariesCleared).
		Msg("Taxonomy migration complete")

	return report, p.entries, nil
}

func logEntries(log zerolog.Logger, entries []RemapEntry, records ...RecordType) {
	for _, e := range entries {
		for _, r := range records {
			if e.Record != r {
				continue
			}
			log.Info().
				Str("record", string(e.Record)).
				Str("record_id", e.RecordID).
				Str("old", e.OldCode).
				Str("new", e.NewCode).
				Str("outcome", string(e.Outcome)).
				Msg("Category remapped")
		}
	}
}

// abort rolls back after a failed step and returns the fault for the caller.
func (m *Migrator) abort(ctx context.Context, sm *stateMachine, report *Report, failed State, cause error) error {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Str("state", string(failed)).Msg("Migration step failed, rolling back")

	_ = sm.to(StateRollingBack)
	// The restore must run even when ctx is what failed.
	if _, err := m.restoreLatest(context.WithoutCancel(ctx)); err != nil {
		_ = sm.to(StateFailed)
		report.RollbackError = err.Error()
		log.Error().Err(err).Msg("Rollback failed")
		return faults.New(faults.MigrationFault, "Run", fmt.Errorf("%s: %w (rollback failed: %v)", failed, cause, err))
	}

	_ = sm.to(StateRolledBack)
	report.RolledBack = true
	log.Warn().Str("backup", report.BackupSet).Msg("Migration rolled back")
	return faults.New(faults.MigrationFault, "Run", fmt.Errorf("%s: %w", failed, cause))
}

// Rollback restores the most recent backup set. ErrNoBackup is returned when
// there is nothing to restore.
func (m *Migrator) Rollback(ctx context.Context) (BackupSet, error) {
	release, err := m.acquire()
	if err != nil {
		return BackupSet{}, fmt.Errorf("Rollback: %w", err)
	}
	defer release()

	set, err := m.restoreLatest(ctx)
	if err != nil {
		return set, fmt.Errorf("Rollback: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("backup", set.Name).Msg("Rollback complete")
	return set, nil
}

func (m *Migrator) restoreLatest(ctx context.Context) (BackupSet, error) {
	set, err := m.backups.Latest()
	if err != nil {
		return BackupSet{}, err
	}
	snap, err := m.backups.Load(set)
	if err != nil {
		return set, err
	}
	if err := m.repo.RestoreSnapshot(ctx, &snap); err != nil {
		return set, fmt.Errorf("restore %s: %w", set.Name, err)
	}
	return set, nil
}

func (m *Migrator) acquire() (func(), error) {
	if !m.mu.TryLock() {
		return nil, ErrLocked
	}
	if err := os.MkdirAll(m.backups.Dir(), 0o755); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	path := filepath.Join(m.backups.Dir(), lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d %s\n", os.Getpid(), m.now().UTC().Format(time.RFC3339))
	_ = f.Close()

	return func() {
		_ = os.Remove(path)
		m.mu.Unlock()
	}, nil
}

// plan computes every change the migration would make to snap.
func (m *Migrator) plan(snap store.Snapshot) plan {
	p := plan{unmapped: make(map[string]int)}
	descByHash := make(map[string]string, len(snap.Transactions))

	for _, tx := range snap.Transactions {
		descByHash[tx.ContentHash] = tx.Description
		code, outcome := m.mapping.Resolve(tx.Category, tx.Description)
		if outcome == OutcomeUnmapped {
			p.unmapped[tx.Category]++
		}
		if code == tx.Category {
			continue
		}
		p.changes = append(p.changes, domain.CategoryChange{TransactionID: tx.ID, OldCategory: tx.Category, NewCategory: code})
		p.entries = append(p.entries, RemapEntry{Record: RecordTransaction, RecordID: tx.ID, OldCode: tx.Category, NewCode: code, Outcome: outcome})
	}

	for _, r := range snap.Rules {
		code, outcome := m.mapping.Resolve(r.Category, r.Pattern)
		if outcome == OutcomeUnmapped {
			p.unmapped[r.Category]++
		}
		if code == r.Category {
			continue
		}
		id := strconv.FormatInt(r.ID, 10)
		p.entries = append(p.entries, RemapEntry{Record: RecordRule, RecordID: id, OldCode: r.Category, NewCode: code, Outcome: outcome})
		r.Category = code
		p.rules = append(p.rules, r)
	}

	for _, o := range snap.Overrides {
		code, outcome := m.mapping.Resolve(o.Category, descByHash[o.ContentHash])
		if outcome == OutcomeUnmapped {
			p.unmapped[o.Category]++
		}
		if code == o.Category {
			continue
		}
		p.entries = append(p.entries, RemapEntry{Record: RecordOverride, RecordID: o.ContentHash, OldCode: o.Category, NewCode: code, Outcome: outcome})
		o.Category = code
		p.overrides = append(p.overrides, o)
	}

	return p
}

func (m *Migrator) preview(snap store.Snapshot) Preview {
	byCode := make(map[string]*CodePreview)
	get := func(code string) *CodePreview {
		cp, ok := byCode[code]
		if !ok {
			cp = &CodePreview{Code: code, Outcome: m.mapping.Kind(code), Targets: make(map[string]int)}
			byCode[code] = cp
		}
		return cp
	}
	descByHash := make(map[string]string, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		descByHash[tx.ContentHash] = tx.Description
		cp := get(tx.Category)
		cp.Transactions++
		target, _ := m.mapping.Resolve(tx.Category, tx.Description)
		cp.Targets[target]++
	}
	for _, r := range snap.Rules {
		cp := get(r.Category)
		cp.Rules++
		target, _ := m.mapping.Resolve(r.Category, r.Pattern)
		cp.Targets[target]++
	}
	for _, o := range snap.Overrides {
		cp := get(o.Category)
		cp.Overrides++
		target, _ := m.mapping.Resolve(o.Category, descByHash[o.ContentHash])
		cp.Targets[target]++
	}

	var out Preview
	for _, cp := range byCode {
		switch cp.Outcome {
		case OutcomeUnmapped:
			out.Unmapped = append(out.Unmapped, cp.Code)
		case OutcomeCurrent:
		default:
			out.Pending += cp.Transactions + cp.Rules + cp.Overrides
		}
		out.Codes = append(out.Codes, *cp)
	}
	sort.Slice(out.Codes, func(i, j int) bool { return out.Codes[i].Code < out.Codes[j].Code })
	sort.Strings(out.Unmapped)
	return out
}
