package migration

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CodePreview is the prospective effect of the migration on one code.
type CodePreview struct {
	Code         string
	Outcome      Outcome
	Transactions int
	Rules        int
	Overrides    int
	// Targets counts records per prospective new code.
	Targets map[string]int
}

// Preview is the dry-run result of Analyze.
type Preview struct {
	Codes    []CodePreview
	Unmapped []string
	// Pending is the number of records a run would rewrite.
	Pending int
}

// Report summarizes one migration run.
type Report struct {
	StartedAt            time.Time      `json:"started_at"`
	FinishedAt           time.Time      `json:"finished_at"`
	BackupSet            string         `json:"backup_set"`
	FinalState           State          `json:"final_state"`
	States               []State        `json:"states"`
	TransactionsRemapped int            `json:"transactions_remapped"`
	RulesRemapped        int            `json:"rules_remapped"`
	OverridesRemapped    int            `json:"overrides_remapped"`
	SummariesCleared     int            `json:"summaries_cleared"`
	Unmapped             map[string]int `json:"unmapped,omitempty"`
	RolledBack           bool           `json:"rolled_back"`
	RollbackError        string         `json:"rollback_error,omitempty"`
	LogFile              string         `json:"log_file,omitempty"`
}

// WriteText prints the preview as an aligned table.
func (p Preview) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%-26s %-14s %6s %6s %6s  %s\n", "CODE", "OUTCOME", "TXNS", "RULES", "OVRD", "TARGETS")
	for _, c := range p.Codes {
		fmt.Fprintf(w, "%-26s %-14s %6d %6d %6d  %s\n", c.Code, c.Outcome, c.Transactions, c.Rules, c.Overrides, formatTargets(c.Targets))
	}
	fmt.Fprintf(w, "\n%d record(s) would be rewritten\n", p.Pending)
	if len(p.Unmapped) > 0 {
		fmt.Fprintf(w, "Unmapped codes left untouched: %s\n", strings.Join(p.Unmapped, ", "))
	}
}

// WriteText prints the run outcome.
func (r Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Migration %s (backup %s)\n", r.FinalState, r.BackupSet)
	fmt.Fprintf(w, "  transactions remapped: %d\n", r.TransactionsRemapped)
	fmt.Fprintf(w, "  rules remapped:        %d\n", r.RulesRemapped)
	fmt.Fprintf(w, "  overrides remapped:    %d\n", r.OverridesRemapped)
	fmt.Fprintf(w, "  summaries cleared:     %d\n", r.SummariesCleared)
	if len(r.Unmapped) > 0 {
		fmt.Fprintf(w, "  unmapped codes:        %s\n", formatTargets(r.Unmapped))
	}
	if r.RolledBack {
		fmt.Fprintln(w, "  rolled back to the backup")
	}
	if r.RollbackError != "" {
		fmt.Fprintf(w, "  ROLLBACK FAILED: %s\n", r.RollbackError)
	}
	if r.LogFile != "" {
		fmt.Fprintf(w, "  remap log: %s\n", r.LogFile)
	}
}

func formatTargets(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

type runLog struct {
	Report  Report       `json:"report"`
	Entries []RemapEntry `json:"entries"`
}

// writeRunLog stores the report and every remap next to the backup it belongs to.
func writeRunLog(dir string, report Report, entries []RemapEntry) (string, error) {
	name := strings.TrimPrefix(report.BackupSet, backupPrefix)
	path := filepath.Join(dir, "migration_"+name+"_log.json")
	if entries == nil {
		entries = []RemapEntry{}
	}
	if _, err := writeJSON(path, runLog{Report: report, Entries: entries}); err != nil {
		return "", err
	}
	return path, nil
}
