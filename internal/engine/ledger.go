package engine

import (
	"sync"
	"time"

	"github.com/rendis/agentflow/pkg/schema"
)

// Ledger is the append-only record of every run the orchestrator performed,
// kept for aggregate statistics and recent-history queries. Thread-safe.
type Ledger struct {
	mu      sync.RWMutex
	entries []schema.LedgerEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records one run outcome.
func (l *Ledger) Append(entry schema.LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Record is a convenience wrapper deriving a ledger entry from a run record.
func (l *Ledger) Record(rec *schema.ExecutionRecord) {
	l.Append(schema.LedgerEntry{
		Workflow:  rec.Workflow,
		Timestamp: rec.CompletedAt,
		Duration:  rec.ExecutionTime,
		Status:    rec.Status,
	})
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns the full history.
func (l *Ledger) Recent(limit int) []schema.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]schema.LedgerEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.entries[len(l.entries)-1-i])
	}
	return out
}

// Len returns the total number of recorded runs.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Statistics aggregates the full history. An empty ledger yields all-zero
// statistics rather than NaN rates.
func (l *Ledger) Statistics() schema.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := schema.LedgerStats{Total: len(l.entries)}
	if stats.Total == 0 {
		return stats
	}

	var totalDuration time.Duration
	for _, e := range l.entries {
		totalDuration += e.Duration
		if e.Status == schema.RunStatusCompleted {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}

	stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	stats.AverageDuration = totalDuration / time.Duration(stats.Total)
	return stats
}
