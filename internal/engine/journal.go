package engine

import (
	"log"
	"sync"
	"time"
)

// Journal entry types.
const (
	JournalRunStart       = "run_start"
	JournalRunComplete    = "run_complete"
	JournalRunFailed      = "run_failed"
	JournalStageStart     = "stage_start"
	JournalStageComplete  = "stage_complete"
	JournalStageFailed    = "stage_failed"
	JournalStepDispatched = "step_dispatched"
	JournalStepResult     = "step_result"
	JournalStepFailed     = "step_failed"
	JournalSummarized     = "step_summarized"
	JournalAnomaly        = "anomaly"
)

// JournalEntry is one audit-trail event. Entries are append-only and never
// mutated.
type JournalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
}

// Journal is the append-only audit trail of engine, stage and step
// lifecycle events. Appends are echoed to the logger.
type Journal struct {
	mu      sync.Mutex
	entries []JournalEntry
	logger  *log.Logger
}

func NewJournal(logger *log.Logger) *Journal {
	if logger == nil {
		logger = log.Default()
	}
	return &Journal{logger: logger}
}

func (j *Journal) Record(entryType, message string, details any) {
	j.mu.Lock()
	j.entries = append(j.entries, JournalEntry{
		Timestamp: time.Now(),
		Type:      entryType,
		Message:   message,
		Details:   details,
	})
	j.mu.Unlock()
	j.logger.Printf("[%s] %s", entryType, message)
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}
