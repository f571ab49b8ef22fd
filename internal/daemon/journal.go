package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// journalEntry is the persisted form of one reconcile outcome.
type journalEntry struct {
	Kind        OutcomeKind `json:"kind"`
	DashboardID string      `json:"dashboard_id"`
	Name        string      `json:"name,omitempty"`
	Error       string      `json:"error,omitempty"`
	At          time.Time   `json:"at"`
}

// Journal is an append-only JSONL log of reconcile outcomes. It implements
// Reporter, so it can be chained in front of (or instead of) a monitor to
// give the sync timeline durable history across restarts.
type Journal struct {
	path string
	next Reporter

	mu   sync.Mutex
	file *os.File
}

// OpenJournal opens (or creates) a journal file. Outcomes are forwarded to
// next after being written; next may be nil.
func OpenJournal(path string, next Reporter) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{path: path, next: next, file: file}, nil
}

// Report appends the outcome to the journal and forwards it.
// A failed append is swallowed: the journal is history, not source of truth.
func (j *Journal) Report(outcome Outcome) {
	entry := journalEntry{
		Kind:        outcome.Kind,
		DashboardID: outcome.DashboardID,
		Name:        outcome.Name,
		At:          outcome.At,
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}

	j.mu.Lock()
	if data, err := json.Marshal(entry); err == nil {
		j.file.Write(append(data, '\n'))
	}
	j.mu.Unlock()

	if j.next != nil {
		j.next.Report(outcome)
	}
}

// Tail returns the most recent n outcomes, oldest first. Lines that fail to
// parse are skipped so a torn write cannot poison the whole history.
func (j *Journal) Tail(n int) ([]Outcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var outcomes []Outcome
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		outcome := Outcome{
			Kind:        entry.Kind,
			DashboardID: entry.DashboardID,
			Name:        entry.Name,
			At:          entry.At,
		}
		if entry.Error != "" {
			outcome.Err = fmt.Errorf("%s", entry.Error)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}

	if n > 0 && len(outcomes) > n {
		outcomes = outcomes[len(outcomes)-n:]
	}
	return outcomes, nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
