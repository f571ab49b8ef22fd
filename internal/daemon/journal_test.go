package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJournalAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "sync.jsonl")
	journal, err := OpenJournal(path, nil)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer journal.Close()

	now := time.Now().UTC().Truncate(time.Second)
	journal.Report(Outcome{Kind: OutcomeAdopted, DashboardID: "b1", Name: "Sales", At: now})
	journal.Report(Outcome{Kind: OutcomeConflict, DashboardID: "b2", Name: "Ops", At: now})
	journal.Report(Outcome{Kind: OutcomeError, DashboardID: "b3", Err: errors.New("store offline"), At: now})

	outcomes, err := journal.Tail(10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Kind != OutcomeAdopted || outcomes[0].DashboardID != "b1" {
		t.Errorf("unexpected first outcome: %+v", outcomes[0])
	}
	if outcomes[2].Err == nil || outcomes[2].Err.Error() != "store offline" {
		t.Errorf("expected error preserved, got %v", outcomes[2].Err)
	}
}

func TestJournalTailLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.jsonl")
	journal, err := OpenJournal(path, nil)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer journal.Close()

	for i := 0; i < 5; i++ {
		journal.Report(Outcome{Kind: OutcomeAdopted, DashboardID: "b1", At: time.Now()})
	}

	outcomes, err := journal.Tail(2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected tail of 2, got %d", len(outcomes))
	}
}

func TestJournalForwardsToNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.jsonl")
	next := &recordingReporter{}
	journal, err := OpenJournal(path, next)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer journal.Close()

	journal.Report(Outcome{Kind: OutcomeDeleted, DashboardID: "b7", At: time.Now()})

	if got := next.byKind(OutcomeDeleted); len(got) != 1 || got[0].DashboardID != "b7" {
		t.Fatalf("expected outcome forwarded to next reporter, got %+v", next.outcomes)
	}
}

func TestJournalSkipsTornLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.jsonl")
	journal, err := OpenJournal(path, nil)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	journal.Report(Outcome{Kind: OutcomeAdopted, DashboardID: "b1", At: time.Now()})
	journal.Close()

	// Simulate a torn write followed by a good line.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	f.WriteString(`{"kind":"adop` + "\n")
	f.Close()

	journal, err = OpenJournal(path, nil)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer journal.Close()
	journal.Report(Outcome{Kind: OutcomeConflict, DashboardID: "b2", At: time.Now()})

	outcomes, err := journal.Tail(10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected torn line skipped, got %d outcomes", len(outcomes))
	}
}
