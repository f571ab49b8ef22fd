package session

import (
	"testing"

	"github.com/boardpilot/boardpilot/internal/remote"
)

func TestEncodeCSV(t *testing.T) {
	result := &remote.QueryResult{
		Columns: []string{"region", "revenue"},
		Rows: [][]interface{}{
			{"north", int64(1200)},
			{"south", 950.5},
			{"east", nil},
		},
	}

	got, err := EncodeCSV(result)
	if err != nil {
		t.Fatalf("EncodeCSV failed: %v", err)
	}

	want := "region,revenue\nnorth,1200\nsouth,950.5\neast,\n"
	if got != want {
		t.Errorf("EncodeCSV mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestEncodeCSVQuotesSpecialCharacters(t *testing.T) {
	result := &remote.QueryResult{
		Columns: []string{"name"},
		Rows: [][]interface{}{
			{`widget, "special"`},
		},
	}

	got, err := EncodeCSV(result)
	if err != nil {
		t.Fatalf("EncodeCSV failed: %v", err)
	}

	want := "name\n\"widget, \"\"special\"\"\"\n"
	if got != want {
		t.Errorf("EncodeCSV mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestEncodeCSVEmptyResult(t *testing.T) {
	got, err := EncodeCSV(&remote.QueryResult{Columns: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("EncodeCSV failed: %v", err)
	}
	if got != "a,b\n" {
		t.Errorf("expected header only, got %q", got)
	}
}
