package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderRotation(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, 3)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := r.Start("run"); err != nil {
			t.Fatal(err)
		}
		r.Record(Call{CallID: "c", Tool: "navigate"})
		time.Sleep(10 * time.Millisecond) // distinct mod times and file names
	}
	_ = r.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 traces after rotation, got %d", len(entries))
	}
}

func TestRecorderRecord(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, 3)
	if err != nil {
		t.Fatal(err)
	}

	r.Record(Call{Tool: "dropped"})
	if err := r.Start("run1"); err != nil {
		t.Fatal(err)
	}
	r.Record(Call{CallID: "a", Tool: "navigate", PageID: "default", DurationMs: 12})
	r.Record(Call{CallID: "b", Tool: "click", Error: "could not find element"})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	r.Record(Call{Tool: "after close"})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var calls []Call
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var c Call
		if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
			t.Fatalf("bad trace line %q: %v", scanner.Text(), err)
		}
		calls = append(calls, c)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Tool != "navigate" || calls[0].PageID != "default" || calls[0].Timestamp.IsZero() {
		t.Errorf("unexpected first call: %+v", calls[0])
	}
	if calls[1].Error == "" {
		t.Errorf("expected error recorded: %+v", calls[1])
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New("", 3); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestRotationKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "users-data.jsonl")
	if err := os.WriteFile(foreign, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := r.Start("run"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = r.Close()

	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("non-trace file removed by rotation: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 1 trace plus the foreign file, got %d entries", len(entries))
	}
}
