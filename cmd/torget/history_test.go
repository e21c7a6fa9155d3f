package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/torhttp/internal/history"
)

// seedHistory creates a history database with a few records and returns
// its directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := history.Open(dir, history.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open history database: %v", err)
	}
	defer db.Close()

	records := []*history.FetchRecord{
		{URL: "http://a.onion/", Host: "a.onion", Method: "GET", StatusCode: 200, BodySize: 1024, Duration: time.Second},
		{URL: "http://b.onion/", Host: "b.onion", Method: "GET", Error: "circuit failure"},
	}
	for _, r := range records {
		if _, err := db.SaveFetch(context.Background(), r); err != nil {
			t.Fatalf("failed to save record: %v", err)
		}
	}
	return dir
}

// runHistory executes the history command and returns its output.
func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestHistoryCmd tests listing recorded fetches.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("lists all records", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "http://a.onion/") || !strings.Contains(out, "http://b.onion/") {
			t.Errorf("output missing records:\n%s", out)
		}
		if !strings.Contains(out, "ERR") {
			t.Errorf("failed fetch not flagged:\n%s", out)
		}
	})

	t.Run("filters by host", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--dir", dir, "a.onion")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "http://a.onion/") {
			t.Errorf("expected a.onion record:\n%s", out)
		}
		if strings.Contains(out, "http://b.onion/") {
			t.Errorf("b.onion record should be filtered out:\n%s", out)
		}
	})

	t.Run("lists hosts", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--dir", dir, "--hosts")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "a.onion") || !strings.Contains(out, "b.onion") {
			t.Errorf("expected both hosts:\n%s", out)
		}
	})

	t.Run("markdown output", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--dir", dir, "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# torget Fetch History") {
			t.Errorf("missing markdown heading:\n%s", out)
		}
		if !strings.Contains(out, "| ID") && !strings.Contains(out, "ID |") {
			t.Errorf("missing markdown table:\n%s", out)
		}
	})

	t.Run("missing database fails", func(t *testing.T) {
		t.Parallel()

		if _, err := runHistory(t, "--dir", t.TempDir()); err == nil {
			t.Error("expected error for missing history database")
		}
	})
}
