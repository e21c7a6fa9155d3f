package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a temporary fetch log for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// sampleRecord returns a record for url ready to save.
func sampleRecord(url, host string) *FetchRecord {
	return &FetchRecord{
		URL:         url,
		Host:        host,
		Method:      "GET",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		BodySize:    2048,
		Duration:    1500 * time.Millisecond,
		Headers: map[string][]string{
			"Content-Type": {"text/html; charset=utf-8"},
			"Server":       {"nginx"},
		},
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dir, "torget.db")); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false requires existing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		first, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := first.SaveFetch(context.Background(), sampleRecord("http://example.onion/", "example.onion")); err != nil {
			t.Fatalf("failed to save record: %v", err)
		}
		if err := first.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}

		second, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer second.Close()

		records, err := second.ListFetches(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("failed to list records: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("got %d records after reopen, want 1", len(records))
		}
	})
}

// TestSaveAndGetFetch tests the round trip of a single record.
func TestSaveAndGetFetch(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	saved := sampleRecord("http://example.onion/page", "example.onion")
	id, err := db.SaveFetch(ctx, saved)
	if err != nil {
		t.Fatalf("failed to save record: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero ID")
	}

	got, err := db.GetFetch(ctx, id)
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if got == nil {
		t.Fatal("record not found")
	}
	if got.URL != saved.URL {
		t.Errorf("URL = %q, want %q", got.URL, saved.URL)
	}
	if got.Host != saved.Host {
		t.Errorf("Host = %q, want %q", got.Host, saved.Host)
	}
	if got.Method != "GET" {
		t.Errorf("Method = %q, want GET", got.Method)
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
	if got.BodySize != 2048 {
		t.Errorf("BodySize = %d, want 2048", got.BodySize)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got.Duration)
	}
	if got.Headers["Server"][0] != "nginx" {
		t.Errorf("Headers = %v", got.Headers)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp should be set by the database")
	}
}

// TestGetFetchMissing tests the nil-without-error contract.
func TestGetFetchMissing(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	got, err := db.GetFetch(context.Background(), 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing ID, got %+v", got)
	}
}

// TestSaveFetchWithError tests logging a failed fetch.
func TestSaveFetchWithError(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	record := &FetchRecord{
		URL:    "http://down.onion/",
		Host:   "down.onion",
		Method: "GET",
		Error:  "circuit failure: host unreachable",
	}
	id, err := db.SaveFetch(ctx, record)
	if err != nil {
		t.Fatalf("failed to save record: %v", err)
	}

	got, err := db.GetFetch(ctx, id)
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if got.Error != record.Error {
		t.Errorf("Error = %q, want %q", got.Error, record.Error)
	}
	if got.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for failed fetch", got.StatusCode)
	}
}

// TestListFetches tests filtering and ordering.
func TestListFetches(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	urls := []struct{ url, host string }{
		{"http://a.onion/1", "a.onion"},
		{"http://a.onion/2", "a.onion"},
		{"http://b.onion/1", "b.onion"},
	}
	for _, u := range urls {
		if _, err := db.SaveFetch(ctx, sampleRecord(u.url, u.host)); err != nil {
			t.Fatalf("failed to save record: %v", err)
		}
	}

	t.Run("all hosts", func(t *testing.T) {
		t.Parallel()

		records, err := db.ListFetches(ctx, "", 0)
		if err != nil {
			t.Fatalf("failed to list records: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("got %d records, want 3", len(records))
		}
	})

	t.Run("filter by host", func(t *testing.T) {
		t.Parallel()

		records, err := db.ListFetches(ctx, "a.onion", 0)
		if err != nil {
			t.Fatalf("failed to list records: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records for a.onion, want 2", len(records))
		}
		for _, r := range records {
			if r.Host != "a.onion" {
				t.Errorf("record host = %q, want a.onion", r.Host)
			}
		}
	})

	t.Run("newest first with limit", func(t *testing.T) {
		t.Parallel()

		records, err := db.ListFetches(ctx, "", 1)
		if err != nil {
			t.Fatalf("failed to list records: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("got %d records, want 1", len(records))
		}
		if records[0].URL != "http://b.onion/1" {
			t.Errorf("newest record = %q, want the last saved", records[0].URL)
		}
	})
}

// TestListHosts tests host enumeration.
func TestListHosts(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for _, host := range []string{"b.onion", "a.onion", "a.onion"} {
		if _, err := db.SaveFetch(ctx, sampleRecord("http://"+host+"/", host)); err != nil {
			t.Fatalf("failed to save record: %v", err)
		}
	}

	hosts, err := db.ListHosts(ctx)
	if err != nil {
		t.Fatalf("failed to list hosts: %v", err)
	}
	if len(hosts) != 2 || hosts[0] != "a.onion" || hosts[1] != "b.onion" {
		t.Errorf("hosts = %v, want [a.onion b.onion]", hosts)
	}
}

// TestHasRecentFetch tests the freshness window.
func TestHasRecentFetch(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	url := "http://example.onion/"
	if _, err := db.SaveFetch(ctx, sampleRecord(url, "example.onion")); err != nil {
		t.Fatalf("failed to save record: %v", err)
	}

	recent, err := db.HasRecentFetch(ctx, url, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recent {
		t.Error("expected fetch within the hour to be recent")
	}

	recent, err = db.HasRecentFetch(ctx, "http://other.onion/", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recent {
		t.Error("unknown URL should not be recent")
	}
}
