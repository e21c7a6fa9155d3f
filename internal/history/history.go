package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB stores the fetch log. One database file serves all hosts, which
// keeps cross-host queries and backups simple.
type DB struct {
	db     *sql.DB
	dbPath string
}

// Options configures how the database is opened.
type Options struct {
	// CreateIfNotExists creates the directory and database file when
	// missing. When false, a missing database is an error.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging. Recommended; readers do
	// not block the writer.
	EnableWAL bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the fetch log under dir.
func Open(dir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dir, "torget.db")

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check history path: %w", err)
		}
	}

	// modernc.org/sqlite takes the mode in the DSN. rw refuses to
	// create a new file, rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite supports a single writer; more connections only contend.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &DB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

func (h *DB) createTables() error {
	schema := `
	-- One row per completed fetch attempt
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		method TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		body_size INTEGER,
		duration_ms INTEGER,
		error TEXT,
		headers TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_url ON fetches(url);
	CREATE INDEX IF NOT EXISTS idx_fetches_host ON fetches(host);
	CREATE INDEX IF NOT EXISTS idx_fetches_timestamp ON fetches(timestamp);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// FetchRecord is one logged fetch.
type FetchRecord struct {
	ID          int64
	URL         string
	Host        string
	Method      string
	Timestamp   time.Time
	StatusCode  int
	ContentType string
	BodySize    int64
	Duration    time.Duration
	Error       string
	Headers     map[string][]string
}

// SaveFetch appends a record to the log and returns its ID.
func (h *DB) SaveFetch(ctx context.Context, record *FetchRecord) (int64, error) {
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO fetches (url, host, method, status_code, content_type, body_size, duration_ms, error, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := h.db.ExecContext(ctx, query,
		record.URL,
		record.Host,
		record.Method,
		record.StatusCode,
		record.ContentType,
		record.BodySize,
		record.Duration.Milliseconds(),
		record.Error,
		string(headersJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save fetch record: %w", err)
	}

	return result.LastInsertId()
}

// GetFetch retrieves one record by ID. A missing ID returns (nil, nil).
func (h *DB) GetFetch(ctx context.Context, id int64) (*FetchRecord, error) {
	query := `
	SELECT id, url, host, method, timestamp, status_code, content_type, body_size, duration_ms, error, headers
	FROM fetches
	WHERE id = ?
	`

	record, err := scanFetch(h.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch record: %w", err)
	}
	return record, nil
}

// ListFetches returns records newest first. A non-empty host filters to
// that host; limit 0 means no limit.
func (h *DB) ListFetches(ctx context.Context, host string, limit int) ([]FetchRecord, error) {
	query := `
	SELECT id, url, host, method, timestamp, status_code, content_type, body_size, duration_ms, error, headers
	FROM fetches
	`
	args := make([]any, 0, 2)

	if host != "" {
		query += " WHERE host = ?"
		args = append(args, host)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch records: %w", err)
	}
	defer rows.Close()

	var results []FetchRecord
	for rows.Next() {
		record, err := scanFetch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch record: %w", err)
		}
		results = append(results, *record)
	}

	return results, rows.Err()
}

// ListHosts returns the distinct hosts present in the log.
func (h *DB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT host FROM fetches ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}

	return hosts, rows.Err()
}

// HasRecentFetch reports whether url was fetched within the window.
func (h *DB) HasRecentFetch(ctx context.Context, url string, window time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM fetches
	WHERE url = ? AND timestamp > datetime('now', ?)
	`
	modifier := fmt.Sprintf("-%d seconds", int(window.Seconds()))

	var count int
	if err := h.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}
	return count > 0, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFetch(row rowScanner) (*FetchRecord, error) {
	var record FetchRecord
	var timestamp string
	var durationMS int64
	var headersJSON sql.NullString

	err := row.Scan(
		&record.ID,
		&record.URL,
		&record.Host,
		&record.Method,
		&timestamp,
		&record.StatusCode,
		&record.ContentType,
		&record.BodySize,
		&durationMS,
		&record.Error,
		&headersJSON,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = parseTimestamp(timestamp)
	record.Duration = time.Duration(durationMS) * time.Millisecond

	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}

	return &record, nil
}

// timestampFormats lists the shapes SQLite hands back depending on how
// the value was written. More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format, falling back to zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
