package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bartdag/linkvalidator/internal/config"
	"github.com/bartdag/linkvalidator/internal/model"
)

// Store persists crawl reports to SQLite so runs can be inspected and
// compared with ordinary SQL tooling. One row per run plus one row per
// page; the crawl itself never touches the store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// DefaultStorePath returns the XDG data location of the report database.
func DefaultStorePath() string {
	return filepath.Join(xdg.DataHome, config.AppName, "reports.db")
}

// OpenStore opens or creates the report database at dbPath. An empty path
// selects the XDG default.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultStorePath()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create report database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}

	// SQLite supports a single writer; the store is written once per run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // Best effort cleanup
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		start_urls TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		http_status INTEGER,
		depth INTEGER NOT NULL,
		content_type TEXT,
		elapsed_ms INTEGER,
		erroneous INTEGER NOT NULL,
		incoming_refs INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create report tables: %w", err)
	}
	return nil
}

// SaveRun stores one finished crawl.
func (s *Store) SaveRun(ctx context.Context, site *model.SiteModel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	starts := ""
	for i, u := range site.StartURLs {
		if i > 0 {
			starts += " "
		}
		starts += u.String()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, start_urls, page_count, error_count)
		 VALUES (?, ?, ?, ?, ?)`,
		site.StartTime, site.EndTime, starts, site.Len(), site.ErrorCount())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pages (run_id, url, status, http_status, depth, content_type, elapsed_ms, erroneous, incoming_refs)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare page insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement dies with the tx

	for _, p := range site.Snapshot() {
		var httpStatus sql.NullInt64
		var contentType sql.NullString
		var elapsed sql.NullInt64
		if p.Response != nil {
			httpStatus = sql.NullInt64{Int64: int64(p.Response.HTTPStatus), Valid: true}
			contentType = sql.NullString{String: p.Response.ContentType, Valid: true}
			elapsed = sql.NullInt64{Int64: p.Response.Elapsed.Milliseconds(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, pageURL(p), p.Status.String(), httpStatus, p.Depth,
			contentType, elapsed, p.Erroneous(), len(p.IncomingRefs)); err != nil {
			return fmt.Errorf("insert page %s: %w", pageURL(p), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}
