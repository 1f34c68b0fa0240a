package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webtrail/internal/model"
)

// HistoryDB provides SQLite-based storage for browsing history and
// classification data. It manages connection pooling and provides
// batch-transactional write methods plus indexed range queries.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: readers keep a
	// consistent snapshot while the writer proceeds.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB at the specified directory.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "webtrail.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; a single pooled connection also
	// serializes write transactions per object kind for free.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- History items: one row per (url, visit timestamp) event
	CREATE TABLE IF NOT EXISTS history_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		title TEXT,
		last_visit_time INTEGER NOT NULL,
		visit_count INTEGER DEFAULT 0,
		typed_count INTEGER DEFAULT 0,
		domain TEXT,
		UNIQUE(url, last_visit_time)
	);

	CREATE INDEX IF NOT EXISTS idx_items_url ON history_items(url);
	CREATE INDEX IF NOT EXISTS idx_items_time ON history_items(last_visit_time);
	CREATE INDEX IF NOT EXISTS idx_items_domain ON history_items(domain);

	-- Visit details: the per-URL visit sequence, immutable once written
	CREATE TABLE IF NOT EXISTS visit_details (
		visit_id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		visit_time INTEGER NOT NULL,
		referring_visit_id INTEGER DEFAULT 0,
		transition TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_visits_url ON visit_details(url);
	CREATE INDEX IF NOT EXISTS idx_visits_time ON visit_details(visit_time);

	-- Categories: one record per url, categories as ranked JSON
	CREATE TABLE IF NOT EXISTS categories (
		url TEXT PRIMARY KEY,
		categories TEXT NOT NULL,
		top_category TEXT NOT NULL,
		last_visit_time INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_top ON categories(top_category);
	CREATE INDEX IF NOT EXISTS idx_categories_time ON categories(last_visit_time);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// StoreHistoryItems writes a batch of history items, skipping items whose
// (url, last_visit_time) key is already stored. It returns the items that
// were actually written, in input order.
//
// The duplicate check is one bulk read over the batch's URLs; all inserts
// run inside a single transaction, so a failed insert aborts the whole
// batch and leaves no partial writes visible.
func (hdb *HistoryDB) StoreHistoryItems(ctx context.Context, items []model.HistoryItem) ([]model.HistoryItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	existing, err := hdb.existingKeys(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing keys: %w", err)
	}

	fresh := make([]model.HistoryItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := item.Key()
		if _, dup := existing[key]; dup {
			continue
		}
		// The incoming batch itself may repeat a key.
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	const insert = `
	INSERT INTO history_items (url, title, last_visit_time, visit_count, typed_count, domain)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, item := range fresh {
		if _, err := tx.ExecContext(ctx, insert,
			item.URL, item.Title, item.LastVisitTime,
			item.VisitCount, item.TypedCount, item.Domain,
		); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to store history batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history batch: %w", err)
	}
	return fresh, nil
}

// existingKeys returns the set of (url, last_visit_time) keys already
// stored for the batch's URLs.
func (hdb *HistoryDB) existingKeys(ctx context.Context, items []model.HistoryItem) (map[string]struct{}, error) {
	urls := make(map[string]struct{}, len(items))
	for _, item := range items {
		urls[item.URL] = struct{}{}
	}

	placeholders := make([]string, 0, len(urls))
	args := make([]any, 0, len(urls))
	for u := range urls {
		placeholders = append(placeholders, "?")
		args = append(args, u)
	}

	query := fmt.Sprintf(
		"SELECT url, last_visit_time FROM history_items WHERE url IN (%s)",
		strings.Join(placeholders, ","),
	)

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var item model.HistoryItem
		if err := rows.Scan(&item.URL, &item.LastVisitTime); err != nil {
			return nil, err
		}
		keys[item.Key()] = struct{}{}
	}
	return keys, rows.Err()
}

// StoreVisitDetails writes the visit sequence for a URL inside one
// transaction. Already-stored visit ids are ignored: visit details are
// immutable, so re-storing a sequence is a no-op for known visits.
func (hdb *HistoryDB) StoreVisitDetails(ctx context.Context, url string, visits []model.VisitDetail) error {
	if len(visits) == 0 {
		return nil
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	const insert = `
	INSERT OR IGNORE INTO visit_details (visit_id, url, visit_time, referring_visit_id, transition)
	VALUES (?, ?, ?, ?, ?)
	`
	for _, v := range visits {
		visitURL := v.URL
		if visitURL == "" {
			visitURL = url
		}
		if _, err := tx.ExecContext(ctx, insert,
			v.VisitID, visitURL, v.VisitTime, v.ReferringVisitID, v.Transition,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to store visit batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visit batch: %w", err)
	}
	return nil
}

// StoreCategory upserts the classification record for a URL. The ranked
// category list is stored as JSON; the top label is duplicated into an
// indexed column for category-keyed queries.
func (hdb *HistoryDB) StoreCategory(ctx context.Context, rec model.CategoryRecord) error {
	if len(rec.Categories) == 0 {
		return fmt.Errorf("category record for %s has no categories", rec.URL)
	}

	categoriesJSON, err := json.Marshal(rec.Categories)
	if err != nil {
		return fmt.Errorf("failed to serialize categories: %w", err)
	}

	const query = `
	INSERT INTO categories (url, categories, top_category, last_visit_time)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		categories = excluded.categories,
		top_category = excluded.top_category,
		last_visit_time = excluded.last_visit_time
	`
	if _, err := hdb.db.ExecContext(ctx, query,
		rec.URL, string(categoriesJSON), rec.Categories[0].Label, rec.LastVisitTime,
	); err != nil {
		return fmt.Errorf("failed to store category record: %w", err)
	}
	return nil
}

// HistorySince returns history items with last_visit_time >= since
// (epoch milliseconds), newest first.
func (hdb *HistoryDB) HistorySince(ctx context.Context, since int64) ([]model.HistoryItem, error) {
	const query = `
	SELECT url, title, last_visit_time, visit_count, typed_count, domain
	FROM history_items
	WHERE last_visit_time >= ?
	ORDER BY last_visit_time DESC
	`
	return hdb.queryItems(ctx, query, since)
}

// HistoryByDomain returns history items for one domain within the window,
// newest first.
func (hdb *HistoryDB) HistoryByDomain(ctx context.Context, domain string, since int64) ([]model.HistoryItem, error) {
	const query = `
	SELECT url, title, last_visit_time, visit_count, typed_count, domain
	FROM history_items
	WHERE domain = ? AND last_visit_time >= ?
	ORDER BY last_visit_time DESC
	`
	return hdb.queryItems(ctx, query, domain, since)
}

// MostVisited returns history items within the window ordered by the
// provider's visit counter, highest first.
func (hdb *HistoryDB) MostVisited(ctx context.Context, since int64, limit int) ([]model.HistoryItem, error) {
	const query = `
	SELECT url, title, last_visit_time, visit_count, typed_count, domain
	FROM history_items
	WHERE last_visit_time >= ?
	ORDER BY visit_count DESC, last_visit_time DESC
	LIMIT ?
	`
	return hdb.queryItems(ctx, query, since, limit)
}

// queryItems runs a history item query and scans the result rows.
func (hdb *HistoryDB) queryItems(ctx context.Context, query string, args ...any) ([]model.HistoryItem, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history items: %w", err)
	}
	defer rows.Close()

	var items []model.HistoryItem
	for rows.Next() {
		var item model.HistoryItem
		var title, domain sql.NullString
		if err := rows.Scan(&item.URL, &title, &item.LastVisitTime,
			&item.VisitCount, &item.TypedCount, &domain); err != nil {
			return nil, fmt.Errorf("failed to scan history item: %w", err)
		}
		item.Title = title.String
		item.Domain = domain.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// VisitsForURL returns the stored visit sequence for a URL in time order.
func (hdb *HistoryDB) VisitsForURL(ctx context.Context, url string) ([]model.VisitDetail, error) {
	const query = `
	SELECT visit_id, url, visit_time, referring_visit_id, transition
	FROM visit_details
	WHERE url = ?
	ORDER BY visit_time ASC
	`
	return hdb.queryVisits(ctx, query, url)
}

// VisitsSince returns all visits with visit_time >= since in time order.
func (hdb *HistoryDB) VisitsSince(ctx context.Context, since int64) ([]model.VisitDetail, error) {
	const query = `
	SELECT visit_id, url, visit_time, referring_visit_id, transition
	FROM visit_details
	WHERE visit_time >= ?
	ORDER BY visit_time ASC
	`
	return hdb.queryVisits(ctx, query, since)
}

// queryVisits runs a visit detail query and scans the result rows.
func (hdb *HistoryDB) queryVisits(ctx context.Context, query string, args ...any) ([]model.VisitDetail, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []model.VisitDetail
	for rows.Next() {
		var v model.VisitDetail
		var transition sql.NullString
		if err := rows.Scan(&v.VisitID, &v.URL, &v.VisitTime, &v.ReferringVisitID, &transition); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		v.Transition = transition.String
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Category returns the classification record for a URL, or nil when the
// URL has not been classified.
func (hdb *HistoryDB) Category(ctx context.Context, url string) (*model.CategoryRecord, error) {
	const query = `
	SELECT url, categories, last_visit_time FROM categories WHERE url = ?
	`
	var rec model.CategoryRecord
	var categoriesJSON string
	err := hdb.db.QueryRowContext(ctx, query, url).Scan(&rec.URL, &categoriesJSON, &rec.LastVisitTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category record: %w", err)
	}

	if err := json.Unmarshal([]byte(categoriesJSON), &rec.Categories); err != nil {
		return nil, fmt.Errorf("failed to parse category record: %w", err)
	}
	return &rec, nil
}

// CategoriesSince returns classification records whose last_visit_time is
// within the window, newest first.
func (hdb *HistoryDB) CategoriesSince(ctx context.Context, since int64) ([]model.CategoryRecord, error) {
	const query = `
	SELECT url, categories, last_visit_time
	FROM categories
	WHERE last_visit_time >= ?
	ORDER BY last_visit_time DESC
	`
	rows, err := hdb.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var records []model.CategoryRecord
	for rows.Next() {
		var rec model.CategoryRecord
		var categoriesJSON string
		if err := rows.Scan(&rec.URL, &categoriesJSON, &rec.LastVisitTime); err != nil {
			return nil, fmt.Errorf("failed to scan category record: %w", err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &rec.Categories); err != nil {
			continue // Skip malformed records
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes history items and visits older than the given
// epoch-millisecond cutoff. Category records are kept while their URL
// still has history inside the window; orphaned records are removed.
// It returns the number of deleted history items.
func (hdb *HistoryDB) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM history_items WHERE last_visit_time < ?", before)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prune history items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM visit_details WHERE visit_time < ?", before); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prune visits: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM categories WHERE url NOT IN (SELECT DISTINCT url FROM history_items)"); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prune categories: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarizes the stored data volume and time bounds.
type Stats struct {
	// HistoryItems is the number of stored history events.
	HistoryItems int64 `json:"historyItems"`

	// VisitDetails is the number of stored visit records.
	VisitDetails int64 `json:"visitDetails"`

	// Categories is the number of classified URLs.
	Categories int64 `json:"categories"`

	// OldestVisitTime and NewestVisitTime bound the stored history in
	// epoch milliseconds. Zero when the store is empty.
	OldestVisitTime int64 `json:"oldestVisitTime"`
	NewestVisitTime int64 `json:"newestVisitTime"`
}

// GetStats returns aggregate statistics about the store.
func (hdb *HistoryDB) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	row := hdb.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM history_items),
		(SELECT COUNT(*) FROM visit_details),
		(SELECT COUNT(*) FROM categories),
		COALESCE((SELECT MIN(last_visit_time) FROM history_items), 0),
		COALESCE((SELECT MAX(last_visit_time) FROM history_items), 0)
	`)
	if err := row.Scan(&stats.HistoryItems, &stats.VisitDetails, &stats.Categories,
		&stats.OldestVisitTime, &stats.NewestVisitTime); err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return &stats, nil
}
