// Package storage maintains an ephemeral SQLite query index over the current
// publications snapshot. The snapshot JSON stays the source of truth; the
// database can be deleted and rebuilt at any time.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/juyoungml/pubsync/internal/backup"
	"github.com/juyoungml/pubsync/internal/publication"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectFields contains the standard field list for SELECT queries.
const selectFields = `id, title, authors, venue, year, abstract, citations, paper_url, arxiv_url`

// metaSourceDigest is the sync_metadata key holding the digest of the
// snapshot the index was built from.
const metaSourceDigest = "source_digest"

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			venue TEXT,
			year INTEGER NOT NULL,
			abstract TEXT,
			citations TEXT,
			paper_url TEXT NOT NULL,
			arxiv_url TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_publications_year ON publications(year);

		-- Full-text search virtual table (standalone, not external content)
		CREATE VIRTUAL TABLE IF NOT EXISTS publications_fts USING fts5(
			id UNINDEXED,
			title,
			authors,
			abstract,
			venue
		);

		CREATE TABLE IF NOT EXISTS sync_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromSnapshot clears the database and rebuilds it from a snapshot
// file written by the backup writer. It returns the number of records indexed.
func (d *DB) RebuildFromSnapshot(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot: %w", err)
	}
	var records []publication.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("parsing snapshot: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"publications", "publications_fts", "sync_metadata"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	pubStmt, err := tx.Prepare(`
		INSERT INTO publications (` + selectFields + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing publications insert: %w", err)
	}
	defer pubStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO publications_fts (id, title, authors, abstract, venue)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, r := range records {
		_, err := pubStmt.Exec(
			r.ID, r.Title, r.Authors, r.Venue, r.Year, r.Abstract,
			nullableStringValue(r.Citations), r.Links.Paper, nullableStringValue(r.Links.ArXiv),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting publication %d: %w", r.ID, err)
		}

		_, err = ftsStmt.Exec(strconv.Itoa(r.ID), r.Title, r.Authors, r.Abstract, r.Venue)
		if err != nil {
			return 0, fmt.Errorf("inserting fts for %d: %w", r.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO sync_metadata (key, value) VALUES (?, ?)`,
		metaSourceDigest, backup.Digest(data)); err != nil {
		return 0, fmt.Errorf("recording snapshot digest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(records), nil
}

// IsStale reports whether the index was built from different bytes than the
// snapshot currently at path. An index never built is stale.
func (d *DB) IsStale(snapshotPath string) (bool, error) {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return false, fmt.Errorf("reading snapshot: %w", err)
	}

	var stored string
	err = d.db.QueryRow(`SELECT value FROM sync_metadata WHERE key = ?`, metaSourceDigest).Scan(&stored)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading index metadata: %w", err)
	}
	return stored != backup.Digest(data), nil
}

// GetByID retrieves a publication by id. It returns nil when absent.
func (d *DB) GetByID(id int) (*publication.Record, error) {
	row := d.db.QueryRow(`SELECT `+selectFields+` FROM publications WHERE id = ?`, id)
	return scanRecord(row)
}

// Search performs a full-text search over title, authors, abstract and venue.
func (d *DB) Search(query string, limit int) ([]publication.Record, error) {
	return d.SearchWithFilters(SearchFilters{Keyword: query}, limit)
}

// SearchFilters contains optional filters for SearchWithFilters.
type SearchFilters struct {
	Keyword  string // General keyword search across all text fields
	Author   string // Author name, prefix matched per word
	YearFrom int    // Minimum year (0 = no minimum)
	YearTo   int    // Maximum year (0 = no maximum)
	Venue    string // Filter by venue (SQL LIKE, case-insensitive)
	ArXiv    bool   // Only publications with an arXiv link
}

// SearchWithFilters returns publications matching ALL specified criteria,
// ordered by id. A limit of zero or less means no limit.
func (d *DB) SearchWithFilters(filters SearchFilters, limit int) ([]publication.Record, error) {
	var ftsTerms []string
	var args []interface{}

	if q := prepareFTSQuery(filters.Keyword); q != "" {
		ftsTerms = append(ftsTerms, q)
	}
	if q := prepareAuthorQuery(filters.Author); q != "" {
		ftsTerms = append(ftsTerms, "authors:"+q)
	}

	query := `SELECT ` + selectFields + ` FROM publications WHERE 1=1`
	if len(ftsTerms) > 0 {
		query += ` AND id IN (SELECT CAST(id AS INTEGER) FROM publications_fts WHERE publications_fts MATCH ?)`
		args = append(args, strings.Join(ftsTerms, " AND "))
	}
	if filters.YearFrom > 0 {
		query += " AND year >= ?"
		args = append(args, filters.YearFrom)
	}
	if filters.YearTo > 0 {
		query += " AND year <= ?"
		args = append(args, filters.YearTo)
	}
	if filters.Venue != "" {
		query += " AND venue LIKE ?"
		args = append(args, "%"+filters.Venue+"%")
	}
	if filters.ArXiv {
		query += " AND arxiv_url IS NOT NULL"
	}

	query += " ORDER BY id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListAll returns all publications in id order, optionally limited.
func (d *DB) ListAll(limit int) ([]publication.Record, error) {
	return d.SearchWithFilters(SearchFilters{}, limit)
}

// Count returns the total number of publications.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM publications").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*publication.Record, error) {
	var r publication.Record
	var authors, venue, abstract, citations, arxiv sql.NullString

	err := s.Scan(
		&r.ID, &r.Title, &authors, &venue, &r.Year, &abstract,
		&citations, &r.Links.Paper, &arxiv,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	r.Authors = authors.String
	r.Venue = venue.String
	r.Abstract = abstract.String
	r.Citations = citations.String
	r.Links.ArXiv = arxiv.String
	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]publication.Record, error) {
	var records []publication.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery quotes each whitespace-separated word as an FTS5 string,
// so operators such as OR, NOT and NEAR are searched as plain words.
// Words are ANDed.
func prepareFTSQuery(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = "\"" + strings.ReplaceAll(w, "\"", "\"\"") + "\""
	}
	return strings.Join(words, " ")
}

// prepareAuthorQuery adds a prefix wildcard to each word of an author name
// so "Ki" matches "Kim". Words are ORed.
func prepareAuthorQuery(author string) string {
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}

	var terms []string
	for _, part := range parts {
		escaped := strings.ReplaceAll(part, "\"", "\"\"")
		terms = append(terms, "\""+escaped+"\"*")
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}
