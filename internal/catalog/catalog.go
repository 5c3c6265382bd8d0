// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog keeps a SQLite log of the articles processed by the bot
// and the summaries generated for them, searchable by title and summary.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-bot/pkg/types"
)

// DefaultFile is the catalog file name under the resources directory.
const DefaultFile = "catalog.db"

const defaultLimit = 20

// Entry is one processed article.
type Entry struct {
	UploadID     string     `json:"upload_id" yaml:"upload_id"`
	Session      string     `json:"session" yaml:"session"`
	FileName     string     `json:"file_name" yaml:"file_name"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty"`
	TEIPath      string     `json:"tei_path" yaml:"tei_path"`
	Summary      string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	SummarizedAt *time.Time `json:"summarized_at,omitempty" yaml:"summarized_at,omitempty"`
}

// Catalog is the SQLite-backed article log.
type Catalog struct {
	db  *sql.DB
	fts bool
	now func() time.Time
}

// Open opens or creates the catalog database at path and its schema.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{db: db, now: time.Now}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// FullText reports whether searches use the FTS5 index. Without FTS5
// support in the SQLite build, Search falls back to substring matching.
func (c *Catalog) FullText() bool { return c.fts }

func (c *Catalog) createSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS articles (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL UNIQUE,
		session TEXT NOT NULL,
		file_name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		tei_path TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		summarized_at TEXT
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}

	var ftsExists int
	if err := c.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='articles_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		c.fts = true
		return nil
	}

	// FTS5 is optional: builds without the sqlite_fts5 tag lack the module.
	if _, err := c.db.Exec(`CREATE VIRTUAL TABLE articles_fts USING fts5(title, summary, content=articles, content_rowid=rowid)`); err != nil {
		return nil
	}
	triggers := []string{
		`CREATE TRIGGER articles_ai AFTER INSERT ON articles BEGIN
			INSERT INTO articles_fts(rowid, title, summary) VALUES (new.rowid, new.title, new.summary);
		END`,
		`CREATE TRIGGER articles_ad AFTER DELETE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, summary) VALUES('delete', old.rowid, old.title, old.summary);
		END`,
		`CREATE TRIGGER articles_au AFTER UPDATE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title, summary) VALUES('delete', old.rowid, old.title, old.summary);
			INSERT INTO articles_fts(rowid, title, summary) VALUES (new.rowid, new.title, new.summary);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	c.fts = true
	return nil
}

// Record stores a processed article. Recording the same upload again
// updates its title and TEI path.
func (c *Catalog) Record(ctx context.Context, session string, ref types.ArticleRef) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO articles (upload_id, session, file_name, title, tei_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(upload_id) DO UPDATE SET title = excluded.title, tei_path = excluded.tei_path`,
		ref.UploadID, session, ref.FileName, ref.Title, ref.TEIPath,
		c.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording article %s: %w", ref.UploadID, err)
	}
	return nil
}

// SaveSummary attaches the latest summary to a recorded article.
func (c *Catalog) SaveSummary(ctx context.Context, uploadID, summary string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE articles SET summary = ?, summarized_at = ? WHERE upload_id = ?`,
		summary, c.now().UTC().Format(time.RFC3339Nano), uploadID)
	if err != nil {
		return fmt.Errorf("saving summary for %s: %w", uploadID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saving summary: article %s not recorded", uploadID)
	}
	return nil
}

const selectColumns = `a.upload_id, a.session, a.file_name, a.title, a.tei_path, a.summary, a.created_at, a.summarized_at`

// List returns the most recent articles first.
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM articles a ORDER BY a.created_at DESC, a.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	return scanEntries(rows)
}

// Search finds articles whose title or summary match query. With FTS5 the
// results are ranked by relevance; every query term must match.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return c.List(ctx, limit)
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if c.fts {
		rows, err = c.db.QueryContext(ctx,
			`SELECT `+selectColumns+`
			FROM articles_fts
			JOIN articles a ON a.rowid = articles_fts.rowid
			WHERE articles_fts MATCH ?
			ORDER BY articles_fts.rank
			LIMIT ?`, ftsQuery(terms), limit)
	} else {
		var (
			where []string
			args  []any
		)
		for _, t := range terms {
			where = append(where, `(a.title LIKE ? OR a.summary LIKE ?)`)
			like := "%" + t + "%"
			args = append(args, like, like)
		}
		args = append(args, limit)
		rows, err = c.db.QueryContext(ctx,
			`SELECT `+selectColumns+` FROM articles a WHERE `+strings.Join(where, " AND ")+
				` ORDER BY a.created_at DESC LIMIT ?`, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	return scanEntries(rows)
}

// ftsQuery quotes each term so user input cannot use FTS5 query syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			created    string
			summarized sql.NullString
		)
		if err := rows.Scan(&e.UploadID, &e.Session, &e.FileName, &e.Title, &e.TEIPath, &e.Summary, &created, &summarized); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if summarized.Valid {
			if t, err := time.Parse(time.RFC3339Nano, summarized.String); err == nil {
				e.SummarizedAt = &t
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
