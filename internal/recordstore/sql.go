package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/google/uuid"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect captures the differences between supported SQL databases.
type Dialect struct {
	Name   string
	Driver string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder func(n int) string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		Placeholder: func(int) string { return "?" },
	}
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	tag TEXT NOT NULL DEFAULT '',
	source_thread TEXT NOT NULL DEFAULT '',
	source_channel TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`

// SQLStore stores records in a single decisions table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	link    string
}

// NewSQLStore creates the decisions table if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, d Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("migrating %s store: %w", d.Name, err)
	}
	return s, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func (s *SQLStore) Create(ctx context.Context, f decision.Fields) (string, error) {
	r := f.Apply(decision.Record{ID: uuid.NewString()})
	p := s.dialect.Placeholder

	query := fmt.Sprintf(`INSERT INTO decisions (id, title, summary, tag, source_thread, source_channel, recorded_at, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8))

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Title, r.Summary, r.Tag, r.SourceThread, r.SourceChannel, formatTime(r.RecordedAt), formatTime(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert decision: %w", err)
	}
	return r.ID, nil
}

func (s *SQLStore) List(ctx context.Context) ([]decision.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, tag, source_thread, source_channel, recorded_at FROM decisions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []decision.Record
	for rows.Next() {
		var r decision.Record
		var recordedAt string
		if err := rows.Scan(&r.ID, &r.Title, &r.Summary, &r.Tag, &r.SourceThread, &r.SourceChannel, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if recordedAt != "" {
			if r.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
				return nil, fmt.Errorf("decision %s: bad recorded_at %q: %w", r.ID, recordedAt, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, f decision.Fields) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+s.dialect.Placeholder(len(args)))
	}
	if f.Title != nil {
		add("title", decision.TruncateTitle(*f.Title))
	}
	if f.Summary != nil {
		add("summary", *f.Summary)
	}
	if f.Tag != nil {
		add("tag", *f.Tag)
	}
	if f.SourceThread != nil {
		add("source_thread", *f.SourceThread)
	}
	if f.SourceChannel != nil {
		add("source_channel", *f.SourceChannel)
	}
	if f.RecordedAt != nil {
		add("recorded_at", formatTime(*f.RecordedAt))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := "UPDATE decisions SET " + strings.Join(sets, ", ") + " WHERE id = " + s.dialect.Placeholder(len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update decision: %w", err)
	}
	return requireAffected(res, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE id = "+s.dialect.Placeholder(1), id)
	if err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	return requireAffected(res, id)
}

// SetLinkTemplate sets the URL Link builds for a record. Every "{id}" in
// tmpl is replaced with the escaped record id.
func (s *SQLStore) SetLinkTemplate(tmpl string) {
	s.link = tmpl
}

// Link returns "" until a template is set.
func (s *SQLStore) Link(id string) string {
	if s.link == "" || id == "" {
		return ""
	}
	return strings.ReplaceAll(s.link, "{id}", url.PathEscape(id))
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("decision %s: %w", id, decision.ErrNotFound)
	}
	return nil
}
