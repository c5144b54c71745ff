package recordstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each pooled connection would get its own in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLStore(context.Background(), db, SQLite)
	require.NoError(t, err)

	// Distinct created_at values keep List ordering deterministic.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return s
}

func TestSQLStore_SQLite(t *testing.T) {
	exerciseStore(t, newSQLiteStore(t))
}

func TestSQLStore_Link(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, decision.Fields{Title: decision.String("Use Postgres")})
	require.NoError(t, err)
	assert.Empty(t, s.Link(id))

	s.SetLinkTemplate("https://decisions.example.com/records/{id}")
	assert.Equal(t, "https://decisions.example.com/records/"+id, s.Link(id))
	assert.Equal(t, "https://decisions.example.com/records/a%2Fb", s.Link("a/b"))
	assert.Empty(t, s.Link(""))
}

func TestSQLStore_SQLiteTruncatesTitle(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	long := "A very long decision title that keeps going well beyond the eighty character limit set for titles"
	id, err := s.Create(ctx, decision.Fields{Title: decision.String(long)})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, id, decision.Fields{Title: decision.String(long + " again")}))
	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(records[0].Title)), decision.MaxTitleLen)
}

func TestSQLStore_EmptyUpdateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS decisions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, Postgres)
	require.NoError(t, err)

	assert.NoError(t, s.Update(context.Background(), "id-1", decision.Fields{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS decisions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(ctx, db, Postgres)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO decisions (id, title, summary, tag, source_thread, source_channel, recorded_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WithArgs(sqlmock.AnyArg(), "Use React", "Adopted React.", "frontend", "", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := s.Create(ctx, decision.Fields{
		Title:   decision.String("Use React"),
		Summary: decision.String("Adopted React."),
		Tag:     decision.String("frontend"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE decisions SET summary = $1, tag = $2 WHERE id = $3")).
		WithArgs("Next.js now.", "frontend", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(ctx, "id-1", decision.Fields{
		Summary: decision.String("Next.js now."),
		Tag:     decision.String("frontend"),
	}))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM decisions WHERE id = $1")).
		WithArgs("id-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Delete(ctx, "id-2"), decision.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, summary, tag, source_thread, source_channel, recorded_at FROM decisions")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "summary", "tag", "source_thread", "source_channel", "recorded_at"}).
			AddRow("id-1", "Use React", "Next.js now.", "frontend", "1700.1", "C1", "2024-01-02T03:04:05.000000000Z").
			AddRow("id-3", "Old", "", "", "", "", ""))

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), records[0].RecordedAt)
	assert.True(t, records[1].RecordedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLStore(context.Background(), db, Postgres)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO decisions").WillReturnError(sql.ErrConnDone)
	_, err = s.Create(context.Background(), decision.Fields{Title: decision.String("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
