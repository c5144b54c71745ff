// Package recordstore persists decision records.
//
// Backends: memory, sqlite, postgres and notion. Calls are never retried;
// a failed create may or may not have been applied by the backend.
package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/fyrsmithlabs/decisiond/internal/decision"
)

// Store is durable keyed storage of decision records.
type Store interface {
	// Create stores a new record and returns its id.
	Create(ctx context.Context, f decision.Fields) (string, error)
	// List returns every record.
	List(ctx context.Context) ([]decision.Record, error)
	// Update writes the set fields of f over record id.
	Update(ctx context.Context, id string, f decision.Fields) error
	// Delete removes record id.
	Delete(ctx context.Context, id string) error
	// Link returns a URL for record id, or "" when the backend has none.
	Link(id string) string
}

// NewStore builds the backend selected in cfg. The returned close func
// releases any database handle.
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, func() error, error) {
	nop := func() error { return nil }

	var s Store
	closeFn := nop
	switch cfg.Provider {
	case "memory", "":
		s = NewMemoryStore()
	case "sqlite", "postgres":
		d := SQLite
		if cfg.Provider == "postgres" {
			d = Postgres
		}
		db, err := sql.Open(d.Driver, cfg.DSN)
		if err != nil {
			return nil, nop, fmt.Errorf("opening %s: %w", cfg.Provider, err)
		}
		sqlStore, err := NewSQLStore(ctx, db, d)
		if err != nil {
			_ = db.Close()
			return nil, nop, err
		}
		sqlStore.SetLinkTemplate(cfg.LinkTemplate)
		s = sqlStore
		closeFn = db.Close
	case "notion":
		n, err := NewNotionStore(NotionConfig{
			Token:      cfg.NotionToken.Value(),
			DatabaseID: cfg.NotionDatabaseID,
			BaseURL:    cfg.NotionBaseURL,
		})
		if err != nil {
			return nil, nop, err
		}
		s = n
	default:
		return nil, nop, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}

	return WithTimeout(s, cfg.Timeout.Duration()), closeFn, nil
}

// WithTimeout bounds every call on s by d. A zero d returns s unchanged.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (t *timeoutStore) Create(ctx context.Context, f decision.Fields) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Create(ctx, f)
}

func (t *timeoutStore) List(ctx context.Context) ([]decision.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.List(ctx)
}

func (t *timeoutStore) Update(ctx context.Context, id string, f decision.Fields) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Update(ctx, id, f)
}

func (t *timeoutStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Delete(ctx, id)
}

func (t *timeoutStore) Link(id string) string {
	return t.next.Link(id)
}
