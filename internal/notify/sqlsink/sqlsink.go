package sqlsink

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/loykin/appwatch/internal/notify"
	"github.com/loykin/appwatch/internal/sqldb"
)

// Sink appends one row per change message to the version_changes table.
// It supports SQLite and Postgres based on DSN; the schema is created on first Send.
type Sink struct {
	db      *sql.DB
	dialect sqldb.Dialect
	name    string

	mu    sync.Mutex
	ready bool
}

func New(dsn string) (*Sink, error) {
	db, dialect, err := sqldb.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &Sink{db: db, dialect: dialect, name: sinkName(dialect, dsn)}, nil
}

func sinkName(d sqldb.Dialect, dsn string) string {
	if d == sqldb.SQLite {
		return "sqlite:" + strings.TrimSpace(dsn)[len("sqlite://"):]
	}
	if u, err := url.Parse(strings.TrimSpace(dsn)); err == nil {
		return "postgres:" + u.Host + u.Path
	}
	return "postgres"
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	stmt := `CREATE TABLE IF NOT EXISTS version_changes(
		` + sqldb.SerialPK(s.dialect) + `,
		message_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		app_name TEXT NOT NULL,
		old_version TEXT NOT NULL,
		new_version TEXT NOT NULL,
		release_date TEXT NOT NULL,
		release_notes TEXT NOT NULL,
		previous_release_notes TEXT NOT NULL,
		occurred_at TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure version_changes schema: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Sink) Send(ctx context.Context, m notify.Message) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, sqldb.Rebind(s.dialect, `
		INSERT INTO version_changes(message_id, platform, app_name, old_version, new_version,
			release_date, release_notes, previous_release_notes, occurred_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`),
		m.ID, string(m.Platform), m.AppName, m.OldVersion, m.NewVersion,
		m.ReleaseDate, m.ReleaseNotes, m.PreviousReleaseNotes, m.Timestamp.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
