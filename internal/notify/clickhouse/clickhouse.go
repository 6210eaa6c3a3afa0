package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/appwatch/internal/notify"
)

const DefaultTable = "app_version_changes"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures the connection. Zero values fall back to the ClickHouse defaults.
type Options struct {
	Addr     string // host:port of the native protocol
	Database string
	Username string
	Password string
	Table    string
	Timeout  time.Duration
}

// Sink stores change messages in ClickHouse using the official ClickHouse Go client.
// The connection is dialled and the table created on the first Send, so an
// unreachable server surfaces as a delivery failure rather than a startup error.
type Sink struct {
	conn  driver.Conn
	addr  string
	table string

	mu    sync.Mutex
	ready bool
}

func New(o Options) (*Sink, error) {
	if o.Addr == "" {
		o.Addr = "localhost:9000"
	}
	if o.Database == "" {
		o.Database = "default"
	}
	if o.Username == "" {
		o.Username = "default"
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if o.Timeout <= 0 {
		o.Timeout = notify.DefaultTimeout
	}
	if !identRe.MatchString(o.Table) {
		return nil, fmt.Errorf("invalid ClickHouse table name %q", o.Table)
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{o.Addr},
		Auth: clickhouse.Auth{
			Database: o.Database,
			Username: o.Username,
			Password: o.Password,
		},
		DialTimeout: o.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure ClickHouse: %w", err)
	}
	return &Sink{conn: conn, addr: o.Addr, table: o.Table}, nil
}

func (s *Sink) Name() string { return "clickhouse:" + s.addr + "/" + s.table }

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			id String,
			platform LowCardinality(String),
			app_name String,
			old_version String,
			new_version String,
			release_date String,
			release_notes String,
			previous_release_notes String,
			occurred_at DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (platform, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse table: %w", err)
	}
	s.ready = true
	return nil
}

func (s *Sink) Send(ctx context.Context, m notify.Message) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, platform, app_name, old_version, new_version, release_date, release_notes, previous_release_notes, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, query,
		m.ID,
		string(m.Platform),
		m.AppName,
		m.OldVersion,
		m.NewVersion,
		m.ReleaseDate,
		m.ReleaseNotes,
		m.PreviousReleaseNotes,
		m.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert change into ClickHouse: %w", err)
	}
	return nil
}
