package sqldb

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	q := "INSERT INTO t(a, b) VALUES(?, ?)"
	if got := Rebind(SQLite, q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	if got := Rebind(Postgres, q); got != "INSERT INTO t(a, b) VALUES($1, $2)" {
		t.Fatalf("unexpected postgres rebind: %s", got)
	}
}

func TestIsDSN(t *testing.T) {
	for _, dsn := range []string{"sqlite:///tmp/x.db", "Postgres://u@h/db", "postgresql://h/db"} {
		if !IsDSN(dsn) {
			t.Fatalf("expected %q to be a SQL DSN", dsn)
		}
	}
	for _, dsn := range []string{"", "./data", "clickhouse://h:9000", "https://example.com"} {
		if IsDSN(dsn) {
			t.Fatalf("expected %q not to be a SQL DSN", dsn)
		}
	}
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")
	db, dialect, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	if dialect != SQLite {
		t.Fatalf("unexpected dialect %s", dialect)
	}
	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenRejectsUnknown(t *testing.T) {
	if _, _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, _, err := Open("mysql://x"); err == nil {
		t.Fatalf("expected error for unsupported DSN")
	}
	if _, _, err := Open("sqlite://"); err == nil {
		t.Fatalf("expected error for empty sqlite path")
	}
}
