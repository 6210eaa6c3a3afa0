package factory

import (
	"path/filepath"
	"testing"

	"github.com/loykin/appwatch/internal/history"
	"github.com/loykin/appwatch/internal/history/file"
	"github.com/loykin/appwatch/internal/history/sqlstore"
)

func TestNewStoreFromDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		dsn      string
		wantType string
		wantErr  bool
	}{
		{name: "bare directory", dsn: filepath.Join(dir, "state"), wantType: "file"},
		{name: "file scheme", dsn: "file://" + filepath.Join(dir, "state2"), wantType: "file"},
		{name: "sqlite", dsn: "sqlite://" + filepath.Join(dir, "h.db"), wantType: "sql"},
		{name: "empty", dsn: "  ", wantErr: true},
		{name: "unsupported", dsn: "redis://localhost:6379", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStoreFromDSN(tt.dsn, history.Options{})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer func() { _ = s.Close() }()
			switch tt.wantType {
			case "file":
				if _, ok := s.(*file.Store); !ok {
					t.Fatalf("expected *file.Store, got %T", s)
				}
			case "sql":
				if _, ok := s.(*sqlstore.Store); !ok {
					t.Fatalf("expected *sqlstore.Store, got %T", s)
				}
			}
		})
	}
}
