package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/loykin/appwatch/internal/history"
	"github.com/loykin/appwatch/internal/version"
)

// Store keeps one JSON document per platform in a directory.
// File name: <prefix>_app_<platform>_version.json
type Store struct {
	dir  string
	opts history.Options
	log  *slog.Logger

	// loaded holds what the last Load returned so Append does not read the document again.
	loaded map[version.Platform]version.History
}

// New creates the state directory if needed.
func New(dir string, opts history.Options) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	clean := filepath.Clean(dir)
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create state dir %s: %v", history.ErrStorage, clean, err)
	}
	return &Store{
		dir:    clean,
		opts:   opts,
		log:    opts.Log().With("store", "file"),
		loaded: make(map[version.Platform]version.History),
	}, nil
}

// Path returns the document path for p.
func (s *Store) Path(p version.Platform) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_app_%s_version.json", s.opts.FilePrefix(), p))
}

// document accepts both the current shape and the legacy single-record shape
// {version, release_notes, last_checked}.
type document struct {
	history.Document
	Version      string `json:"version"`
	ReleaseNotes string `json:"release_notes"`
	ReleaseDate  string `json:"release_date"`
	LastChecked  string `json:"last_checked"`
}

// legacyTimeLayouts covers RFC 3339 and zone-less ISO 8601 timestamps.
var legacyTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

func parseLegacyTime(s string) time.Time {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *Store) Load(_ context.Context, p version.Platform) version.History {
	h := s.read(p)
	s.loaded[p] = h
	return h
}

func (s *Store) read(p version.Platform) version.History {
	empty := version.NewHistory(s.opts.Retention)
	path := s.Path(p)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("no history yet", "platform", p, "path", path)
		return empty
	}
	if err != nil {
		s.log.Warn("history unreadable, starting empty", "platform", p, "path", path, "error", err)
		return empty
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return empty
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.log.Warn("history corrupt, starting empty", "platform", p, "path", path, "error", err)
		return empty
	}
	if doc.History == nil && doc.Version != "" {
		return version.NewHistory(s.opts.Retention, version.Record{
			Version:      doc.Version,
			ReleaseNotes: doc.ReleaseNotes,
			ReleaseDate:  doc.ReleaseDate,
			ObservedAt:   parseLegacyTime(doc.LastChecked),
		})
	}
	return version.NewHistory(s.opts.Retention, doc.History...)
}

func (s *Store) Latest(ctx context.Context, p version.Platform) (version.Record, bool) {
	return s.Load(ctx, p).Latest()
}

func (s *Store) Append(ctx context.Context, p version.Platform, rec version.Record) (version.History, error) {
	if !rec.Valid() {
		return version.History{}, version.ErrMissingVersion
	}
	base, ok := s.loaded[p]
	if !ok {
		base = s.Load(ctx, p)
	}
	h := base.Prepend(rec)
	doc := history.Document{Platform: p, LastUpdated: s.opts.Clock(), History: h.Records()}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return version.History{}, fmt.Errorf("%w: encode %s: %v", history.ErrStorage, p, err)
	}
	// atomic.WriteFile renames a synced temp file from the same directory over the target.
	if err := atomic.WriteFile(s.Path(p), bytes.NewReader(append(b, '\n'))); err != nil {
		return version.History{}, fmt.Errorf("%w: write %s: %v", history.ErrStorage, p, err)
	}
	s.loaded[p] = h
	return h, nil
}

func (s *Store) Close() error { return nil }
