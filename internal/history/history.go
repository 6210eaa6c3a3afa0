package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/appwatch/internal/version"
)

// ErrStorage marks failures that prevent persisting history at all.
// Everything else (missing or corrupt data) degrades to an empty history.
var ErrStorage = errors.New("history storage failure")

// Store persists the per-platform version history.
// There is a single reader/writer per run; implementations need no locking.
type Store interface {
	// Load returns the stored history. Missing or unreadable data yields an empty history.
	Load(ctx context.Context, p version.Platform) version.History
	// Latest returns the newest record, or false when none is stored.
	Latest(ctx context.Context, p version.Platform) (version.Record, bool)
	// Append prepends rec, truncates to the retention cap and persists atomically.
	// Backends may build on the history returned by the preceding Load.
	Append(ctx context.Context, p version.Platform, rec version.Record) (version.History, error)
	Close() error
}

// Document is the persisted shape of one platform's history.
type Document struct {
	Platform    version.Platform `json:"platform" yaml:"platform"`
	LastUpdated time.Time        `json:"last_updated" yaml:"last_updated"`
	History     []version.Record `json:"history" yaml:"history"`
}

// Options are shared by all backends.
type Options struct {
	Retention int              // records kept per platform (version.DefaultRetention when < 1)
	Prefix    string           // file name prefix for the file backend (default "tesla")
	Logger    *slog.Logger     // nil means slog.Default()
	Now       func() time.Time // clock for last_updated; nil means time.Now
}

// DefaultPrefix is the file backend's default name prefix.
const DefaultPrefix = "tesla"

func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) Clock() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o Options) FilePrefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}
