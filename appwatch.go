package appwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/appwatch/internal/config"
	"github.com/loykin/appwatch/internal/history"
	hfactory "github.com/loykin/appwatch/internal/history/factory"
	"github.com/loykin/appwatch/internal/metrics"
	"github.com/loykin/appwatch/internal/notify"
	nfactory "github.com/loykin/appwatch/internal/notify/factory"
	"github.com/loykin/appwatch/internal/runner"
	"github.com/loykin/appwatch/internal/source"
	"github.com/loykin/appwatch/internal/source/appstore"
	"github.com/loykin/appwatch/internal/source/playstore"
	"github.com/loykin/appwatch/internal/version"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Report = runner.Report

type Result = runner.Result

type Record = version.Record

type Platform = version.Platform

type Sink = notify.Sink

type Document = history.Document

type Message = notify.Message

const (
	IOS     = version.IOS
	Android = version.Android
)

// ErrAllFailed is returned by Check when no platform could be fetched.
var ErrAllFailed = errors.New("all platforms failed to fetch")

// LoadConfig reads an optional TOML file plus environment overrides.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// LoadEnv applies a .env file to the process environment without overriding existing variables.
func LoadEnv(path string, required bool) ([]string, error) {
	return config.ApplyEnvFile(path, required)
}

// ParsePlatform accepts "ios" or "android".
func ParsePlatform(s string) (Platform, error) { return version.ParsePlatform(s) }

// registry holds only this tool's collectors so textfile exports do not clash
// with the node_exporter's own go_* series.
var registry = prometheus.NewRegistry()

// Watcher wires configuration into sources, history, sinks and the runner.
type Watcher struct {
	cfg    Config
	store  history.Store
	sinks  []notify.Sink
	runner *runner.Runner
	log    *slog.Logger
}

// New builds a Watcher. extra sinks are appended to the configured ones.
func New(cfg Config, log *slog.Logger, extra ...Sink) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	store, err := hfactory.NewStoreFromDSN(cfg.History.DSN, history.Options{
		Retention: cfg.History.Retention,
		Prefix:    cfg.History.Prefix,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	sinks, err := nfactory.NewSinks(cfg.Notify.Sinks, cfg.Notify.Timeout)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sinks = append(sinks, extra...)

	sources, err := buildSources(cfg, log)
	if err != nil {
		nfactory.CloseSinks(sinks)
		_ = store.Close()
		return nil, err
	}

	n := notify.New(notify.Config{
		AppName:   cfg.AppName,
		Username:  cfg.Notify.Username,
		AvatarURL: cfg.Notify.AvatarURL,
		Footer:    cfg.AppName + " App Watcher",
		Timeout:   cfg.Notify.Timeout,
	}, sinks, log)

	return &Watcher{
		cfg:    cfg,
		store:  store,
		sinks:  sinks,
		runner: runner.New(sources, store, n, runner.Options{SkipUnchanged: cfg.History.SkipUnchanged, Logger: log}),
		log:    log,
	}, nil
}

func buildSources(cfg Config, log *slog.Logger) ([]source.Source, error) {
	client := source.NewHTTPClient(cfg.FetchTimeout)
	var out []source.Source
	if cfg.Platforms.IOS.Enabled {
		s, err := appstore.New(cfg.Platforms.IOS.URL, cfg.Platforms.IOS.LookupURL, client, log)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Platforms.Android.Enabled {
		out = append(out, playstore.New(cfg.Platforms.Android.URL, client, log))
	}
	return out, nil
}

// Check runs every enabled platform once and exports metrics.
// It fails when history could not be persisted or when every platform failed to fetch.
func (w *Watcher) Check(ctx context.Context) (Report, error) {
	rep, err := w.runner.Run(ctx)
	w.exportMetrics(ctx)
	if err != nil {
		return rep, err
	}
	if rep.AllFailed() {
		return rep, ErrAllFailed
	}
	return rep, nil
}

// History returns the stored records for p, newest first.
func (w *Watcher) History(ctx context.Context, p Platform) []Record {
	return w.store.Load(ctx, p).Records()
}

// Document returns the history of p in its persisted shape.
func (w *Watcher) Document(ctx context.Context, p Platform) Document {
	recs := w.History(ctx, p)
	if recs == nil {
		recs = []Record{}
	}
	d := Document{Platform: p, History: recs}
	if len(recs) > 0 {
		d.LastUpdated = recs[0].ObservedAt
	}
	return d
}

func (w *Watcher) exportMetrics(ctx context.Context) {
	if path := w.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, registry); err != nil {
			w.log.Warn("failed to write metrics textfile", "path", path, "error", err)
		}
	}
	if url := w.cfg.Metrics.Pushgateway; url != "" {
		if err := metrics.Push(ctx, url, w.cfg.Metrics.Job, registry); err != nil {
			w.log.Warn("failed to push metrics", "error", err)
		}
	}
}

// Close releases the history store and sink connections.
func (w *Watcher) Close() error {
	nfactory.CloseSinks(w.sinks)
	return w.store.Close()
}
