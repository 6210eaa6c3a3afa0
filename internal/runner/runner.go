// Package runner drives one check of every configured storefront.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/appwatch/internal/detect"
	"github.com/loykin/appwatch/internal/history"
	"github.com/loykin/appwatch/internal/metrics"
	"github.com/loykin/appwatch/internal/notify"
	"github.com/loykin/appwatch/internal/source"
	"github.com/loykin/appwatch/internal/version"
)

// Phase is a step of one platform check.
type Phase string

const (
	PhaseFetching   Phase = "Fetching"
	PhaseDetecting  Phase = "Detecting"
	PhaseNotifying  Phase = "Notifying"
	PhasePersisting Phase = "Persisting"
	PhaseDone       Phase = "Done"
	PhaseFailed     Phase = "Failed"
)

// Result describes how one platform check ended.
type Result struct {
	Platform       version.Platform      `json:"platform"`
	Phase          Phase                 `json:"phase"`               // Done or Failed
	FailedAt       Phase                 `json:"failed_at,omitempty"` // phase that failed
	Classification detect.Classification `json:"classification,omitempty"`
	Previous       string                `json:"previous_version,omitempty"`
	Version        string                `json:"version,omitempty"`
	ReleaseDate    string                `json:"release_date,omitempty"`
	Notification   string                `json:"notification,omitempty"`
	Persisted      bool                  `json:"persisted"`
	HistoryLength  int                   `json:"history_length"`
	Error          string                `json:"error,omitempty"`
	StartTime      time.Time             `json:"start_time"`
	CompletionTime time.Time             `json:"completion_time"`

	outcome notify.Outcome
}

// Outcome returns the notification outcome; its Status is skipped unless the version changed.
func (r Result) Outcome() notify.Outcome { return r.outcome }

// Report is the summary of one run.
type Report struct {
	RunID          string    `json:"run_id"`
	StartTime      time.Time `json:"start_time"`
	CompletionTime time.Time `json:"completion_time"`
	Results        []Result  `json:"results"`
}

// AllFailed reports whether every platform failed while fetching.
func (r Report) AllFailed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Phase != PhaseFailed || res.FailedAt != PhaseFetching {
			return false
		}
	}
	return true
}

// Options tune a Runner.
type Options struct {
	// SkipUnchanged avoids appending a record when the version did not change.
	// Off by default: every successful observation is recorded.
	SkipUnchanged bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// Runner checks each source in order, one after another.
type Runner struct {
	sources  []source.Source
	store    history.Store
	notifier *notify.Notifier
	opts     Options
	log      *slog.Logger
}

func New(sources []source.Source, store history.Store, n *notify.Notifier, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if n == nil {
		n = notify.New(notify.Config{}, nil, log)
	}
	return &Runner{sources: sources, store: store, notifier: n, opts: opts, log: log}
}

// Run checks every platform once. A platform failing never stops the others.
// The error is non-nil only when history could not be persisted.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.Must(uuid.NewV7()).String(), StartTime: r.opts.Now().UTC()}
	log := r.log.With("run_id", rep.RunID)
	log.Info("run started", "platforms", len(r.sources), "sinks", r.notifier.Sinks())

	var errs []error
	for _, src := range r.sources {
		res, err := r.check(ctx, log.With("platform", src.Platform()), src)
		rep.Results = append(rep.Results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	rep.CompletionTime = r.opts.Now().UTC()

	failed := 0
	for _, res := range rep.Results {
		if res.Phase == PhaseFailed {
			failed++
		}
	}
	log.Info("run finished", "platforms", len(rep.Results), "failed", failed, "duration", rep.CompletionTime.Sub(rep.StartTime))
	return rep, errors.Join(errs...)
}

func (r *Runner) check(ctx context.Context, log *slog.Logger, src source.Source) (Result, error) {
	p := src.Platform()
	res := Result{Platform: p, Phase: PhaseFetching, StartTime: r.opts.Now().UTC()}
	fail := func(at Phase, err error) {
		res.Phase, res.FailedAt, res.Error = PhaseFailed, at, err.Error()
		res.CompletionTime = r.opts.Now().UTC()
		metrics.ObserveCheck(string(p), "failed")
	}

	start := time.Now()
	obs, err := src.Fetch(ctx)
	metrics.ObserveFetchDuration(string(p), time.Since(start))
	if err == nil {
		var rec version.Record
		if rec, err = version.NewRecord(obs, r.opts.Now()); err == nil {
			return r.process(ctx, log, res, rec)
		}
		err = fmt.Errorf("%w: %v", source.ErrFetch, err)
	}
	log.Error("failed to fetch version information", "error", err)
	fail(PhaseFetching, err)
	return res, nil
}

func (r *Runner) process(ctx context.Context, log *slog.Logger, res Result, rec version.Record) (Result, error) {
	p := res.Platform
	res.Version, res.ReleaseDate = rec.Version, rec.ReleaseDate
	log.Info("current version", "version", rec.Version, "release_date", rec.ReleaseDate)

	res.Phase = PhaseDetecting
	hist := r.store.Load(ctx, p)
	ch := detect.Detect(p, rec, hist)
	res.Classification = ch.Classification
	res.HistoryLength = hist.Len()
	if ch.Old != nil {
		res.Previous = ch.Old.Version
		log.Debug("last checked", "version", ch.Old.Version, "at", ch.Old.ObservedAt)
	}

	switch ch.Classification {
	case detect.FirstObservation:
		log.Info("first observation, saving baseline version")
	case detect.Unchanged:
		log.Info("no version change detected")
	case detect.Changed:
		log.Warn("version changed", "old", res.Previous, "new", rec.Version)
		metrics.IncChange(string(p))
		res.Phase = PhaseNotifying
		res.outcome = r.notifier.Notify(ctx, ch)
		res.Notification = res.outcome.String()
	}

	res.Phase = PhasePersisting
	if r.opts.SkipUnchanged && ch.Classification == detect.Unchanged {
		log.Debug("unchanged version not appended")
	} else {
		h, err := r.store.Append(ctx, p, rec)
		if err != nil {
			log.Error("failed to persist history", "error", err)
			res.Phase, res.FailedAt, res.Error = PhaseFailed, PhasePersisting, err.Error()
			res.CompletionTime = r.opts.Now().UTC()
			metrics.ObserveCheck(string(p), "failed")
			return res, fmt.Errorf("%s: %w", p, err)
		}
		res.Persisted = true
		res.HistoryLength = h.Len()
		metrics.SetHistoryLength(string(p), h.Len())
	}

	res.Phase = PhaseDone
	res.CompletionTime = r.opts.Now().UTC()
	metrics.ObserveCheck(string(p), string(ch.Classification))
	metrics.SetLastSuccess(string(p), res.CompletionTime)
	return res, nil
}
