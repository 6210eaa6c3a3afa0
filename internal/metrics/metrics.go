package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appwatch",
			Name:      "checks_total",
			Help:      "Platform checks by final result (first_observation, unchanged, changed, failed).",
		}, []string{"platform", "result"},
	)
	changes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appwatch",
			Name:      "changes_total",
			Help:      "Number of detected version changes.",
		}, []string{"platform"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appwatch",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Sink deliveries by result (ok, error).",
		}, []string{"sink", "result"},
	)
	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appwatch",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching one storefront observation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"},
	)
	historyLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appwatch",
			Subsystem: "history",
			Name:      "length",
			Help:      "Records kept in the platform history after the last run.",
		}, []string{"platform"},
	)
	lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "appwatch",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful check per platform.",
		}, []string{"platform"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{checks, changes, notifications, fetchDuration, historyLength, lastSuccess}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes the gathered metrics for the node_exporter textfile collector.
// The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Push sends the gathered metrics to a Pushgateway under job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(g).PushContext(ctx)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveCheck(platform, result string) {
	if regOK.Load() {
		checks.WithLabelValues(platform, result).Inc()
	}
}

func IncChange(platform string) {
	if regOK.Load() {
		changes.WithLabelValues(platform).Inc()
	}
}

func IncNotification(sink string, ok bool) {
	if regOK.Load() {
		result := "ok"
		if !ok {
			result = "error"
		}
		notifications.WithLabelValues(sink, result).Inc()
	}
}

func ObserveFetchDuration(platform string, d time.Duration) {
	if regOK.Load() {
		fetchDuration.WithLabelValues(platform).Observe(d.Seconds())
	}
}

func SetHistoryLength(platform string, n int) {
	if regOK.Load() {
		historyLength.WithLabelValues(platform).Set(float64(n))
	}
}

func SetLastSuccess(platform string, t time.Time) {
	if regOK.Load() {
		lastSuccess.WithLabelValues(platform).Set(float64(t.Unix()))
	}
}
