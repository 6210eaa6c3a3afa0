package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/appwatch/internal/detect"
	"github.com/loykin/appwatch/internal/metrics"
)

// Sink is a destination for change notifications.
// Name must not leak secrets embedded in the endpoint (webhook tokens, passwords).
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// Status summarises one fan-out.
type Status string

const (
	StatusSkipped      Status = "skipped"
	StatusNoSinks      Status = "no-sinks"
	StatusAllSucceeded Status = "all-succeeded"
	StatusPartial      Status = "partial"
	StatusAllFailed    Status = "all-failed"
)

// SinkFailure records one failed delivery.
type SinkFailure struct {
	Sink string
	Err  error
}

// Outcome is the aggregate result of Notify. It is informational only.
type Outcome struct {
	Skipped   bool
	Total     int
	Delivered int
	Failures  []SinkFailure
}

func (o Outcome) Status() Status {
	switch {
	case o.Skipped:
		return StatusSkipped
	case o.Total == 0:
		return StatusNoSinks
	case o.Delivered == o.Total:
		return StatusAllSucceeded
	case o.Delivered == 0:
		return StatusAllFailed
	default:
		return StatusPartial
	}
}

func (o Outcome) String() string {
	switch st := o.Status(); st {
	case StatusSkipped:
		return "skipped: no change"
	case StatusNoSinks:
		return "no sinks configured"
	case StatusAllSucceeded:
		return fmt.Sprintf("%s: %d/%d delivered", st, o.Delivered, o.Total)
	default:
		return fmt.Sprintf("%s: %d/%d delivered, %d/%d failed", st, o.Delivered, o.Total, len(o.Failures), o.Total)
	}
}

// Notifier fans a change out to every configured sink.
// Sinks are tried one after another; a failure never stops the remaining deliveries.
type Notifier struct {
	cfg   Config
	sinks []Sink
	log   *slog.Logger
	now   func() time.Time
}

func New(cfg Config, sinks []Sink, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{cfg: cfg.withDefaults(), sinks: sinks, log: log, now: time.Now}
}

// Sinks returns the number of configured sinks.
func (n *Notifier) Sinks() int { return len(n.sinks) }

// Notify delivers a Changed event. Other classifications are skipped.
func (n *Notifier) Notify(ctx context.Context, c detect.Change) Outcome {
	if !c.Notify() {
		return Outcome{Skipped: true}
	}
	if len(n.sinks) == 0 {
		n.log.Info("no sinks configured, skipping notification", "platform", c.Platform)
		return Outcome{}
	}
	m := BuildMessage(c, n.cfg, n.now())
	out := Outcome{Total: len(n.sinks)}
	for _, s := range n.sinks {
		err := n.deliver(ctx, s, m)
		metrics.IncNotification(s.Name(), err == nil)
		if err != nil {
			out.Failures = append(out.Failures, SinkFailure{Sink: s.Name(), Err: err})
			n.log.Warn("notification failed", "platform", c.Platform, "sink", s.Name(), "error", err)
			continue
		}
		out.Delivered++
		n.log.Debug("notification sent", "platform", c.Platform, "sink", s.Name())
	}
	lvl := slog.LevelInfo
	if out.Status() != StatusAllSucceeded {
		lvl = slog.LevelWarn
	}
	n.log.Log(ctx, lvl, "notification fan-out finished", "platform", c.Platform, "message_id", m.ID, "outcome", out.String())
	return out
}

func (n *Notifier) deliver(ctx context.Context, s Sink, m Message) (err error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Send(ctx, m)
}
