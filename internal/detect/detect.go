package detect

import "github.com/loykin/appwatch/internal/version"

// Classification is the verdict for one observation.
type Classification string

const (
	FirstObservation Classification = "first_observation"
	Unchanged        Classification = "unchanged"
	Changed          Classification = "changed"
)

// Change is derived per run and never persisted.
// Old is nil exactly when Classification is FirstObservation.
type Change struct {
	Platform       version.Platform
	Classification Classification
	Old            *version.Record
	New            version.Record
}

// Notify reports whether the change should be sent to sinks.
func (c Change) Notify() bool { return c.Classification == Changed }

// Detect compares rec with the head of h. Version tokens are compared byte for
// byte: whitespace, case and build suffixes all count as differences.
func Detect(p version.Platform, rec version.Record, h version.History) Change {
	c := Change{Platform: p, New: rec}
	old, ok := h.Latest()
	switch {
	case !ok:
		c.Classification = FirstObservation
	case old.Version == rec.Version:
		c.Classification = Unchanged
		c.Old = &old
	default:
		c.Classification = Changed
		c.Old = &old
	}
	return c
}
