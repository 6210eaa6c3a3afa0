package version

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRetention is the number of records kept per platform.
const DefaultRetention = 10

// NotesUnavailable is the marker a source stores when a storefront exposes no release notes.
const NotesUnavailable = "No release notes available on Play Store"

// ErrMissingVersion is returned when an observation carries no version token.
var ErrMissingVersion = errors.New("observation has no version")

// Platform identifies a storefront.
type Platform string

const (
	IOS     Platform = "ios"
	Android Platform = "android"
)

// Platforms lists the supported platforms in check order.
var Platforms = []Platform{IOS, Android}

// Label returns the human readable platform name.
func (p Platform) Label() string {
	switch p {
	case IOS:
		return "iOS"
	case Android:
		return "Android"
	default:
		return string(p)
	}
}

// ParsePlatform accepts "ios" or "android" in any case.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case IOS:
		return IOS, nil
	case Android:
		return Android, nil
	}
	return "", fmt.Errorf("unknown platform %q (want ios or android)", s)
}

// Observation is one raw snapshot produced by a source.
type Observation struct {
	Version      string `json:"version"`
	ReleaseDate  string `json:"release_date"`
	ReleaseNotes string `json:"release_notes"`
}

// Record is one persisted observation. ReleaseDate is a display string and is never parsed.
// ObservedAt is when this tool recorded the observation, not the vendor publish time.
type Record struct {
	Version      string    `json:"version" yaml:"version"`
	ReleaseNotes string    `json:"release_notes" yaml:"release_notes"`
	ReleaseDate  string    `json:"release_date" yaml:"release_date"`
	ObservedAt   time.Time `json:"last_checked" yaml:"last_checked"`
}

// Valid reports whether the record may be persisted.
func (r Record) Valid() bool { return strings.TrimSpace(r.Version) != "" }

// NewRecord turns an observation into a record stamped with observedAt.
// The version token is kept byte-for-byte; only a blank token is rejected.
func NewRecord(obs Observation, observedAt time.Time) (Record, error) {
	rec := Record{
		Version:      obs.Version,
		ReleaseNotes: obs.ReleaseNotes,
		ReleaseDate:  obs.ReleaseDate,
		ObservedAt:   observedAt.UTC(),
	}
	if !rec.Valid() {
		return Record{}, ErrMissingVersion
	}
	return rec, nil
}

// HasNotes reports whether notes carry real content.
func HasNotes(notes string) bool {
	return notes != "" && notes != NotesUnavailable
}
