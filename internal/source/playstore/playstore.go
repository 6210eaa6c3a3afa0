// Package playstore scrapes the Google Play listing page.
package playstore

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/loykin/appwatch/internal/source"
	"github.com/loykin/appwatch/internal/version"
)

// The listing embeds its data in script arrays; the HTML fallbacks cover older markup.
var (
	versionRe         = regexp.MustCompile(`\[\["([^"]+\d+-\d+)"\]\]`)
	versionFallbackRe = regexp.MustCompile(`(\d+\.\d+\.\d+-\d+)`)
	dateRe            = regexp.MustCompile(`\["(\d{1,2}\s+\w+\s+\d{4})",\[`)
	dateFallbackRe    = regexp.MustCompile(`(?i)Updated.*?(\d{1,2}\s+\w+\s+\d{4})`)
	notesRe           = regexp.MustCompile(`\[null,"([^"]+)"\],\["\d{1,2}\s+\w+\s+\d{4}"`)
	notesFallbackRe   = regexp.MustCompile(`(?i)What(?:'|&#39;|&#x27;|’)s\s+new(?:\s*<[^>]+>)*\s*([^<]+)`)
	digitsRe          = regexp.MustCompile(`^\d+$`)
)

// minNotesLength filters out labels and counters that match the notes pattern.
const minNotesLength = 10

// Source observes one Play Store listing.
type Source struct {
	client *http.Client
	url    string
	log    *slog.Logger
}

func New(pageURL string, client *http.Client, log *slog.Logger) *Source {
	if client == nil {
		client = source.NewHTTPClient(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{client: client, url: pageURL, log: log.With("platform", version.Android)}
}

func (s *Source) Platform() version.Platform { return version.Android }

func (s *Source) Fetch(ctx context.Context) (version.Observation, error) {
	page, err := source.Get(ctx, s.client, s.url, source.WindowsUserAgent)
	if err != nil {
		return version.Observation{}, source.Errorf("play store page: %v", err)
	}
	obs, ok := Parse(string(page))
	if !ok {
		return version.Observation{}, source.Errorf("play store page: no version found")
	}
	if obs.ReleaseNotes == version.NotesUnavailable {
		s.log.Debug("play store listing has no release notes")
	}
	return obs, nil
}

// Parse extracts an observation from a listing page. ok is false when no version is present.
// Missing notes become version.NotesUnavailable.
func Parse(page string) (obs version.Observation, ok bool) {
	m := versionRe.FindStringSubmatch(page)
	if m == nil {
		m = versionFallbackRe.FindStringSubmatch(page)
	}
	if m == nil {
		return version.Observation{}, false
	}
	obs.Version = m[1]

	if d := dateRe.FindStringSubmatch(page); d != nil {
		obs.ReleaseDate = d[1]
	} else if d := dateFallbackRe.FindStringSubmatch(page); d != nil {
		obs.ReleaseDate = d[1]
	}

	if n := notesRe.FindStringSubmatch(page); n != nil {
		notes := strings.TrimSpace(unescapeJS(n[1]))
		if utf8.RuneCountInString(notes) >= minNotesLength && !digitsRe.MatchString(notes) {
			obs.ReleaseNotes = notes
		}
	} else if n := notesFallbackRe.FindStringSubmatch(page); n != nil {
		obs.ReleaseNotes = strings.TrimSpace(html.UnescapeString(n[1]))
	}
	if obs.ReleaseNotes == "" {
		obs.ReleaseNotes = version.NotesUnavailable
	}
	return obs, true
}

// unescapeJS decodes \uXXXX and \n style escapes from a script string literal.
func unescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
