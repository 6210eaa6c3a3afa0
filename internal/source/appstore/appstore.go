// Package appstore reads the Apple App Store through the iTunes lookup API and the store page.
package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/loykin/appwatch/internal/source"
	"github.com/loykin/appwatch/internal/version"
)

const DefaultCountry = "us"

// DateLayout is how release dates from the lookup API are displayed.
const DateLayout = "02 Jan 2006"

var (
	appIDRe   = regexp.MustCompile(`/id(\d+)`)
	countryRe = regexp.MustCompile(`^[a-z]{2}$`)
	versionRe = regexp.MustCompile(`Version \d+\.\d+(?:\.\d+)?`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Source observes one App Store listing.
type Source struct {
	client    *http.Client
	pageURL   string
	lookupURL string
	appID     string
	country   string
	log       *slog.Logger
}

// New parses the app id and storefront country out of pageURL
// (https://apps.apple.com/<country>/app/<name>/id<digits>).
func New(pageURL, lookupURL string, client *http.Client, log *slog.Logger) (*Source, error) {
	m := appIDRe.FindStringSubmatch(pageURL)
	if m == nil {
		return nil, source.Errorf("no app id in App Store url %q", pageURL)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, source.Errorf("invalid App Store url: %v", err)
	}
	country := DefaultCountry
	if first, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/"); countryRe.MatchString(first) {
		country = first
	}
	if client == nil {
		client = source.NewHTTPClient(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		client:    client,
		pageURL:   pageURL,
		lookupURL: lookupURL,
		appID:     m[1],
		country:   country,
		log:       log.With("platform", version.IOS),
	}, nil
}

func (s *Source) Platform() version.Platform { return version.IOS }

type lookupResponse struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		Version                   string `json:"version"`
		CurrentVersionReleaseDate string `json:"currentVersionReleaseDate"`
		ReleaseNotes              string `json:"releaseNotes"`
	} `json:"results"`
}

// Fetch asks the lookup API first. The store page then refines the display date
// and fills in notes the API left out; a page failure keeps the API result.
func (s *Source) Fetch(ctx context.Context) (version.Observation, error) {
	q := url.Values{"id": {s.appID}, "country": {s.country}}
	body, err := source.Get(ctx, s.client, s.lookupURL+"?"+q.Encode(), "")
	if err != nil {
		return version.Observation{}, source.Errorf("app store lookup: %v", err)
	}
	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return version.Observation{}, source.Errorf("app store lookup: decode: %v", err)
	}
	if lr.ResultCount == 0 || len(lr.Results) == 0 {
		return version.Observation{}, source.Errorf("app store lookup: no results for id %s", s.appID)
	}
	r := lr.Results[0]
	if strings.TrimSpace(r.Version) == "" {
		return version.Observation{}, source.Errorf("app store lookup: result has no version")
	}
	obs := version.Observation{
		Version:      r.Version,
		ReleaseDate:  formatDate(r.CurrentVersionReleaseDate),
		ReleaseNotes: r.ReleaseNotes,
	}

	page, err := source.Get(ctx, s.client, s.pageURL, source.MacUserAgent)
	if err != nil {
		s.log.Warn("app store page unavailable, using lookup data only", "error", err)
		return obs, nil
	}
	p := scanPage(page)
	if p.date != "" {
		obs.ReleaseDate = p.date
	}
	if obs.ReleaseNotes == "" && p.notes != "" {
		obs.ReleaseNotes = p.notes
	}
	return obs, nil
}

func formatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format(DateLayout)
}

type pageInfo struct {
	date  string // text of the first <time> element
	notes string // first paragraph after the "Version x.y" paragraph
}

// scanPage tokenizes the store page once, collecting the display date and release notes.
func scanPage(b []byte) pageInfo {
	var (
		info        pageInfo
		z           = html.NewTokenizer(bytes.NewReader(b))
		inTime      bool
		inP         bool
		sawVersion  bool
		versionDone bool
		timeText    strings.Builder
		pText       strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return info
		case html.StartTagToken:
			tn, _ := z.TagName()
			switch atom.Lookup(tn) {
			case atom.Time:
				inTime = info.date == ""
				timeText.Reset()
			case atom.P:
				inP = true
				pText.Reset()
			}
		case html.TextToken:
			if inTime {
				timeText.Write(z.Text())
			}
			if inP {
				pText.Write(z.Text())
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			switch atom.Lookup(tn) {
			case atom.Time:
				if inTime {
					info.date = strings.TrimSpace(timeText.String())
					inTime = false
				}
			case atom.P:
				if !inP {
					continue
				}
				inP = false
				t := pText.String()
				switch {
				case versionDone:
				case sawVersion:
					if n := strings.TrimSpace(spaceRe.ReplaceAllString(t, " ")); n != "" {
						info.notes = n
						versionDone = true
					}
				case versionRe.MatchString(t):
					sawVersion = true
				}
			}
		}
		if info.date != "" && versionDone {
			return info
		}
	}
}
