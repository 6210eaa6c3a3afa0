package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/appwatch/internal/notify"
)

// DefaultIndex receives change documents when the DSN names none.
const DefaultIndex = "app-version-changes"

// Sink indexes change messages into OpenSearch (or Elasticsearch) via HTTP.
// It constructs URL as: baseURL + "/" + index + "/_doc" and POSTs JSON body.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

func New(baseURL, index string, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = notify.DefaultTimeout
	}
	if index == "" {
		index = DefaultIndex
	}
	return &Sink{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
	}
}

// Name omits any userinfo carried in the base URL.
func (s *Sink) Name() string {
	host := s.baseURL
	if u, err := url.Parse(s.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "opensearch:" + host + "/" + s.index
}

type document struct {
	ID                   string `json:"id"`
	Platform             string `json:"platform"`
	AppName              string `json:"app_name"`
	OldVersion           string `json:"old_version"`
	NewVersion           string `json:"new_version"`
	ReleaseDate          string `json:"release_date"`
	ReleaseNotes         string `json:"release_notes,omitempty"`
	PreviousReleaseNotes string `json:"previous_release_notes,omitempty"`
	Title                string `json:"title"`
	Timestamp            string `json:"@timestamp"`
}

func (s *Sink) Send(ctx context.Context, m notify.Message) error {
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	b, err := json.Marshal(document{
		ID:                   m.ID,
		Platform:             string(m.Platform),
		AppName:              m.AppName,
		OldVersion:           m.OldVersion,
		NewVersion:           m.NewVersion,
		ReleaseDate:          m.ReleaseDate,
		ReleaseNotes:         m.ReleaseNotes,
		PreviousReleaseNotes: m.PreviousReleaseNotes,
		Title:                m.Title,
		Timestamp:            m.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}
