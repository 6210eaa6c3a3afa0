package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/appwatch/internal/notify"
)

// Sink posts messages to a Discord-compatible webhook.
type Sink struct {
	client *http.Client
	url    string
	name   string
}

func New(webhookURL string, timeout time.Duration) (*Sink, error) {
	u, err := url.Parse(strings.TrimSpace(webhookURL))
	// url.Error echoes the input, which embeds the webhook token.
	if err != nil {
		return nil, errors.New("invalid webhook url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("invalid webhook url: want http(s)://host/...")
	}
	if timeout <= 0 {
		timeout = notify.DefaultTimeout
	}
	return &Sink{
		client: &http.Client{Timeout: timeout},
		url:    u.String(),
		// The path carries the webhook token; only the host is safe to log.
		name: "discord:" + u.Host,
	}, nil
}

func (s *Sink) Name() string { return s.name }

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []notify.Field `json:"fields"`
	Timestamp   string         `json:"timestamp"`
	Footer      embedFooter    `json:"footer"`
}

type payload struct {
	Embeds    []embed `json:"embeds"`
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

// Payload renders m as a webhook request body.
func Payload(m notify.Message) ([]byte, error) {
	return json.MarshalIndent(payload{
		Embeds: []embed{{
			Title:       m.Title,
			Description: m.Description,
			Color:       m.Color,
			Fields:      m.Fields,
			Timestamp:   m.Timestamp.UTC().Format(time.RFC3339),
			Footer:      embedFooter{Text: m.Footer},
		}},
		Username:  m.Username,
		AvatarURL: m.AvatarURL,
	}, "", "  ")
}

func (s *Sink) Send(ctx context.Context, m notify.Message) error {
	b, err := Payload(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries the full webhook URL, token included.
		var ue *url.Error
		if errors.As(err, &ue) {
			return fmt.Errorf("%s: %s: %w", s.name, ue.Op, ue.Err)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
