package notify

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/loykin/appwatch/internal/detect"
	"github.com/loykin/appwatch/internal/version"
)

const (
	DefaultAppName  = "Tesla"
	DefaultUsername = "Tesla App Watcher"
	DefaultTimeout  = 10 * time.Second

	// MaxFieldLength is the longest field value webhook embeds accept.
	MaxFieldLength = 1024
)

// Config is the static notifier configuration. Zero values take the defaults above.
type Config struct {
	AppName   string
	Username  string
	AvatarURL string
	Footer    string
	Timeout   time.Duration // per sink delivery
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Footer == "" {
		c.Footer = DefaultUsername
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Field is one named value in the rendered message.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Message is the single structured notification delivered to every sink.
// The raw change data travels alongside the rendered embed so that
// non-chat sinks can store it column by column.
type Message struct {
	ID                   string           `json:"id"`
	Platform             version.Platform `json:"platform"`
	AppName              string           `json:"app_name"`
	OldVersion           string           `json:"old_version"`
	NewVersion           string           `json:"new_version"`
	ReleaseDate          string           `json:"release_date"`
	ReleaseNotes         string           `json:"release_notes,omitempty"`
	PreviousReleaseNotes string           `json:"previous_release_notes,omitempty"`

	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Fields      []Field   `json:"fields"`
	Timestamp   time.Time `json:"timestamp"`
	Footer      string    `json:"footer"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type style struct {
	emoji string
	color int
}

var platformStyles = map[version.Platform]style{
	version.IOS:     {emoji: "🍎", color: 0xFFFFFF},
	version.Android: {emoji: "🤖", color: 0x404040},
}

func styleFor(p version.Platform) style {
	if s, ok := platformStyles[p]; ok {
		return s
	}
	return style{emoji: "📱", color: 0x808080}
}

// BuildMessage renders a change. New notes are included when they carry content;
// old notes only when they also differ from the new ones.
func BuildMessage(c detect.Change, cfg Config, now time.Time) Message {
	cfg = cfg.withDefaults()
	st := styleFor(c.Platform)
	label := c.Platform.Label()

	oldVersion, oldNotes := "unknown", ""
	if c.Old != nil {
		oldVersion, oldNotes = c.Old.Version, c.Old.ReleaseNotes
	}
	releaseDate := c.New.ReleaseDate
	if releaseDate == "" {
		releaseDate = "Unknown"
	}

	m := Message{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Platform:    c.Platform,
		AppName:     cfg.AppName,
		OldVersion:  oldVersion,
		NewVersion:  c.New.Version,
		ReleaseDate: releaseDate,
		Title:       fmt.Sprintf("%s %s App Updated - %s", st.emoji, cfg.AppName, label),
		Description: fmt.Sprintf("The %s app has been updated on %s!", cfg.AppName, label),
		Color:       st.color,
		Timestamp:   now.UTC(),
		Footer:      cfg.Footer,
		Username:    cfg.Username,
		AvatarURL:   cfg.AvatarURL,
		Fields: []Field{
			{Name: "Version Change", Value: fmt.Sprintf("**%s** → **%s**", oldVersion, c.New.Version), Inline: true},
			{Name: "Release Date", Value: releaseDate, Inline: true},
		},
	}
	if version.HasNotes(c.New.ReleaseNotes) {
		m.ReleaseNotes = c.New.ReleaseNotes
		m.Fields = append(m.Fields, Field{Name: "📝 Release Notes", Value: truncate(c.New.ReleaseNotes, MaxFieldLength)})
	}
	if version.HasNotes(oldNotes) && oldNotes != c.New.ReleaseNotes {
		m.PreviousReleaseNotes = oldNotes
		m.Fields = append(m.Fields, Field{Name: "📜 Previous Release Notes", Value: truncate(oldNotes, MaxFieldLength)})
	}
	return m
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
