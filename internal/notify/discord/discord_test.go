package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/appwatch/internal/detect"
	"github.com/loykin/appwatch/internal/notify"
	"github.com/loykin/appwatch/internal/version"
)

func sampleMessage() notify.Message {
	old := version.Record{Version: "4.38.0", ReleaseNotes: "Holiday update."}
	c := detect.Change{
		Platform:       version.IOS,
		Classification: detect.Changed,
		Old:            &old,
		New: version.Record{
			Version:      "4.39.1",
			ReleaseNotes: "Bug fixes and stability improvements.",
			ReleaseDate:  "04 Oct 2025",
		},
	}
	cfg := notify.Config{AvatarURL: "https://example.com/tesla.png"}
	return notify.BuildMessage(c, cfg, time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC))
}

func TestPayload_Golden(t *testing.T) {
	b, err := Payload(sampleMessage())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "ios_change", b)
}

func TestSend_PostsPayload(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotType   string
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := New(srv.URL+"/api/webhooks/123/secret-token", time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), sampleMessage()))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/webhooks/123/secret-token", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "Tesla App Watcher", gotBody["username"])
	embeds, ok := gotBody["embeds"].([]any)
	require.True(t, ok)
	require.Len(t, embeds, 1)
}

func TestSend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"You are being rate limited."}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL+"/hook", time.Second)
	require.NoError(t, err)
	err = s.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSend_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	s, err := New(addr+"/api/webhooks/123/secret-token", time.Second)
	require.NoError(t, err)
	err = s.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
	assert.NotContains(t, err.Error(), "/api/webhooks")
	assert.True(t, strings.HasPrefix(err.Error(), s.Name()+": Post"), err.Error())
}

func TestSend_TimeoutKeepsCause(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s, err := New(srv.URL+"/api/webhooks/123/secret-token", 5*time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Send(ctx, sampleMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestNameHidesToken(t *testing.T) {
	s, err := New("https://discord.com/api/webhooks/123/secret-token", 0)
	require.NoError(t, err)
	assert.Equal(t, "discord:discord.com", s.Name())
	assert.False(t, strings.Contains(s.Name(), "secret"))
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x/y", "https://", "://nope/secret"} {
		_, err := New(u, 0)
		require.Error(t, err, u)
		assert.NotContains(t, err.Error(), "secret")
	}
}
