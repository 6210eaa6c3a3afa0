package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/loykin/appwatch"
)

type storefront struct {
	mu   sync.Mutex
	ios  string
	down bool
}

func (s *storefront) setIOS(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ios = v
}

func (s *storefront) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.down {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprintf(w, `{"resultCount":1,"results":[{"version":%q,"currentVersionReleaseDate":"2025-10-04T07:00:00Z","releaseNotes":"Bug fixes"}]}`, s.ios)
	})
	mux.HandleFunc("/au/app/tesla/id582007913", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/store/apps/details", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[[["4.39.1-2571"]],[null,"Charging stats and fixes"],["4 Oct 2025",[1759560000]]]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTOML(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return p
}

func writeConfig(t *testing.T, srv *httptest.Server) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfg := fmt.Sprintf(`
fetch_timeout = "2s"

[history]
dsn = %q

[platforms.ios]
url = "%s/au/app/tesla/id582007913"
lookup_url = "%s/lookup"

[platforms.android]
url = "%s/store/apps/details?id=com.teslamotors.tesla"

[notify]
sinks = [%q]

[log]
level = "error"
`, filepath.Join(dir, "data"), srv.URL, srv.URL, srv.URL, "sqlite://"+filepath.Join(dir, "changes.db"))
	return writeTOML(t, dir, "appwatch.toml", cfg), dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckThenHistory(t *testing.T) {
	sf := &storefront{ios: "4.39.1"}
	srv := sf.start(t)
	cfgPath, _ := writeConfig(t, srv)

	out, err := run(t, "check", "--config", cfgPath)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if strings.Count(out, "first_observation") != 2 {
		t.Fatalf("expected two baselines, got:\n%s", out)
	}

	sf.setIOS("4.40.0")
	out, err = run(t, "check", "--config", cfgPath)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !strings.Contains(out, "4.39.1 -> 4.40.0") || !strings.Contains(out, "all-succeeded: 1/1 delivered") {
		t.Fatalf("unexpected report:\n%s", out)
	}
	if !strings.Contains(out, "unchanged") {
		t.Fatalf("android should be unchanged:\n%s", out)
	}

	out, err = run(t, "history", "--config", cfgPath, "--platform", "ios", "--format", "yaml")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "platform: ios") || !strings.Contains(out, "version: 4.40.0") {
		t.Fatalf("unexpected yaml:\n%s", out)
	}
	if strings.Index(out, "4.40.0") > strings.Index(out, "4.39.1") {
		t.Fatalf("history should be newest first:\n%s", out)
	}

	out, err = run(t, "history", "--config", cfgPath, "--platform", "android")
	if err != nil {
		t.Fatalf("history json: %v", err)
	}
	var doc appwatch.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if doc.Platform != appwatch.Android || len(doc.History) != 2 {
		t.Fatalf("unexpected android history: %+v", doc)
	}
}

func TestCheckAllFailed(t *testing.T) {
	sf := &storefront{down: true}
	srv := sf.start(t)
	cfgPath, _ := writeConfig(t, srv)

	out, err := run(t, "check", "--config", cfgPath, "--json")
	if !errors.Is(err, appwatch.ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got %v", err)
	}
	var rep appwatch.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(rep.Results) != 2 {
		t.Fatalf("expected two results, got %d", len(rep.Results))
	}
	for _, r := range rep.Results {
		if r.FailedAt != "Fetching" || r.Error == "" {
			t.Fatalf("unexpected result: %+v", r)
		}
	}
}

func TestHistoryBadArgs(t *testing.T) {
	sf := &storefront{ios: "1.0.0"}
	srv := sf.start(t)
	cfgPath, _ := writeConfig(t, srv)

	if _, err := run(t, "history", "--config", cfgPath, "--platform", "windows"); err == nil {
		t.Fatal("expected unknown platform error")
	}
	if _, err := run(t, "history", "--config", cfgPath, "--platform", "ios", "--format", "xml"); err == nil {
		t.Fatal("expected unknown format error")
	}
	if _, err := run(t, "history", "--config", cfgPath); err == nil {
		t.Fatal("expected missing --platform error")
	}
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	sf := &storefront{ios: "1.0.0"}
	srv := sf.start(t)
	cfgPath, dir := writeConfig(t, srv)

	_, err := run(t, "check", "--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env"))
	if err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeTOML(t, dir, "bad.toml", "[history]\nretention = 0\n")
	if _, err := run(t, "check", "--config", p); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, appwatch.Report{Results: []appwatch.Result{
		{Platform: appwatch.IOS, Classification: "changed", Previous: "1.0", Version: "1.1", Notification: "partial: 1/2 delivered, 1/2 failed"},
		{Platform: appwatch.Android, FailedAt: "Fetching", Error: "fetch failed: status 503"},
	}})
	out := buf.String()
	if !strings.Contains(out, "1.0 -> 1.1  notify: partial") {
		t.Fatalf("missing change line:\n%s", out)
	}
	if !strings.Contains(out, "failed at Fetching: fetch failed") {
		t.Fatalf("missing failure line:\n%s", out)
	}
}
