package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/n0remac/pttbridge/internal/conference"
	"github.com/n0remac/pttbridge/internal/config"
	"github.com/n0remac/pttbridge/internal/relay"
	"github.com/n0remac/pttbridge/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		HTTPPort:      "0",
		STUNServer:    "stun:stun.l.google.com:19302",
		DashPassword:  "secret",
		RecordingsDir: dir,
	}
	names, err := store.LoadClientNames(filepath.Join(dir, "names.json"))
	if err != nil {
		t.Fatalf("LoadClientNames: %v", err)
	}
	subs, err := store.OpenSubscriptions(filepath.Join(dir, "subs.db"))
	if err != nil {
		t.Fatalf("OpenSubscriptions: %v", err)
	}
	conf, err := conference.New(cfg, relay.Open("", 0), names, subs)
	if err != nil {
		t.Fatalf("conference.New: %v", err)
	}
	return NewServer(conf, cfg, store.NewDashboardSessions())
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/dash/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_CorrectPasswordIssuesToken(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Password: "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/dash/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success=true")
	}
}

func TestDashboardEndpoint_RequiresAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/dash/status", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestDashboardEndpoint_ValidTokenSucceeds(t *testing.T) {
	s := newTestServer(t)
	token, err := s.sessions.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dash/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDownloadRecording_RejectsTraversal(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.sessions.Issue()

	req := httptest.NewRequest(http.MethodGet, "/recordings/..%2F..%2Fetc%2Fpasswd", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for traversal attempt, got %d", rec.Code)
	}
}

func TestRecordingName_MatchesExpectedForms(t *testing.T) {
	cases := map[string]bool{
		"rec_20260729_153000.wav":           true,
		"web_20260729_153000_aaaaaaaa.wav":  true,
		"web_20260729_153000_aaaaaaaa-1.wav": true,
		"../../etc/passwd":                  false,
		"rec_20260729_153000.wav.sh":         false,
	}
	for name, want := range cases {
		if got := recordingName.MatchString(name); got != want {
			t.Errorf("recordingName.MatchString(%q) = %v, want %v", name, got, want)
		}
	}
}
