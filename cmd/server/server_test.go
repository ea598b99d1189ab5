//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/himanishpuri/SnippetDNA/pkg/logger"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna"
	"github.com/himanishpuri/SnippetDNA/pkg/snippetdna/audio"
)

func chirp(n int, f0, f1 float64) []float64 {
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		f := f0 + (f1-f0)*float64(i)/float64(n)
		phase += 2 * math.Pi * f / 16000
		out[i] = 0.5 * math.Sin(phase)
	}
	return out
}

func quietLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Output = io.Discard
	return logger.New(cfg)
}

// warnLogger records warnings for assertions.
type warnLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Debugf(string, ...any) {}
func (l *warnLogger) Infof(string, ...any)  {}
func (l *warnLogger) Errorf(string, ...any) {}

func (l *warnLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *warnLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	lib, err := snippetdna.NewLibrary(
		snippetdna.WithDBPath(filepath.Join(t.TempDir(), "refs.sqlite3")),
		snippetdna.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	cfg := lib.Config()
	s := NewServer(lib, &ServerConfig{
		DBPath:         cfg.DBPath,
		TempDir:        t.TempDir(),
		SampleRate:     cfg.SampleRate,
		Threshold:      cfg.Threshold,
		AllowedOrigins: []string{"*"},
	})
	s.log = quietLogger()

	ts := httptest.NewServer(s.setupRoutes())
	t.Cleanup(ts.Close)
	return s, ts
}

func addRawReference(t *testing.T, ts *httptest.Server, label string, samples []float64) AddReferenceResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/references?label="+label, "application/octet-stream",
		bytes.NewReader(audio.EncodeS16LE(samples)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, body)
	}
	var out AddReferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS header *, got %q", got)
	}
}

func TestReferenceLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	added := addRawReference(t, ts, "chime", chirp(1000, 300, 3000))
	if added.ID == "" || added.Label != "chime" {
		t.Fatalf("Unexpected add response %+v", added)
	}

	resp, err := http.Get(ts.URL + "/api/references")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	var list ListReferencesResponse
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if list.Count != 1 || list.References[0].SampleCount != 1000 || list.References[0].DurationMs != 62 {
		t.Errorf("Unexpected listing %+v", list)
	}

	resp, err = http.Get(ts.URL + "/api/references/" + added.ID)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for existing reference, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/references/"+added.ID, nil)
	for i, want := range []int{http.StatusOK, http.StatusNotFound} {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("DELETE #%d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}
}

func TestAddReferenceRejectsBadAudio(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name  string
		query string
		body  []byte
	}{
		{"missing label", "", audio.EncodeS16LE(chirp(1000, 300, 3000))},
		{"odd length", "?label=odd", []byte{1, 2, 3}},
		{"too short", "?label=short", audio.EncodeS16LE(chirp(100, 300, 3000))},
	}
	for _, tt := range tests {
		resp, err := http.Post(ts.URL+"/api/references"+tt.query, "application/octet-stream", bytes.NewReader(tt.body))
		if err != nil {
			t.Fatalf("%s: POST failed: %v", tt.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, resp.StatusCode)
		}
	}
}

func TestDetectStream(t *testing.T) {
	_, ts := newTestServer(t)
	chime := chirp(1000, 300, 3000)
	addRawReference(t, ts, "chime", chime)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/detect"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	stream := append(append(make([]float64, 500), chime...), make([]float64, 500)...)
	data := audio.EncodeS16LE(stream)
	// Odd-sized frames exercise the split-sample carry.
	for len(data) > 0 {
		n := 333
		if n > len(data) {
			n = len(data)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data[:n]); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		data = data[n:]
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(closeCommand)); err != nil {
		t.Fatalf("Write close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var matches []DetectMessage
	for {
		var msg DetectMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON failed before done: %v", err)
		}
		if msg.Type == MessageDone {
			if msg.Samples != int64(len(stream)) {
				t.Errorf("Expected %d samples in summary, got %d", len(stream), msg.Samples)
			}
			break
		}
		if msg.Type != MessageMatch {
			t.Fatalf("Unexpected message %+v", msg)
		}
		matches = append(matches, msg)
	}

	if len(matches) != 1 || matches[0].Label != "chime" || matches[0].Score < snippetdna.DefaultThreshold {
		t.Fatalf("Expected one chime match, got %+v", matches)
	}
	if matches[0].Position < 500 || matches[0].Position >= 1500 {
		t.Errorf("Expected position within the chime, got %d", matches[0].Position)
	}
}

func TestStreamEventsLogsFailedSummary(t *testing.T) {
	s, _ := newTestServer(t)
	log := &warnLogger{}
	s.log = log

	session, err := s.lib.NewSession()
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	finished := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(finished)
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// The summary write must fail on a connection that is already gone.
		conn.Close()
		s.streamEvents(conn, session)
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("streamEvents did not return")
	}

	warns := log.warnings()
	if len(warns) != 1 || !strings.Contains(warns[0], "stream summary") {
		t.Errorf("Expected a warning about the unsent summary, got %v", warns)
	}
}
