package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/domaintime/internal/browser"
	"github.com/runnerr0/domaintime/internal/tracker"
)

type fakeTracker struct {
	mu     sync.Mutex
	calls  []string
	tabs   []tracker.Tab
	status tracker.Status
	err    error
}

func (f *fakeTracker) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTracker) Startup(reason string) { f.record("startup:" + reason) }
func (f *fakeTracker) TabActivated()         { f.record("tabActivated") }
func (f *fakeTracker) TabUpdated(tab tracker.Tab, _ tracker.Change) {
	f.mu.Lock()
	f.tabs = append(f.tabs, tab)
	f.mu.Unlock()
	f.record("tabUpdated")
}
func (f *fakeTracker) WindowFocusChanged(tracker.WindowID)    { f.record("windowFocusChanged") }
func (f *fakeTracker) IdleStateChanged(state tracker.IdleState) { f.record("idle:" + string(state)) }
func (f *fakeTracker) TabRemoved(tracker.TabID)               { f.record("tabRemoved") }
func (f *fakeTracker) TabDetached(tracker.TabID)              { f.record("tabDetached") }
func (f *fakeTracker) Status(context.Context) (tracker.Status, error) {
	return f.status, f.err
}

func (f *fakeTracker) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	srv      *Server
	tracker  *fakeTracker
	registry *browser.Registry
	hub      *browser.Hub
}

func newTestServer(t *testing.T, mutate ...func(*Options)) *testServer {
	t.Helper()
	ts := &testServer{tracker: &fakeTracker{}, hub: browser.NewHub(quietLogger())}
	ts.registry = browser.NewRegistry(ts.hub)

	opts := Options{
		Tracker:  ts.tracker,
		Registry: ts.registry,
		Hub:      ts.hub,
		Logger:   quietLogger(),
		Version:  "test",
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	ts.srv = srv
	return ts
}

func (ts *testServer) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"version":"test","clients":0}`, rec.Body.String())

	ts.hub.SetActive(true)
	rec = ts.do(http.MethodGet, "/status", "")
	assert.JSONEq(t, `{"ok":true,"version":"test","clients":0,"indicator":true}`, rec.Body.String())
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.SetIdleDetectionInterval(90)

	rec := ts.do(http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"idleDetectionSeconds":90}`, rec.Body.String())
}

func TestEvents_Dispatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"activated", `{"type":"tabActivated","tab":{"id":1,"windowId":2,"url":"https://a.example"}}`, "tabActivated"},
		{"updated", `{"type":"tabUpdated","tab":{"id":1,"windowId":2,"active":true},"change":{"status":"complete"}}`, "tabUpdated"},
		{"removed", `{"type":"tabRemoved","tabId":1}`, "tabRemoved"},
		{"detached", `{"type":"tabDetached","tabId":1}`, "tabDetached"},
		{"focus", `{"type":"windowFocusChanged","windowId":-1}`, "windowFocusChanged"},
		{"idle", `{"type":"idleStateChanged","state":"locked"}`, "idle:locked"},
		{"startup", `{"type":"startup"}`, "startup:startup"},
		{"installed", `{"type":"installed"}`, "startup:installed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(http.MethodPost, "/events", tt.body)

			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
			assert.Equal(t, []string{tt.want}, ts.tracker.recorded())
		})
	}
}

func TestEvents_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type":"bookmarkCreated"}`},
		{"missing tab", `{"type":"tabActivated"}`},
		{"missing tab id", `{"type":"tabRemoved"}`},
		{"missing window id", `{"type":"windowFocusChanged"}`},
		{"bad idle state", `{"type":"idleStateChanged","state":"asleep"}`},
		{"bad json", `{"type":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(http.MethodPost, "/events", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, ts.tracker.recorded())
		})
	}
}

func TestEvents_UpdateRegistryBeforeSignal(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/events", `{"type":"tabActivated","tab":{"id":3,"windowId":1,"url":"https://a.example"}}`)
	ts.do(http.MethodPost, "/events", `{"type":"tabUpdated","tab":{"id":3,"windowId":1,"active":true},"change":{"status":"complete"}}`)

	require.Len(t, ts.tracker.tabs, 1)
	assert.Equal(t, "https://a.example", ts.tracker.tabs[0].URL, "tab merged from registry")

	tab, err := ts.registry.ActiveTab(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tab)
	assert.Equal(t, tracker.TabID(3), tab.ID)
}

func TestEvents_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.MaxRequestSize = 16 })
	rec := ts.do(http.MethodPost, "/events", `{"type":"startup","padding":"xxxxxxxxxxxxxxxxxxxx"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMessage_GetCurrentTracking(t *testing.T) {
	ts := newTestServer(t)
	domain := "example.com"
	ts.tracker.status = tracker.Status{IsTiming: true, Domain: &domain, ElapsedSeconds: 12, IsFocused: true, NowMs: 1000}

	rec := ts.do(http.MethodPost, "/message", `{"type":"getCurrentTracking"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got tracker.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsTiming)
	require.NotNil(t, got.Domain)
	assert.Equal(t, "example.com", *got.Domain)
	assert.Equal(t, int64(12), got.ElapsedSeconds)
}

func TestMessage_UnknownType(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/message", `{"type":"resetStats"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "resetStats")
}

func TestMessage_TrackerStopped(t *testing.T) {
	ts := newTestServer(t)
	ts.tracker.err = tracker.ErrStopped

	rec := ts.do(http.MethodPost, "/message", `{"type":"getCurrentTracking"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.AuthToken = "s3cret" })
	body := `{"type":"startup"}`

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/events", body).Code)
	assert.Equal(t, http.StatusUnauthorized,
		ts.do(http.MethodPost, "/events", body, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusAccepted,
		ts.do(http.MethodPost, "/events", body, "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/config?token=s3cret", "").Code)

	// Health stays open.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/status", "").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/events", "application/json",
		bytes.NewBufferString(`{"type":"startup"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}
