package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/domaintime/internal/config"
	"github.com/runnerr0/domaintime/internal/storage"
	"github.com/runnerr0/domaintime/internal/tracker"
)

var testNow = time.Date(2024, 5, 14, 15, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestDB creates a migrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())
	return db
}

// newTestEnv returns an env over an in-memory database, default config, a
// fixed clock, and a daemon address nothing listens on.
func newTestEnv(t *testing.T, globals *GlobalFlags) *env {
	t.Helper()
	if globals == nil {
		globals = &GlobalFlags{}
	}
	e := newEnv(globals, "test")
	e.cfg = config.DefaultConfig()
	e.db = openTestDB(t)
	e.client = newDaemonClient("http://127.0.0.1:1", "")
	e.now = func() time.Time { return testNow }
	e.tty = func() bool { return false }
	return e
}

// seed writes stats into e's database.
func seed(t *testing.T, e *env, stats storage.StatsByDay) {
	t.Helper()
	s, err := e.openStore()
	require.NoError(t, err)
	defer s.Close()

	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	require.NoError(t, s.kv.Set(context.Background(), storage.StatsKey, raw))
}

func loadStats(t *testing.T, e *env) storage.StatsByDay {
	t.Helper()
	s, err := e.openStore()
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.accrual.Load(context.Background())
	require.NoError(t, err)
	return stats
}

// fakeDaemon serves /status and /message with a fixed tracking status.
func fakeDaemon(t *testing.T, st tracker.Status) *daemonClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("POST /message", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newDaemonClient(srv.URL, "")
}

func strPtr(s string) *string { return &s }

var fixtureStats = storage.StatsByDay{
	"2024-05-12": {"example.com": 3725, "news.example": 600},
	"2024-05-13": {"docs.example": 45},
	"2024-05-14": {"example.com": 1800},
}

var fixtureLive = tracker.Status{
	IsTiming:       true,
	Domain:         strPtr("news.example"),
	ElapsedSeconds: 120,
	IsFocused:      true,
}
