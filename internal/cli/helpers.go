package cli

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/domaintime/internal/config"
	"github.com/runnerr0/domaintime/internal/storage"
)

// env is shared by every subcommand. Fields left nil are resolved lazily
// from flags and config; tests inject them directly.
type env struct {
	globals *GlobalFlags
	version string

	cfg    *config.Config
	db     *sql.DB
	client *daemonClient
	now    func() time.Time
	stdin  io.Reader
	tty    func() bool
}

func newEnv(globals *GlobalFlags, version string) *env {
	return &env{
		globals: globals,
		version: version,
		now:     time.Now,
		stdin:   os.Stdin,
		tty:     stdinIsTerminal,
	}
}

func (e *env) json() bool {
	return e.globals != nil && e.globals.JSON
}

// config loads --config, or the default config file, creating it with
// defaults if missing.
func (e *env) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if e.globals != nil && e.globals.Config != "" {
		path, perr := config.ExpandPath(e.globals.Config)
		if perr != nil {
			return nil, perr
		}
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

func (e *env) daemon() (*daemonClient, error) {
	if e.client != nil {
		return e.client, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	e.client = newDaemonClient(cfg.Daemon.URL(), cfg.Daemon.AuthToken)
	return e.client, nil
}

// store is an open, migrated database with the accrual adapter over it.
type store struct {
	path    string
	db      *sql.DB
	kv      *storage.SQLiteKV
	accrual *storage.Accrual
	ownsDB  bool
}

func (s *store) Close() error {
	s.kv.Close()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// openStore opens the configured database (or the injected one), runs
// migrations, and returns a ready-to-use store.
func (e *env) openStore() (*store, error) {
	if e.db != nil {
		return newStore(e.db, ":memory:", false)
	}

	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}
	if e.globals != nil && e.globals.DBPath != "" {
		if dbPath, err = config.ExpandPath(e.globals.DBPath); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db).WithJournalMode(cfg.Storage.SQLiteJournalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s, err := newStore(db, dbPath, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, path string, owns bool) (*store, error) {
	kv, err := storage.NewSQLiteKV(db)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return &store{path: path, db: db, kv: kv, accrual: storage.NewAccrual(kv), ownsDB: owns}, nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatSeconds renders whole seconds as "2 h 5 min", "5 min", or "42 sec".
// Seconds are only shown for totals under a minute.
func formatSeconds(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d h", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%d min", m))
	}
	if h == 0 && m == 0 {
		parts = append(parts, fmt.Sprintf("%d sec", s))
	}
	return strings.Join(parts, " ")
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
