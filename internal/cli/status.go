package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/domaintime/internal/day"
	"github.com/runnerr0/domaintime/internal/storage"
	"github.com/runnerr0/domaintime/internal/tracker"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string                `json:"version"`
	DatabasePath      string                `json:"database_path"`
	DatabaseSizeBytes int64                 `json:"database_size_bytes"`
	SchemaVersion     int                   `json:"schema_version"`
	Days              int                   `json:"days"`
	Domains           int                   `json:"domains"`
	TotalSeconds      int64                 `json:"total_seconds"`
	TodaySeconds      int64                 `json:"today_seconds"`
	OldestDay         string                `json:"oldest_day,omitempty"`
	NewestDay         string                `json:"newest_day,omitempty"`
	RetentionDays     int                   `json:"retention_days"`
	TopDomains        []storage.DomainTotal `json:"top_domains"`
	DaemonRunning     bool                  `json:"daemon_running"`
	Current           *tracker.Status       `json:"current,omitempty"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	return c.executeWithStore(s)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(s *store) error {
	ctx := context.Background()

	stats, err := s.accrual.Load(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	summary := stats.Summarize(day.Key(c.env.now()))

	schemaVersion, err := storage.NewMigrationRunner(s.db).SchemaVersion(ctx)
	if err != nil {
		return err
	}

	retentionDays := 0
	if cfg, err := c.env.config(); err == nil {
		retentionDays = cfg.Retention.Days
	}

	out := statusJSON{
		Version:           c.env.version,
		DatabasePath:      s.path,
		DatabaseSizeBytes: getDatabaseSize(s.db, s.path),
		SchemaVersion:     schemaVersion,
		Days:              summary.Days,
		Domains:           summary.Domains,
		TotalSeconds:      summary.TotalSeconds,
		TodaySeconds:      summary.TodaySeconds,
		OldestDay:         summary.OldestDay,
		NewestDay:         summary.NewestDay,
		RetentionDays:     retentionDays,
		TopDomains:        summary.TopDomains,
	}

	if client, err := c.env.daemon(); err == nil && client.running(ctx) {
		out.DaemonRunning = true
		if st, err := client.currentTracking(ctx); err == nil {
			out.Current = st
		}
	}

	if c.env.json() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printStatusHuman(os.Stdout, out)
}

func printStatusHuman(w io.Writer, st statusJSON) error {
	fmt.Fprintln(w, "domaintime Status")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Version:       %s\n", st.Version)
	fmt.Fprintf(w, "Database:      %s (%s)\n", st.DatabasePath, formatBytes(st.DatabaseSizeBytes))
	fmt.Fprintf(w, "Schema:        v%d\n", st.SchemaVersion)
	fmt.Fprintf(w, "Days:          %s\n", formatNumber(int64(st.Days)))
	fmt.Fprintf(w, "Domains:       %s\n", formatNumber(int64(st.Domains)))

	if st.Days > 0 {
		fmt.Fprintf(w, "Oldest:        %s\n", st.OldestDay)
		fmt.Fprintf(w, "Newest:        %s\n", st.NewestDay)
	}
	fmt.Fprintf(w, "Today:         %s\n", formatSeconds(st.TodaySeconds))
	fmt.Fprintf(w, "All time:      %s\n", formatSeconds(st.TotalSeconds))
	fmt.Fprintf(w, "Retention:     %d days\n", st.RetentionDays)

	if len(st.TopDomains) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top Domains:")
		for _, d := range st.TopDomains {
			fmt.Fprintf(w, "  %-28s %s\n", d.Domain, formatSeconds(d.Seconds))
		}
	}

	fmt.Fprintln(w)
	if !st.DaemonRunning {
		fmt.Fprintln(w, "Daemon:        not running")
		return nil
	}
	fmt.Fprintln(w, "Daemon:        running")
	switch cur := st.Current; {
	case cur != nil && cur.IsTiming && cur.Domain != nil:
		fmt.Fprintf(w, "Tracking:      %s (%s)\n", *cur.Domain, formatSeconds(cur.ElapsedSeconds))
	case cur != nil && cur.IsIdle:
		fmt.Fprintln(w, "Tracking:      paused (idle)")
	case cur != nil && !cur.IsFocused:
		fmt.Fprintln(w, "Tracking:      paused (browser not focused)")
	default:
		fmt.Fprintln(w, "Tracking:      not tracking right now")
	}
	return nil
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	// Try file stat first
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	// Fallback: query SQLite for in-memory or unavailable file
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
