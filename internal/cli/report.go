package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/runnerr0/domaintime/internal/day"
	"github.com/runnerr0/domaintime/internal/storage"
	"github.com/runnerr0/domaintime/internal/tracker"
)

type reportRow struct {
	Day     string `json:"day"`
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

type liveJSON struct {
	Domain         string `json:"domain"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

// report is the per-day and per-domain view of a range.
type report struct {
	Range        string                `json:"range"`
	Label        string                `json:"label"`
	Days         []string              `json:"days"`
	Rows         []reportRow           `json:"rows"`
	Totals       []storage.DomainTotal `json:"totals"`
	TotalSeconds int64                 `json:"total_seconds"`
	Live         *liveJSON             `json:"live,omitempty"`
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	stats, err := s.accrual.Load(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	var live *tracker.Status
	if !c.NoLive {
		live = c.env.liveSession(ctx)
	}

	rep, err := buildReport(stats, c.Range, c.env.now(), live)
	if err != nil {
		return err
	}

	if c.env.json() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return printReportHuman(os.Stdout, rep)
}

// liveSession returns the daemon's running session, or nil when the daemon
// is unreachable or not timing.
func (e *env) liveSession(ctx context.Context) *tracker.Status {
	client, err := e.daemon()
	if err != nil {
		return nil
	}
	st, err := client.currentTracking(ctx)
	if err != nil || !st.IsTiming || st.Domain == nil || st.ElapsedSeconds <= 0 {
		return nil
	}
	return st
}

// buildReport selects the days of rng and aggregates them. The live
// session's elapsed seconds count toward today so the numbers are current.
func buildReport(stats storage.StatsByDay, rng string, now time.Time, live *tracker.Status) (*report, error) {
	today := day.Key(now)
	merged := mergeLive(stats, live, today)

	days, label, err := selectDays(merged, rng, now)
	if err != nil {
		return nil, err
	}

	rep := &report{
		Range:  rng,
		Label:  label,
		Days:   days,
		Rows:   []reportRow{},
		Totals: merged.Totals(days),
	}
	for _, d := range days {
		for _, t := range merged.Totals([]string{d}) {
			rep.Rows = append(rep.Rows, reportRow{Day: d, Domain: t.Domain, Seconds: t.Seconds})
		}
	}
	for _, t := range rep.Totals {
		rep.TotalSeconds += t.Seconds
	}
	if live != nil && live.Domain != nil {
		rep.Live = &liveJSON{Domain: *live.Domain, ElapsedSeconds: live.ElapsedSeconds}
	}
	return rep, nil
}

// selectDays returns the stored day keys inside rng, ascending, and a
// label describing the range.
func selectDays(stats storage.StatsByDay, rng string, now time.Time) ([]string, string, error) {
	all := stats.Days()
	today := day.Key(now)

	switch rng {
	case "", "today":
		days := []string{}
		if _, ok := stats[today]; ok {
			days = append(days, today)
		}
		return days, fmt.Sprintf("today (%s)", today), nil
	case "all":
		return all, "all days", nil
	}

	n, err := strconv.Atoi(rng)
	if err != nil || n < 1 {
		return nil, "", fmt.Errorf("invalid range %q: use today, all, or a positive number of days", rng)
	}
	cutoff := day.Cutoff(now, n)
	i := sort.SearchStrings(all, cutoff)
	days := append([]string{}, all[i:]...)
	return days, fmt.Sprintf("last %d days (since %s)", n, cutoff), nil
}

// mergeLive returns a copy of stats with the live session's elapsed
// seconds added to today.
func mergeLive(stats storage.StatsByDay, live *tracker.Status, today string) storage.StatsByDay {
	out := make(storage.StatsByDay, len(stats)+1)
	for d, domains := range stats {
		cp := make(map[string]int64, len(domains))
		for k, v := range domains {
			cp[k] = v
		}
		out[d] = cp
	}
	if live == nil || live.Domain == nil || live.ElapsedSeconds <= 0 {
		return out
	}
	if out[today] == nil {
		out[today] = make(map[string]int64)
	}
	out[today][*live.Domain] += live.ElapsedSeconds
	return out
}

func printReportHuman(w io.Writer, rep *report) error {
	fmt.Fprintf(w, "Report: %s\n", rep.Label)
	fmt.Fprintln(w, "======")

	if len(rep.Rows) == 0 {
		fmt.Fprintln(w, "No time recorded.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-10s  %-28s %s\n", "DATE", "DOMAIN", "TIME")
	for _, r := range rep.Rows {
		fmt.Fprintf(w, "  %-10s  %-28s %s\n", r.Day, r.Domain, formatSeconds(r.Seconds))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Totals:")
	for _, t := range rep.Totals {
		fmt.Fprintf(w, "  %-40s %s\n", t.Domain, formatSeconds(t.Seconds))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total:         %s\n", formatSeconds(rep.TotalSeconds))

	if rep.Live != nil {
		fmt.Fprintf(w, "Tracking:      %s (%s so far)\n", rep.Live.Domain, formatSeconds(rep.Live.ElapsedSeconds))
	}
	return nil
}
