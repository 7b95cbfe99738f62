package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/runnerr0/domaintime/internal/day"
	"github.com/runnerr0/domaintime/internal/storage"
)

const purgeConfirmation = "PURGE"

type purgeJSON struct {
	Purged       bool  `json:"purged"`
	Days         int   `json:"days"`
	Domains      int   `json:"domains"`
	TotalSeconds int64 `json:"total_seconds"`
}

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return errors.New("purge requires --all flag for safety")
	}
	if !c.Force && !c.env.tty() {
		return errors.New("aborted: stdin is not a terminal; use --force to purge non-interactively")
	}

	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	stats, err := s.accrual.Load(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	summary := stats.Summarize(day.Key(c.env.now()))

	if !c.Force {
		if err := confirmPurge(os.Stdout, c.env.stdin, summary); err != nil {
			return err
		}
	}

	if err := s.accrual.Reset(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	out := purgeJSON{
		Purged:       true,
		Days:         summary.Days,
		Domains:      summary.Domains,
		TotalSeconds: summary.TotalSeconds,
	}
	if c.env.json() {
		return json.NewEncoder(os.Stdout).Encode(out)
	}
	fmt.Printf("Purged all data (%s day(s), %s tracked). domaintime is empty.\n",
		formatNumber(int64(out.Days)), formatSeconds(out.TotalSeconds))
	return nil
}

func confirmPurge(w io.Writer, r io.Reader, summary storage.Stats) error {
	fmt.Fprintln(w, "⚠ WARNING: This will permanently delete ALL domaintime data.")
	fmt.Fprintf(w, "  - %s day(s) of per-domain totals across %s domain(s)\n",
		formatNumber(int64(summary.Days)), formatNumber(int64(summary.Domains)))
	fmt.Fprintf(w, "  - %s of tracked time\n", formatSeconds(summary.TotalSeconds))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This action cannot be undone.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Type %q to confirm: ", purgeConfirmation)

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return errors.New("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != purgeConfirmation {
		return errors.New("aborted: confirmation text did not match")
	}
	return nil
}
