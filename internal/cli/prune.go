package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/domaintime/internal/day"
)

type pruneJSON struct {
	DryRun    bool     `json:"dry_run"`
	Retention string   `json:"retention"`
	Cutoff    string   `json:"cutoff"`
	Removed   []string `json:"removed"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	cfg, err := c.env.config()
	if err != nil {
		return err
	}

	retention := time.Duration(cfg.Retention.Days) * 24 * time.Hour
	if c.OlderThan != "" {
		if retention, err = parseDuration(c.OlderThan); err != nil {
			return err
		}
	} else if cfg.Retention.Days == 0 {
		fmt.Println("Retention is disabled (retention.days = 0); nothing to prune.")
		return nil
	}

	keepDays := int(retention.Hours() / 24)
	if keepDays < 1 {
		return fmt.Errorf("retention must be at least 1 day, got %s", c.OlderThan)
	}

	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cutoff := day.Cutoff(c.env.now(), keepDays)
	removed, err := s.accrual.PruneBefore(context.Background(), cutoff, c.DryRun)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	if removed == nil {
		removed = []string{}
	}

	human := formatDurationHuman(time.Duration(keepDays) * 24 * time.Hour)
	if c.env.json() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pruneJSON{DryRun: c.DryRun, Retention: human, Cutoff: cutoff, Removed: removed})
	}

	verb := "Pruned"
	if c.DryRun {
		verb = "Would prune"
	}
	fmt.Printf("%s %d day(s) older than %s (before %s).\n", verb, len(removed), human, cutoff)
	if c.env.globals != nil && c.env.globals.Verbose {
		for _, d := range removed {
			fmt.Printf("  %s\n", d)
		}
	}
	return nil
}
