package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type exportJSON struct {
	Detailed  string `json:"detailed"`
	Aggregate string `json:"aggregate"`
	Rows      int    `json:"rows"`
	Domains   int    `json:"domains"`
}

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.accrual.Load(context.Background())
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	rep, err := buildReport(stats, c.Range, c.env.now(), nil)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.OutDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	detailed := [][]string{{"date", "domain", "seconds"}}
	for _, r := range rep.Rows {
		detailed = append(detailed, []string{r.Day, r.Domain, strconv.FormatInt(r.Seconds, 10)})
	}
	aggregate := [][]string{{"domain", "seconds"}}
	for _, t := range rep.Totals {
		aggregate = append(aggregate, []string{t.Domain, strconv.FormatInt(t.Seconds, 10)})
	}

	out := exportJSON{
		Detailed:  filepath.Join(c.OutDir, fmt.Sprintf("domain-time-detailed-%s.csv", c.Range)),
		Aggregate: filepath.Join(c.OutDir, fmt.Sprintf("domain-time-aggregate-%s.csv", c.Range)),
		Rows:      len(rep.Rows),
		Domains:   len(rep.Totals),
	}
	if err := writeCSV(out.Detailed, detailed); err != nil {
		return err
	}
	if err := writeCSV(out.Aggregate, aggregate); err != nil {
		return err
	}

	if c.env.json() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Printf("Wrote %s (%d rows)\n", out.Detailed, out.Rows)
	fmt.Printf("Wrote %s (%d domains)\n", out.Aggregate, out.Domains)
	return nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
