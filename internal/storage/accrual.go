package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
)

// auditor is implemented by stores that keep an administrative audit trail.
type auditor interface {
	Audit(ctx context.Context, action, detail string) error
}

// Accrual adds credited seconds into the statsByDay document. Every write
// is a whole-document read-modify-write; calls are not serialised here.
type Accrual struct {
	kv     KV
	logger *slog.Logger
}

// NewAccrual creates an Accrual over kv that reports non-fatal failures to
// slog.Default.
func NewAccrual(kv KV) *Accrual {
	return &Accrual{kv: kv, logger: slog.Default()}
}

// WithLogger sets the logger for non-fatal failures such as a lost audit
// row.
func (a *Accrual) WithLogger(logger *slog.Logger) *Accrual {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Load returns the full statsByDay document, or an empty one if nothing
// has been written yet.
func (a *Accrual) Load(ctx context.Context) (StatsByDay, error) {
	raw, ok, err := a.kv.Get(ctx, StatsKey)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	stats := StatsByDay{}
	if !ok || len(raw) == 0 {
		return stats, nil
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func (a *Accrual) save(ctx context.Context, stats StatsByDay) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := a.kv.Set(ctx, StatsKey, raw); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// AddSeconds adds round(seconds) to stats[dayKey][domain], creating the
// nested entries on first write. It is a no-op for an empty domain or a
// non-positive amount.
func (a *Accrual) AddSeconds(ctx context.Context, domain string, seconds float64, dayKey string) error {
	if domain == "" || seconds <= 0 {
		return nil
	}

	stats, err := a.Load(ctx)
	if err != nil {
		return err
	}
	if stats[dayKey] == nil {
		stats[dayKey] = make(map[string]int64)
	}
	stats[dayKey][domain] += int64(math.Round(seconds))

	return a.save(ctx, stats)
}

// PruneBefore removes every day bucket strictly older than cutoff and
// returns the removed day keys. With dryRun the store is left untouched.
func (a *Accrual) PruneBefore(ctx context.Context, cutoff string, dryRun bool) ([]string, error) {
	stats, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, d := range stats.Days() {
		if d < cutoff {
			removed = append(removed, d)
		}
	}
	if dryRun || len(removed) == 0 {
		return removed, nil
	}

	for _, d := range removed {
		delete(stats, d)
	}
	if err := a.save(ctx, stats); err != nil {
		return nil, err
	}
	a.audit(ctx, "prune", fmt.Sprintf("removed %d days before %s", len(removed), cutoff))
	return removed, nil
}

// Reset deletes all accrued data.
func (a *Accrual) Reset(ctx context.Context) error {
	if err := a.kv.Delete(ctx, StatsKey); err != nil {
		return fmt.Errorf("reset stats: %w", err)
	}
	a.audit(ctx, "purge", "all accrued data deleted")
	return nil
}

func (a *Accrual) audit(ctx context.Context, action, detail string) {
	au, ok := a.kv.(auditor)
	if !ok {
		return
	}
	if err := au.Audit(ctx, action, detail); err != nil {
		a.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
