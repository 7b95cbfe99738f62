package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSeconds_CreatesNestedEntries(t *testing.T) {
	a := NewAccrual(openTestKV(t))
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "example.com", 12.4, "2024-01-01"))

	stats, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatsByDay{"2024-01-01": {"example.com": 12}}, stats)
}

func TestAddSeconds_IsAdditive(t *testing.T) {
	a := NewAccrual(openTestKV(t))
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "example.com", 10, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", 5, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "other.example", 7, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", 3, "2024-01-02"))

	stats, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stats["2024-01-01"]["example.com"])
	assert.Equal(t, int64(7), stats["2024-01-01"]["other.example"])
	assert.Equal(t, int64(3), stats["2024-01-02"]["example.com"])
}

func TestAddSeconds_RoundsPerWrite(t *testing.T) {
	a := NewAccrual(NewMemoryKV())
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "example.com", 0.5, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", 1.49, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", 0.2, "2024-01-01"))

	stats, err := a.Load(ctx)
	require.NoError(t, err)
	// 1 + 1 + 0: each write rounds independently, and a sub-half-second
	// credit still creates the entry.
	assert.Equal(t, int64(2), stats["2024-01-01"]["example.com"])
}

func TestAddSeconds_NoOpCases(t *testing.T) {
	kv := NewMemoryKV()
	a := NewAccrual(kv)
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "", 10, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", 0, "2024-01-01"))
	require.NoError(t, a.AddSeconds(ctx, "example.com", -3, "2024-01-01"))

	_, ok, err := kv.Get(ctx, StatsKey)
	require.NoError(t, err)
	assert.False(t, ok, "no-op calls must not write the store")
}

func TestAddSeconds_PropagatesWriteFailure(t *testing.T) {
	kv := NewMemoryKV()
	kv.FailSet = errors.New("quota exceeded")
	a := NewAccrual(kv)

	err := a.AddSeconds(context.Background(), "example.com", 10, "2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestLoad_CorruptDocument(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), StatsKey, []byte("{not json")))

	_, err := NewAccrual(kv).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stats")
}

func TestPruneBefore(t *testing.T) {
	kv := openTestKV(t)
	a := NewAccrual(kv)
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		require.NoError(t, a.AddSeconds(ctx, "example.com", 10, d))
	}

	removed, err := a.PruneBefore(ctx, "2024-01-03", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, removed)

	stats, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stats, 3, "dry run must not delete")

	removed, err = a.PruneBefore(ctx, "2024-01-03", false)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	stats, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03"}, stats.Days())

	var count int
	require.NoError(t, kv.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action = 'prune'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestReset(t *testing.T) {
	a := NewAccrual(NewMemoryKV())
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "example.com", 10, "2024-01-01"))
	require.NoError(t, a.Reset(ctx))

	stats, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

// failingAuditKV is a MemoryKV whose audit trail is unavailable.
type failingAuditKV struct {
	*MemoryKV
}

func (failingAuditKV) Audit(context.Context, string, string) error {
	return errors.New("audit_log is locked")
}

func TestAudit_FailureIsLoggedNotReturned(t *testing.T) {
	var logs bytes.Buffer
	kv := failingAuditKV{NewMemoryKV()}
	a := NewAccrual(kv).WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	require.NoError(t, a.AddSeconds(ctx, "example.com", 10, "2024-01-01"))
	_, err := a.PruneBefore(ctx, "2024-01-02", false)
	require.NoError(t, err)
	require.NoError(t, a.Reset(ctx))

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "audit write failed")
	assert.Contains(t, out, "action=prune")
	assert.Contains(t, out, "action=purge")
	assert.Contains(t, out, "audit_log is locked")
}
