package tracker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/domaintime/internal/day"
	"github.com/runnerr0/domaintime/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakePlatform struct {
	mu             sync.Mutex
	tab            *Tab
	tabErr         error
	windows        map[WindowID]Window
	windowErr      error
	current        *Window
	currentErr     error
	idleInterval   int
	activeTabCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{windows: make(map[WindowID]Window)}
}

func (p *fakePlatform) ActiveTab(context.Context) (*Tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeTabCalls++
	if p.tabErr != nil {
		return nil, p.tabErr
	}
	if p.tab == nil {
		return nil, nil
	}
	tab := *p.tab
	return &tab, nil
}

func (p *fakePlatform) Window(_ context.Context, id WindowID) (*Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.windowErr != nil {
		return nil, p.windowErr
	}
	w, ok := p.windows[id]
	if !ok {
		return nil, errors.New("no such window")
	}
	return &w, nil
}

func (p *fakePlatform) CurrentWindow(context.Context) (*Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	return p.current, nil
}

func (p *fakePlatform) SetIdleDetectionInterval(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleInterval = seconds
}

func (p *fakePlatform) setTab(id TabID, window WindowID, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tab = &Tab{ID: id, WindowID: window, URL: url, Active: true}
}

func (p *fakePlatform) clearTab() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tab = nil
}

func (p *fakePlatform) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTabCalls
}

type fakeIndicator struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeIndicator) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, active)
}

func (f *fakeIndicator) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, false
	}
	return f.states[len(f.states)-1], true
}

// harness drives a Tracker without its Run loop: tests post signals and
// then drain the mailbox on the test goroutine.
type harness struct {
	t         *testing.T
	tr        *Tracker
	clock     *fakeClock
	platform  *fakePlatform
	indicator *fakeIndicator
	kv        *storage.MemoryKV
	accrual   *storage.Accrual
	logs      *bytes.Buffer
	logw      *syncWriter
}

var epoch = time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		clock:     newFakeClock(epoch),
		platform:  newFakePlatform(),
		indicator: &fakeIndicator{},
		kv:        storage.NewMemoryKV(),
		logs:      &bytes.Buffer{},
	}
	h.accrual = storage.NewAccrual(h.kv)
	h.logw = &syncWriter{buf: h.logs}

	opts := Options{
		Platform:     h.platform,
		Indicator:    h.indicator,
		Accrual:      h.accrual,
		Clock:        h.clock,
		Logger:       slog.New(slog.NewTextHandler(h.logw, &slog.HandlerOptions{Level: slog.LevelDebug})),
		PollInterval: time.Hour,
	}
	for _, m := range mutate {
		m(&opts)
	}

	tr, err := New(opts)
	require.NoError(t, err)
	h.tr = tr

	tr.writes.start()
	t.Cleanup(tr.writes.stop)
	return h
}

// settle runs everything queued on the mailbox and waits for writes.
func (h *harness) settle() {
	h.tr.drain(context.Background())
	h.tr.Flush()
}

func (h *harness) stats() storage.StatsByDay {
	h.t.Helper()
	h.tr.Flush()
	s, err := h.accrual.Load(context.Background())
	require.NoError(h.t, err)
	return s
}

func (h *harness) today() string {
	return day.Key(h.clock.Now())
}

// startOn opens a session on url in tab 1 of window 1.
func (h *harness) startOn(url string) {
	h.t.Helper()
	h.platform.setTab(1, 1, url)
	h.tr.TabActivated()
	h.settle()
	require.True(h.t, h.tr.state.IsTiming, "expected timing to start on %s", url)
}

type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (h *harness) logText() string {
	h.tr.Flush()
	h.logw.mu.Lock()
	defer h.logw.mu.Unlock()
	return h.logs.String()
}
