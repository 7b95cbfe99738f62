// Package tracker attributes foreground browsing time to domains.
//
// A Tracker owns a single State and mutates it only from its Run loop.
// Platform signals are posted to the loop's mailbox; each one updates the
// environment flags and schedules a debounced reconciliation, which decides
// whether a session should be open and for which domain. Closing a session
// splits its elapsed time at UTC day boundaries and hands each portion to a
// background writer.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/domaintime/internal/domain"
)

// ErrStopped is returned by Status once the loop has exited.
var ErrStopped = errors.New("tracker stopped")

// DefaultPollInterval is how often the focus fallback poll runs.
const DefaultPollInterval = 10 * time.Second

// DefaultIdleDetectionSeconds is the idle threshold handed to the platform
// on startup.
const DefaultIdleDetectionSeconds = 60

// Options configures a Tracker. Platform, Indicator, and Accrual are required.
type Options struct {
	Platform  Platform
	Indicator Indicator
	Accrual   Accruer
	Clock     Clock
	Logger    *slog.Logger

	IdleDetectionSeconds int
	PollInterval         time.Duration

	// CreditOnSwitch credits the outgoing session when the tracked tab or
	// domain changes. When false, time on the previous domain since the
	// last reconciliation is dropped.
	CreditOnSwitch bool
	IgnoreDomains  []string
}

// Tracker is the tracking state machine.
type Tracker struct {
	state            State
	reconcilePending bool

	platform  Platform
	indicator Indicator
	clock     Clock
	logger    *slog.Logger
	ignore    domain.Set

	idleDetectionSeconds int
	pollInterval         time.Duration
	creditOnSwitch       bool

	mailbox *queue[func(context.Context)]
	writes  *writeQueue
	running atomic.Bool
}

// New creates a Tracker at rest.
func New(opts Options) (*Tracker, error) {
	if opts.Platform == nil {
		return nil, errors.New("tracker: platform is required")
	}
	if opts.Indicator == nil {
		return nil, errors.New("tracker: indicator is required")
	}
	if opts.Accrual == nil {
		return nil, errors.New("tracker: accrual is required")
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.IdleDetectionSeconds <= 0 {
		opts.IdleDetectionSeconds = DefaultIdleDetectionSeconds
	}

	return &Tracker{
		state:                restState(),
		platform:             opts.Platform,
		indicator:            opts.Indicator,
		clock:                opts.Clock,
		logger:               opts.Logger,
		ignore:               domain.NewSet(opts.IgnoreDomains),
		idleDetectionSeconds: opts.IdleDetectionSeconds,
		pollInterval:         opts.PollInterval,
		creditOnSwitch:       opts.CreditOnSwitch,
		mailbox:              newQueue[func(context.Context)](),
		writes:               newWriteQueue(opts.Accrual, opts.Logger),
	}, nil
}

// Run processes signals until ctx is cancelled. On exit the open session,
// if any, is credited and pending writes are flushed. Run may be called
// only once.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.New("tracker: already running")
	}

	t.writes.start()
	defer t.writes.stop()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	t.logger.Info("tracker started",
		"poll_interval", t.pollInterval.String(),
		"idle_detection_seconds", t.idleDetectionSeconds,
		"credit_on_switch", t.creditOnSwitch)

	for {
		select {
		case <-ctx.Done():
			t.mailbox.Close()
			t.stopTiming("shutdown")
			t.logger.Info("tracker stopping",
				"reason", ctx.Err(), "discarded_signals", t.mailbox.Len())
			return nil
		case <-ticker.C:
			t.pollFocus(ctx)
		case <-t.mailbox.Wait():
			t.drain(ctx)
		}
	}
}

// Flush blocks until every credit issued so far has been persisted or has
// failed.
func (t *Tracker) Flush() {
	t.writes.Flush()
}

// post schedules fn on the loop. Safe from any goroutine.
func (t *Tracker) post(fn func(context.Context)) bool {
	return t.mailbox.Enqueue(fn)
}

// drain runs every queued mailbox item, including ones queued while
// draining.
func (t *Tracker) drain(ctx context.Context) {
	for {
		fn, ok := t.mailbox.TryDequeue()
		if !ok {
			return
		}
		fn(ctx)
	}
}

// recompute schedules a reconciliation on the next loop turn. While one is
// already pending, further requests are dropped; the pending one will see
// the latest flags.
func (t *Tracker) recompute(reason string) {
	if t.reconcilePending {
		t.logger.Debug("reconcile coalesced", "reason", reason)
		return
	}
	t.reconcilePending = true
	t.post(func(ctx context.Context) {
		t.reconcilePending = false
		t.reconcile(ctx, reason)
	})
}

// reconcile decides whether a session should be open and for which tab and
// domain, and starts or stops timing to match.
func (t *Tracker) reconcile(ctx context.Context, reason string) {
	s := &t.state
	canTrack := s.canTrack()

	var active *Tab
	if canTrack {
		tab, err := t.platform.ActiveTab(ctx)
		if err != nil {
			t.logger.Warn("active tab query failed", "reason", reason, "error", err)
		} else {
			active = tab
		}
	}

	newDomain, newTab, newWindow := "", NoTab, WindowIDNone
	if active != nil && active.URL != "" {
		newDomain = t.resolve(active.URL)
		newTab = active.ID
		newWindow = active.WindowID
	}

	timing := s.timing()

	if !canTrack || newDomain == "" {
		if timing {
			t.stopTiming("pause:" + reason)
		}
		s.IsTiming = false
		t.indicator.SetActive(false)
		return
	}

	if timing && s.TabID == newTab && s.Domain == newDomain {
		return
	}
	if timing && t.creditOnSwitch {
		t.stopTiming("switch:" + reason)
	}

	s.TabID = newTab
	s.WindowID = newWindow
	s.Domain = newDomain
	s.Start = t.clock.Now()
	s.SessionID = uuid.NewString()
	s.IsTiming = true
	t.indicator.SetActive(true)

	t.logger.Info("session started",
		"reason", reason, "domain", newDomain,
		"tab_id", int(newTab), "window_id", int(newWindow),
		"session_id", s.SessionID)
}

// stopTiming closes the open session and credits its elapsed time, split
// by UTC day. Calling it while not timing does nothing.
func (t *Tracker) stopTiming(reason string) {
	s := &t.state
	if !s.IsTiming {
		return
	}

	now := t.clock.Now()
	if s.Domain == "" || s.Start.IsZero() {
		t.logger.Warn("stop timing: inconsistent state",
			"domain", s.Domain, "start", s.Start, "reason", reason)
		s.IsTiming = false
		s.Start = time.Time{}
		t.indicator.SetActive(false)
		return
	}

	portions, err := Split(s.Start, now)
	if err != nil {
		t.logger.Warn("session not credited", "reason", reason, "domain", s.Domain, "error", err)
	}
	for _, p := range portions {
		t.writes.Submit(credit{
			Domain:    s.Domain,
			Day:       p.Day,
			Seconds:   p.Seconds,
			SessionID: s.SessionID,
		})
	}

	t.logger.Info("session stopped",
		"reason", reason, "domain", s.Domain,
		"elapsed_ms", now.Sub(s.Start).Milliseconds(),
		"buckets", len(portions), "session_id", s.SessionID)

	s.Start = time.Time{}
	s.IsTiming = false
	t.indicator.SetActive(false)
}

// pollFocus is the low-frequency fallback for focus changes the platform
// failed to report.
func (t *Tracker) pollFocus(ctx context.Context) {
	w, err := t.platform.CurrentWindow(ctx)
	if err != nil {
		t.logger.Warn("current window query failed", "error", err)
		return
	}
	if w != nil {
		t.recompute("poll.focus")
	}
}

// resolve maps a tab address to the domain to credit, or "".
func (t *Tracker) resolve(rawURL string) string {
	d, ok := domain.FromURL(rawURL)
	if !ok {
		return ""
	}
	if t.ignore.Contains(d) {
		t.logger.Debug("domain ignored", "domain", d)
		return ""
	}
	return d
}
