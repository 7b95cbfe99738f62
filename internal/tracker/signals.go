package tracker

import "context"

// Signal entry points. Each is safe to call from any goroutine: it posts
// to the loop, which updates the environment flags and schedules a
// reconciliation.

// Startup resets the indicator, configures idle detection, and reconciles.
// reason is "startup" or "installed".
func (t *Tracker) Startup(reason string) {
	t.post(func(context.Context) { t.onStartup(reason) })
}

// TabActivated reports that the active tab changed.
func (t *Tracker) TabActivated() {
	t.post(func(context.Context) { t.onTabActivated() })
}

// TabUpdated reports a tab update. Only URL changes and load completion of
// the active tab matter.
func (t *Tracker) TabUpdated(tab Tab, change Change) {
	t.post(func(context.Context) { t.onTabUpdated(tab, change) })
}

// WindowFocusChanged reports that focus moved to window id, or to no
// browser window when id is WindowIDNone.
func (t *Tracker) WindowFocusChanged(id WindowID) {
	t.post(func(ctx context.Context) { t.onWindowFocusChanged(ctx, id) })
}

// IdleStateChanged reports a new system idle state.
func (t *Tracker) IdleStateChanged(state IdleState) {
	t.post(func(context.Context) { t.onIdleStateChanged(state) })
}

// TabRemoved reports that a tab was closed.
func (t *Tracker) TabRemoved(id TabID) {
	t.post(func(context.Context) { t.onTabGone(id, "tabs.onRemoved") })
}

// TabDetached reports that a tab was dragged out of its window.
func (t *Tracker) TabDetached(id TabID) {
	t.post(func(context.Context) { t.onTabGone(id, "tabs.onDetached") })
}

func (t *Tracker) onStartup(reason string) {
	t.indicator.SetActive(false)
	t.platform.SetIdleDetectionInterval(t.idleDetectionSeconds)
	t.recompute(reason)
}

func (t *Tracker) onTabActivated() {
	t.state.IsFocused = true
	t.recompute("tabs.onActivated")
}

func (t *Tracker) onTabUpdated(tab Tab, change Change) {
	if !tab.Active {
		return
	}
	if change.URL == "" && change.Status != "complete" {
		return
	}
	t.state.IsFocused = true
	t.recompute("tabs.onUpdated")
}

func (t *Tracker) onWindowFocusChanged(ctx context.Context, id WindowID) {
	if id != WindowIDNone {
		w, err := t.platform.Window(ctx, id)
		if err != nil {
			t.logger.Warn("window lookup failed", "window_id", int(id), "error", err)
		} else if w != nil && w.Type == WindowPopup {
			// Our own popup taking focus says nothing about the page.
			return
		}
	}
	t.state.IsFocused = id != WindowIDNone
	t.recompute("windows.onFocusChanged")
}

func (t *Tracker) onIdleStateChanged(state IdleState) {
	t.state.IsIdle = state == IdleIdle || state == IdleLocked
	t.recompute("idle.onStateChanged")
}

func (t *Tracker) onTabGone(id TabID, reason string) {
	if t.state.TabID != id {
		return
	}
	t.stopTiming(reason)
	t.state.TabID = NoTab
	t.state.Domain = ""
	t.recompute(reason)
}
