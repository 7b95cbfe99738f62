// Package browser mirrors the host browser's tabs and windows from events
// posted by the extension shim, and pushes indicator state back to it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/runnerr0/domaintime/internal/tracker"
)

// ErrUnknownWindow is returned for windows no event has mentioned.
var ErrUnknownWindow = errors.New("unknown window")

// MinIdleDetectionSeconds is the smallest idle threshold the platform
// accepts.
const MinIdleDetectionSeconds = 15

// IdleNotifier is told when the idle threshold changes.
type IdleNotifier interface {
	SetIdleDetection(seconds int)
}

// Registry is an in-memory mirror of browser tabs and windows. It
// implements tracker.Platform.
type Registry struct {
	mu          sync.RWMutex
	tabs        map[tracker.TabID]tracker.Tab
	windows     map[tracker.WindowID]tracker.Window
	lastFocused tracker.WindowID
	idleSeconds int
	notify      IdleNotifier
}

// NewRegistry returns an empty registry. notify may be nil.
func NewRegistry(notify IdleNotifier) *Registry {
	return &Registry{
		tabs:        make(map[tracker.TabID]tracker.Tab),
		windows:     make(map[tracker.WindowID]tracker.Window),
		lastFocused: tracker.WindowIDNone,
		idleSeconds: tracker.DefaultIdleDetectionSeconds,
		notify:      notify,
	}
}

// ActiveTab returns the active tab of the last-focused window.
func (r *Registry) ActiveTab(context.Context) (*tracker.Tab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lastFocused == tracker.WindowIDNone {
		return nil, nil
	}
	for _, tab := range r.tabs {
		if tab.Active && tab.WindowID == r.lastFocused {
			t := tab
			return &t, nil
		}
	}
	return nil, nil
}

// Window describes window id.
func (r *Registry) Window(_ context.Context, id tracker.WindowID) (*tracker.Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[id]
	if !ok {
		return nil, fmt.Errorf("window %d: %w", id, ErrUnknownWindow)
	}
	return &w, nil
}

// CurrentWindow returns the last-focused window, or nil before any window
// has been focused.
func (r *Registry) CurrentWindow(context.Context) (*tracker.Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[r.lastFocused]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// SetIdleDetectionInterval stores the idle threshold, raised to the
// platform minimum, and forwards it to the notifier.
func (r *Registry) SetIdleDetectionInterval(seconds int) {
	if seconds < MinIdleDetectionSeconds {
		seconds = MinIdleDetectionSeconds
	}
	r.mu.Lock()
	r.idleSeconds = seconds
	notify := r.notify
	r.mu.Unlock()

	if notify != nil {
		notify.SetIdleDetection(seconds)
	}
}

// IdleDetectionSeconds returns the current idle threshold.
func (r *Registry) IdleDetectionSeconds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idleSeconds
}

// ActivateTab marks tab active in its window. The window's other tabs
// become inactive.
func (r *Registry) ActivateTab(tab tracker.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tabs {
		if t.WindowID == tab.WindowID && t.Active {
			t.Active = false
			r.tabs[id] = t
		}
	}
	if prev, ok := r.tabs[tab.ID]; ok && tab.URL == "" {
		tab.URL = prev.URL
	}
	tab.Active = true
	r.tabs[tab.ID] = tab
	r.ensureWindow(tab.WindowID)
}

// UpdateTab merges an update into the mirror and returns the resulting tab.
func (r *Registry) UpdateTab(tab tracker.Tab, change tracker.Change) tracker.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tabs[tab.ID]; ok && tab.URL == "" {
		tab.URL = prev.URL
	}
	if change.URL != "" {
		tab.URL = change.URL
	}
	if tab.Active {
		for id, t := range r.tabs {
			if id != tab.ID && t.WindowID == tab.WindowID && t.Active {
				t.Active = false
				r.tabs[id] = t
			}
		}
	}
	r.tabs[tab.ID] = tab
	r.ensureWindow(tab.WindowID)
	return tab
}

// RemoveTab forgets a closed tab.
func (r *Registry) RemoveTab(id tracker.TabID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, id)
}

// DetachTab takes a tab out of its window until it is attached elsewhere.
func (r *Registry) DetachTab(id tracker.TabID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tabs[id]; ok {
		t.WindowID = tracker.WindowIDNone
		t.Active = false
		r.tabs[id] = t
	}
}

// FocusWindow records that focus moved to window id, or away from every
// browser window for WindowIDNone. kind may be empty when unknown.
func (r *Registry) FocusWindow(id tracker.WindowID, kind tracker.WindowType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for wid, w := range r.windows {
		if w.Focused {
			w.Focused = false
			r.windows[wid] = w
		}
	}
	if id == tracker.WindowIDNone {
		return
	}

	w, ok := r.windows[id]
	if !ok {
		w = tracker.Window{ID: id, Type: tracker.WindowNormal}
	}
	if kind != "" {
		w.Type = kind
	}
	w.Focused = true
	r.windows[id] = w

	// Popups never become the window tabs are read from.
	if w.Type != tracker.WindowPopup {
		r.lastFocused = id
	}
}

// ensureWindow registers id as a normal window if unseen. Callers hold mu.
func (r *Registry) ensureWindow(id tracker.WindowID) {
	if id == tracker.WindowIDNone {
		return
	}
	if _, ok := r.windows[id]; ok {
		return
	}
	r.windows[id] = tracker.Window{ID: id, Type: tracker.WindowNormal}
	if r.lastFocused == tracker.WindowIDNone {
		r.lastFocused = id
	}
}
