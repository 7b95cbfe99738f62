package tracker

import (
	"context"
	"time"
)

// TabID identifies a browser tab. NoTab means no tab.
type TabID int

// WindowID identifies a browser window. WindowIDNone is reported when
// focus leaves every browser window.
type WindowID int

const (
	NoTab        TabID    = -1
	WindowIDNone WindowID = -1
)

// WindowType is the kind of browser window.
type WindowType string

const (
	WindowNormal WindowType = "normal"
	WindowPopup  WindowType = "popup"
)

// IdleState is the system idle state reported by the platform.
type IdleState string

const (
	IdleActive IdleState = "active"
	IdleIdle   IdleState = "idle"
	IdleLocked IdleState = "locked"
)

// Tab describes a browser tab.
type Tab struct {
	ID       TabID    `json:"id"`
	WindowID WindowID `json:"windowId"`
	URL      string   `json:"url"`
	Active   bool     `json:"active"`
}

// Window describes a browser window.
type Window struct {
	ID      WindowID   `json:"id"`
	Type    WindowType `json:"type"`
	Focused bool       `json:"focused"`
}

// Change is the subset of a tab update that matters for tracking.
type Change struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// Platform is the host browser as seen by the tracker.
type Platform interface {
	// ActiveTab returns the active tab of the last-focused window, or nil.
	ActiveTab(ctx context.Context) (*Tab, error)
	// Window describes a window by id.
	Window(ctx context.Context, id WindowID) (*Window, error)
	// CurrentWindow returns the current (last-focused) window.
	CurrentWindow(ctx context.Context) (*Window, error)
	// SetIdleDetectionInterval sets the idle threshold in seconds.
	SetIdleDetectionInterval(seconds int)
}

// Indicator paints the binary active/inactive state.
type Indicator interface {
	SetActive(active bool)
}

// Accruer commits credited seconds for a domain on a day.
type Accruer interface {
	AddSeconds(ctx context.Context, domain string, seconds float64, dayKey string) error
}

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
