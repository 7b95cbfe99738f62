package daemon

import (
	"fmt"
	"net/http"

	"github.com/runnerr0/domaintime/internal/tracker"
)

// Browser event types accepted on /events.
const (
	EventTabActivated       = "tabActivated"
	EventTabUpdated         = "tabUpdated"
	EventTabRemoved         = "tabRemoved"
	EventTabDetached        = "tabDetached"
	EventWindowFocusChanged = "windowFocusChanged"
	EventIdleStateChanged   = "idleStateChanged"
	EventStartup            = "startup"
	EventInstalled          = "installed"
)

// Event is one raw browser event forwarded by the shim.
type Event struct {
	Type       string          `json:"type"`
	Tab        *tracker.Tab    `json:"tab,omitempty"`
	Change     *tracker.Change `json:"change,omitempty"`
	TabID      *int            `json:"tabId,omitempty"`
	WindowID   *int            `json:"windowId,omitempty"`
	WindowType string          `json:"windowType,omitempty"`
	State      string          `json:"state,omitempty"`
}

type acceptedResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if !s.decode(w, r, &ev) {
		return
	}
	if err := s.dispatch(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{OK: true})
}

// dispatch updates the registry first so the reconcile the signal triggers
// sees the new browser state.
func (s *Server) dispatch(ev Event) error {
	switch ev.Type {
	case EventTabActivated:
		if ev.Tab == nil {
			return fmt.Errorf("%s: tab is required", ev.Type)
		}
		s.registry.ActivateTab(*ev.Tab)
		s.tracker.TabActivated()

	case EventTabUpdated:
		if ev.Tab == nil {
			return fmt.Errorf("%s: tab is required", ev.Type)
		}
		var change tracker.Change
		if ev.Change != nil {
			change = *ev.Change
		}
		tab := s.registry.UpdateTab(*ev.Tab, change)
		s.tracker.TabUpdated(tab, change)

	case EventTabRemoved:
		if ev.TabID == nil {
			return fmt.Errorf("%s: tabId is required", ev.Type)
		}
		id := tracker.TabID(*ev.TabID)
		s.registry.RemoveTab(id)
		s.tracker.TabRemoved(id)

	case EventTabDetached:
		if ev.TabID == nil {
			return fmt.Errorf("%s: tabId is required", ev.Type)
		}
		id := tracker.TabID(*ev.TabID)
		s.registry.DetachTab(id)
		s.tracker.TabDetached(id)

	case EventWindowFocusChanged:
		if ev.WindowID == nil {
			return fmt.Errorf("%s: windowId is required", ev.Type)
		}
		id := tracker.WindowID(*ev.WindowID)
		s.registry.FocusWindow(id, tracker.WindowType(ev.WindowType))
		s.tracker.WindowFocusChanged(id)

	case EventIdleStateChanged:
		state := tracker.IdleState(ev.State)
		switch state {
		case tracker.IdleActive, tracker.IdleIdle, tracker.IdleLocked:
		default:
			return fmt.Errorf("%s: unknown state %q", ev.Type, ev.State)
		}
		s.tracker.IdleStateChanged(state)

	case EventStartup, EventInstalled:
		s.tracker.Startup(ev.Type)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	s.logger.Debug("event dispatched", "type", ev.Type)
	return nil
}
