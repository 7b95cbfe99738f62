package tracker

import "time"

// State is the tracker's view of the current session and environment.
// It is owned by the tracker loop goroutine; only the reconciler and the
// session splitter mutate it.
type State struct {
	IsTiming  bool
	TabID     TabID
	WindowID  WindowID
	Domain    string
	Start     time.Time
	SessionID string

	IsFocused bool
	IsIdle    bool
}

// restState is the state at process start: nothing timed, assume focused
// and not idle.
func restState() State {
	return State{
		TabID:     NoTab,
		WindowID:  WindowIDNone,
		IsFocused: true,
	}
}

// canTrack reports whether the environment allows time to accrue.
func (s *State) canTrack() bool {
	return s.IsFocused && !s.IsIdle
}

// timing reports whether a well-formed session is open.
func (s *State) timing() bool {
	return s.IsTiming && !s.Start.IsZero() && s.Domain != ""
}
