package tracker

import (
	"context"
	"time"
)

// Status is the live snapshot returned to getCurrentTracking requests.
// Pointer fields encode as null when unset.
type Status struct {
	IsTiming       bool    `json:"isTiming"`
	Domain         *string `json:"domain"`
	ElapsedSeconds int64   `json:"elapsedSeconds"`
	IsFocused      bool    `json:"isFocused"`
	IsIdle         bool    `json:"isIdle"`
	TabID          *int    `json:"tabId"`
	WindowID       *int    `json:"windowId"`
	StartMs        *int64  `json:"startMs"`
	NowMs          int64   `json:"nowMs"`
}

// Status returns a snapshot of the tracking state, taken on the loop so it
// is ordered after every signal posted before the call.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if !t.post(func(context.Context) { reply <- t.snapshot() }) {
		return Status{}, ErrStopped
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (t *Tracker) snapshot() Status {
	s := t.state
	now := t.clock.Now()

	st := Status{
		IsTiming:  s.IsTiming,
		IsFocused: s.IsFocused,
		IsIdle:    s.IsIdle,
		NowMs:     now.UnixMilli(),
	}
	if s.Domain != "" {
		d := s.Domain
		st.Domain = &d
	}
	if s.TabID != NoTab {
		id := int(s.TabID)
		st.TabID = &id
	}
	if s.WindowID != WindowIDNone {
		id := int(s.WindowID)
		st.WindowID = &id
	}
	if !s.Start.IsZero() {
		ms := s.Start.UnixMilli()
		st.StartMs = &ms
		if s.IsTiming {
			st.ElapsedSeconds = elapsedSeconds(s.Start, now)
		}
	}
	return st
}

// elapsedSeconds is max(0, floor((now-start)/1000)) in whole milliseconds.
func elapsedSeconds(start, now time.Time) int64 {
	ms := now.UnixMilli() - start.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return ms / 1000
}
