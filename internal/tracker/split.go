package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/runnerr0/domaintime/internal/day"
)

// ErrClockSkew is returned when a session appears to end on an earlier UTC
// day than it started.
var ErrClockSkew = errors.New("session ends before it starts")

// Portion is the part of a session that falls within one UTC day.
type Portion struct {
	Day     string
	Seconds float64
}

// Split partitions the interval [start, now] at UTC day boundaries so each
// portion lies entirely inside one calendar day. Every day from the start
// day to the end day gets exactly one portion, in order. Work is done in
// whole milliseconds; each full day ends at 23:59:59.999 inclusive.
func Split(start, now time.Time) ([]Portion, error) {
	cursorMs := start.UnixMilli()
	nowMs := now.UnixMilli()

	cursorDay := day.Key(time.UnixMilli(cursorMs))
	nowDay := day.Key(time.UnixMilli(nowMs))

	if cursorDay == nowDay {
		return []Portion{{Day: cursorDay, Seconds: float64(nowMs-cursorMs) / 1000}}, nil
	}
	if nowDay < cursorDay {
		return nil, fmt.Errorf("%w: %s > %s", ErrClockSkew, cursorDay, nowDay)
	}

	var out []Portion
	for cursorDay != nowDay {
		end, err := day.EndOfDay(cursorDay)
		if err != nil {
			return nil, err
		}
		endMs := end.UnixMilli()
		out = append(out, Portion{Day: cursorDay, Seconds: float64(endMs-cursorMs+1) / 1000})

		cursorDay, err = day.Next(cursorDay)
		if err != nil {
			return nil, err
		}
		nextStartMs := endMs + 1
		if cursorDay == nowDay {
			out = append(out, Portion{Day: cursorDay, Seconds: float64(nowMs-nextStartMs) / 1000})
		} else {
			cursorMs = nextStartMs
		}
	}
	return out, nil
}
