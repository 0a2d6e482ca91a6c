package slots

import (
	"fmt"
	"time"
)

// Busy is a half-open interval [Start, End) already blocked on the calendar,
// including scheduling buffers around the shoot itself.
type Busy struct {
	Start time.Time
	End   time.Time
}

// Grid describes the admin's bookable day: opening hours and the step between
// candidate start times.
type Grid struct {
	DayStart string // "08:00"
	DayEnd   string // "18:00"
	StepMin  int
}

// Available returns the candidate start times on the given day where a block
// of blockMin minutes fits inside opening hours without overlapping any busy
// window. Results are ascending and deterministic for a fixed input.
func (g Grid) Available(day time.Time, blockMin int, busy []Busy) ([]time.Time, error) {
	if blockMin <= 0 {
		return nil, fmt.Errorf("slots: block minutes must be positive, got %d", blockMin)
	}
	step := g.StepMin
	if step <= 0 {
		step = 30
	}
	open, err := atClock(day, g.DayStart)
	if err != nil {
		return nil, err
	}
	close, err := atClock(day, g.DayEnd)
	if err != nil {
		return nil, err
	}
	if !close.After(open) {
		return nil, fmt.Errorf("slots: day end %q not after day start %q", g.DayEnd, g.DayStart)
	}

	block := time.Duration(blockMin) * time.Minute
	var out []time.Time
	for start := open; !start.Add(block).After(close); start = start.Add(time.Duration(step) * time.Minute) {
		if overlapsAny(start, start.Add(block), busy) {
			continue
		}
		out = append(out, start)
	}
	return out, nil
}

func overlapsAny(start, end time.Time, busy []Busy) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("slots: parse clock %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
