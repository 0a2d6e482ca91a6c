package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2026-03-14")
	require.NoError(t, err)
	return d
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2026-03-14 "+clock)
	require.NoError(t, err)
	return ts
}

func TestAvailableFullOpenDay(t *testing.T) {
	grid := Grid{DayStart: "08:00", DayEnd: "18:00", StepMin: 30}
	got, err := grid.Available(day(t), 120, nil)
	require.NoError(t, err)
	// last slot must end by 18:00, so latest start is 16:00
	require.Equal(t, at(t, "08:00"), got[0])
	require.Equal(t, at(t, "16:00"), got[len(got)-1])
	require.Len(t, got, 17)
}

func TestAvailableExcludesBusyOverlaps(t *testing.T) {
	grid := Grid{DayStart: "08:00", DayEnd: "12:00", StepMin: 60}
	busy := []Busy{{Start: at(t, "09:00"), End: at(t, "10:00")}}
	got, err := grid.Available(day(t), 60, busy)
	require.NoError(t, err)
	require.Equal(t, []time.Time{at(t, "08:00"), at(t, "10:00"), at(t, "11:00")}, got)
}

func TestAvailableBlockSpanningBusyWindow(t *testing.T) {
	grid := Grid{DayStart: "08:00", DayEnd: "12:00", StepMin: 30}
	busy := []Busy{{Start: at(t, "09:30"), End: at(t, "10:00")}}
	got, err := grid.Available(day(t), 120, busy)
	require.NoError(t, err)
	// any 2h block starting 08:00-09:00 overlaps the busy window
	require.Equal(t, []time.Time{at(t, "10:00")}, got)
}

func TestAvailableBlockTooLongForDay(t *testing.T) {
	grid := Grid{DayStart: "08:00", DayEnd: "10:00", StepMin: 30}
	got, err := grid.Available(day(t), 180, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAvailableRejectsBadConfig(t *testing.T) {
	grid := Grid{DayStart: "18:00", DayEnd: "08:00", StepMin: 30}
	_, err := grid.Available(day(t), 60, nil)
	require.Error(t, err)

	_, err = Grid{DayStart: "08:00", DayEnd: "18:00"}.Available(day(t), 0, nil)
	require.Error(t, err)
}
