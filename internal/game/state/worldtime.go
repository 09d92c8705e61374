package state

import (
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
)

// Calendar bounds for WorldTime carry. The in-game calendar uses 30-day months.
const (
	daysPerMonth   = 30
	monthsPerYear  = 12
	microsPerSec   = 1_000_000
	secsPerMinute  = 60
	minutesPerHour = 60
	hoursPerDay    = 24
)

// WorldTime is the in-game clock stored at world_data.world_time.
type WorldTime struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Microsecond int
}

// WorldTimeOf reads world_data.world_time from s.
//
// Postcondition: Returns (time, true) when a world_time map is present; missing
// components read as zero.
func WorldTimeOf(s map[string]any) (WorldTime, bool) {
	world := Section(s, KeyWorldData)
	raw, ok := world[KeyWorldTime].(map[string]any)
	if !ok {
		return WorldTime{}, false
	}
	get := func(k string) int {
		n, _ := numeric.ToInt(raw[k])
		return n
	}
	return WorldTime{
		Year:        get("year"),
		Month:       get("month"),
		Day:         get("day"),
		Hour:        get("hour"),
		Minute:      get("minute"),
		Second:      get("second"),
		Microsecond: get("microsecond"),
	}, true
}

// ToMap renders t in the persisted layout.
func (t WorldTime) ToMap() map[string]any {
	return map[string]any{
		"year":        t.Year,
		"month":       t.Month,
		"day":         t.Day,
		"hour":        t.Hour,
		"minute":      t.Minute,
		"second":      t.Second,
		"microsecond": t.Microsecond,
	}
}

// TickMicrosecond returns t advanced by one microsecond with carry through the calendar.
func (t WorldTime) TickMicrosecond() WorldTime {
	t.Microsecond++
	if t.Microsecond < microsPerSec {
		return t
	}
	t.Microsecond = 0
	t.Second++
	if t.Second < secsPerMinute {
		return t
	}
	t.Second = 0
	t.Minute++
	if t.Minute < minutesPerHour {
		return t
	}
	t.Minute = 0
	t.Hour++
	if t.Hour < hoursPerDay {
		return t
	}
	t.Hour = 0
	t.Day++
	if t.Day <= daysPerMonth {
		return t
	}
	t.Day = 1
	t.Month++
	if t.Month <= monthsPerYear {
		return t
	}
	t.Month = 1
	t.Year++
	return t
}

// Compare returns -1, 0, or +1 as t is before, equal to, or after o.
func (t WorldTime) Compare(o WorldTime) int {
	a := [...]int{t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Microsecond}
	b := [...]int{o.Year, o.Month, o.Day, o.Hour, o.Minute, o.Second, o.Microsecond}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
