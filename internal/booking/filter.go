package booking

import "time"

// OpeningRules describes when the salon accepts bookings: weekly closed
// days plus exceptional open/closed date windows.
type OpeningRules struct {
	ClosedWeekdays map[time.Weekday]bool
	OpenWindows    []ScheduleWindow
	ClosedWindows  []ScheduleWindow
}

// SplitWindows partitions schedule windows by kind into opening rules.
func SplitWindows(windows []ScheduleWindow, closedWeekdays map[time.Weekday]bool) OpeningRules {
	r := OpeningRules{ClosedWeekdays: closedWeekdays}
	for _, w := range windows {
		switch w.Kind {
		case WindowOpen:
			r.OpenWindows = append(r.OpenWindows, w)
		case WindowClosed:
			r.ClosedWindows = append(r.ClosedWindows, w)
		}
	}
	return r
}

// FilterOfferable prunes slots that cannot be offered: past slots, slots on
// weekly closed days, and slots inside exceptional closed windows. An
// exceptional open window overrides the weekly closure for its dates, but an
// exceptional closed window always wins, even over an open window covering
// the same date. Pure function over (now, slots, rules).
func FilterOfferable(slots []TimeSlot, rules OpeningRules, now time.Time) []TimeSlot {
	var out []TimeSlot
	for _, s := range slots {
		if !s.StartAt.After(now) {
			continue
		}
		if rules.ClosedWeekdays[s.Date.Weekday()] && !inAnyWindow(rules.OpenWindows, s.Date) {
			continue
		}
		if inAnyWindow(rules.ClosedWindows, s.Date) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func inAnyWindow(windows []ScheduleWindow, date time.Time) bool {
	for _, w := range windows {
		if w.Contains(date) {
			return true
		}
	}
	return false
}
