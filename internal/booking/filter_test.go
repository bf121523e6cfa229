package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func window(kind WindowKind, start, end time.Time) ScheduleWindow {
	return ScheduleWindow{ID: uuid.New(), Kind: kind, StartDate: start, EndDate: end}
}

func TestFilterOfferableExcludesPast(t *testing.T) {
	date := day(2026, time.September, 7)
	now := date.Add(10 * time.Hour) // 10:00 that day

	slots := []TimeSlot{
		slotAt(date, 9, 0, true),   // past
		slotAt(date, 10, 0, true),  // exactly now, not strictly future
		slotAt(date, 10, 30, true), // future
	}

	out := FilterOfferable(slots, OpeningRules{}, now)
	if len(out) != 1 {
		t.Fatalf("got %d slots, want 1", len(out))
	}
	if got := out[0].StartAt.Format(ClockLayout); got != "10:30" {
		t.Errorf("kept %s, want 10:30", got)
	}
}

func TestFilterOfferableWeeklyClosure(t *testing.T) {
	sunday := day(2026, time.September, 6)
	monday := day(2026, time.September, 7)
	now := day(2026, time.September, 1)

	rules := OpeningRules{
		ClosedWeekdays: map[time.Weekday]bool{time.Sunday: true},
	}

	out := FilterOfferable([]TimeSlot{
		slotAt(sunday, 10, 0, true),
		slotAt(monday, 10, 0, true),
	}, rules, now)

	if len(out) != 1 {
		t.Fatalf("got %d slots, want 1", len(out))
	}
	if !out[0].Date.Equal(monday) {
		t.Errorf("kept slot on %v, want the Monday slot", out[0].Date)
	}
}

func TestFilterOfferableOpenWindowOverridesWeeklyClosure(t *testing.T) {
	sunday := day(2026, time.September, 6)
	now := day(2026, time.September, 1)

	rules := OpeningRules{
		ClosedWeekdays: map[time.Weekday]bool{time.Sunday: true},
		OpenWindows:    []ScheduleWindow{window(WindowOpen, sunday, sunday)},
	}

	out := FilterOfferable([]TimeSlot{slotAt(sunday, 10, 0, true)}, rules, now)
	if len(out) != 1 {
		t.Fatalf("exceptionally open Sunday should be offerable, got %d slots", len(out))
	}
}

func TestFilterOfferableClosedWindowAlwaysWins(t *testing.T) {
	sunday := day(2026, time.September, 6)
	now := day(2026, time.September, 1)

	// The same date is both exceptionally open and exceptionally closed;
	// the closure takes precedence.
	rules := OpeningRules{
		ClosedWeekdays: map[time.Weekday]bool{time.Sunday: true},
		OpenWindows:    []ScheduleWindow{window(WindowOpen, sunday, sunday)},
		ClosedWindows:  []ScheduleWindow{window(WindowClosed, sunday, sunday)},
	}

	out := FilterOfferable([]TimeSlot{slotAt(sunday, 10, 0, true)}, rules, now)
	if len(out) != 0 {
		t.Fatalf("closed window must win over open window, got %d slots", len(out))
	}
}

func TestFilterOfferableClosedWindowRange(t *testing.T) {
	now := day(2026, time.September, 1)
	rules := OpeningRules{
		ClosedWindows: []ScheduleWindow{
			window(WindowClosed, day(2026, time.September, 14), day(2026, time.September, 18)),
		},
	}

	slots := []TimeSlot{
		slotAt(day(2026, time.September, 13), 10, 0, true), // day before
		slotAt(day(2026, time.September, 14), 10, 0, true), // first closed day
		slotAt(day(2026, time.September, 18), 10, 0, true), // last closed day
		slotAt(day(2026, time.September, 19), 10, 0, true), // day after
	}

	out := FilterOfferable(slots, rules, now)
	if len(out) != 2 {
		t.Fatalf("got %d slots, want 2", len(out))
	}
	if !out[0].Date.Equal(day(2026, time.September, 13)) || !out[1].Date.Equal(day(2026, time.September, 19)) {
		t.Errorf("kept wrong dates: %v, %v", out[0].Date, out[1].Date)
	}
}

func TestSplitWindows(t *testing.T) {
	d := day(2026, time.September, 6)
	windows := []ScheduleWindow{
		window(WindowOpen, d, d),
		window(WindowClosed, d, d),
		window(WindowClosed, d, d),
	}

	rules := SplitWindows(windows, map[time.Weekday]bool{time.Sunday: true})
	if len(rules.OpenWindows) != 1 || len(rules.ClosedWindows) != 2 {
		t.Fatalf("got %d open / %d closed windows, want 1 / 2", len(rules.OpenWindows), len(rules.ClosedWindows))
	}
	if !rules.ClosedWeekdays[time.Sunday] {
		t.Error("closed weekdays not carried over")
	}
}
