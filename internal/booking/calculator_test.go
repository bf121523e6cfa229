package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRequiredSlotCount(t *testing.T) {
	cases := []struct {
		name        string
		duration    int
		granularity int
		want        int
	}{
		{"exact single", 30, 30, 1},
		{"exact double", 60, 30, 2},
		{"rounds up", 45, 30, 2},
		{"shorter than granularity", 15, 30, 1},
		{"long service", 90, 30, 3},
		{"hourly granularity", 90, 60, 2},
		{"zero duration", 0, 30, 0},
		{"zero granularity", 30, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RequiredSlotCount(tc.duration, tc.granularity)
			if got != tc.want {
				t.Errorf("RequiredSlotCount(%d, %d) = %d, want %d", tc.duration, tc.granularity, got, tc.want)
			}
		})
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func slotAt(date time.Time, hour, min int, available bool) TimeSlot {
	return TimeSlot{
		ID:        uuid.New(),
		Date:      date,
		StartAt:   date.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute),
		Available: available,
	}
}

// gridDay lays down a contiguous run of available slots from 09:00.
func gridDay(date time.Time, granularity time.Duration, count int) []TimeSlot {
	slots := make([]TimeSlot, 0, count)
	at := date.Add(9 * time.Hour)
	for i := 0; i < count; i++ {
		slots = append(slots, TimeSlot{
			ID:        uuid.New(),
			Date:      date,
			StartAt:   at,
			Available: true,
		})
		at = at.Add(granularity)
	}
	return slots
}

func TestBookableStartsContiguousRuns(t *testing.T) {
	date := day(2026, time.September, 7)
	// 09:00 09:30 10:00 10:30, all available
	slots := gridDay(date, 30*time.Minute, 4)

	// A 60-minute service needs 2 slots: starts at 09:00, 09:30 and 10:00.
	starts := BookableStarts(slots, 2, 30*time.Minute)
	if len(starts) != 3 {
		t.Fatalf("got %d starts, want 3", len(starts))
	}

	want := []string{"09:00", "09:30", "10:00"}
	for i, bs := range starts {
		if got := bs.StartAt.Format(ClockLayout); got != want[i] {
			t.Errorf("start[%d] = %s, want %s", i, got, want[i])
		}
		if len(bs.Run) != 2 {
			t.Errorf("start[%d] run has %d slots, want 2", i, len(bs.Run))
		}
		if !bs.Date.Equal(date) {
			t.Errorf("start[%d] date = %v, want %v", i, bs.Date, date)
		}
	}
}

func TestBookableStartsGapBreaksRun(t *testing.T) {
	date := day(2026, time.September, 7)
	slots := []TimeSlot{
		slotAt(date, 9, 0, true),
		slotAt(date, 9, 30, false), // taken
		slotAt(date, 10, 0, true),
		slotAt(date, 10, 30, true),
	}

	starts := BookableStarts(slots, 2, 30*time.Minute)
	if len(starts) != 1 {
		t.Fatalf("got %d starts, want 1", len(starts))
	}
	if got := starts[0].StartAt.Format(ClockLayout); got != "10:00" {
		t.Errorf("start = %s, want 10:00", got)
	}
}

func TestBookableStartsNeverSpansDates(t *testing.T) {
	d1 := day(2026, time.September, 7)
	d2 := day(2026, time.September, 8)

	// Last slot of d1 plus first slot of d2 would be contiguous on the
	// clock if the days touched, but runs must stay within one date.
	slots := []TimeSlot{
		slotAt(d1, 23, 30, true),
		slotAt(d2, 0, 0, true),
	}

	starts := BookableStarts(slots, 2, 30*time.Minute)
	if len(starts) != 0 {
		t.Fatalf("got %d starts, want 0 (runs must not span dates)", len(starts))
	}
}

func TestBookableStartsSingleSlotService(t *testing.T) {
	date := day(2026, time.September, 7)
	slots := []TimeSlot{
		slotAt(date, 9, 0, true),
		slotAt(date, 9, 30, false),
		slotAt(date, 10, 0, true),
	}

	starts := BookableStarts(slots, 1, 30*time.Minute)
	if len(starts) != 2 {
		t.Fatalf("got %d starts, want 2", len(starts))
	}
}

func TestBookableStartsOrderedAcrossDays(t *testing.T) {
	d1 := day(2026, time.September, 7)
	d2 := day(2026, time.September, 8)

	slots := append(gridDay(d2, 30*time.Minute, 2), gridDay(d1, 30*time.Minute, 2)...)

	starts := BookableStarts(slots, 1, 30*time.Minute)
	if len(starts) != 4 {
		t.Fatalf("got %d starts, want 4", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if starts[i].StartAt.Before(starts[i-1].StartAt) {
			t.Fatalf("starts out of order: %v before %v", starts[i].StartAt, starts[i-1].StartAt)
		}
	}
}

func TestExpectedRun(t *testing.T) {
	date := day(2026, time.September, 7)
	daySlots := []TimeSlot{
		slotAt(date, 9, 0, true),
		slotAt(date, 9, 30, true),
		slotAt(date, 10, 0, false),
	}

	run, unavailable := ExpectedRun(daySlots, daySlots[0].StartAt, 2, 30*time.Minute)
	if len(unavailable) != 0 {
		t.Fatalf("unexpected unavailable starts: %v", unavailable)
	}
	if len(run) != 2 {
		t.Fatalf("run has %d slots, want 2", len(run))
	}
	if run[0].ID != daySlots[0].ID || run[1].ID != daySlots[1].ID {
		t.Error("run slots do not match the expected sequence")
	}
}

func TestExpectedRunReportsBlockedStarts(t *testing.T) {
	date := day(2026, time.September, 7)
	daySlots := []TimeSlot{
		slotAt(date, 9, 0, true),
		slotAt(date, 9, 30, false),
		// 10:00 missing entirely
	}

	run, unavailable := ExpectedRun(daySlots, daySlots[0].StartAt, 3, 30*time.Minute)
	if run != nil {
		t.Fatalf("expected nil run, got %d slots", len(run))
	}
	if len(unavailable) != 2 {
		t.Fatalf("got %d unavailable starts, want 2", len(unavailable))
	}
	if got := unavailable[0].Format(ClockLayout); got != "09:30" {
		t.Errorf("unavailable[0] = %s, want 09:30", got)
	}
	if got := unavailable[1].Format(ClockLayout); got != "10:00" {
		t.Errorf("unavailable[1] = %s, want 10:00", got)
	}
}
