package booking

import (
	"sort"
	"time"
)

// RequiredSlotCount returns how many contiguous atomic slots a service of the
// given duration needs at the salon's granularity.
func RequiredSlotCount(durationMinutes, granularityMinutes int) int {
	if durationMinutes <= 0 || granularityMinutes <= 0 {
		return 0
	}
	return (durationMinutes + granularityMinutes - 1) / granularityMinutes
}

// BookableStart is one offerable appointment start, annotated with the
// ordered run of slots it would consume.
type BookableStart struct {
	Date    time.Time
	StartAt time.Time
	Run     []TimeSlot
}

// BookableStarts enumerates, per date, every start time at which a run of
// required consecutive slots exists and is available. Runs are matched
// strictly within a single calendar date; a service whose duration would
// spill past midnight is simply never offered on the day's last slots.
//
// The check is a read-only projection: a slot may appear in several
// candidates' runs, since only existence and availability are tested here,
// not consumption. Absence of candidates yields an empty result, never an
// error.
func BookableStarts(slots []TimeSlot, required int, granularity time.Duration) []BookableStart {
	if required <= 0 || granularity <= 0 {
		return nil
	}

	byDay := make(map[time.Time][]TimeSlot)
	for _, s := range slots {
		byDay[s.Date] = append(byDay[s.Date], s)
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var out []BookableStart
	for _, day := range days {
		daySlots := byDay[day]
		sort.Slice(daySlots, func(i, j int) bool { return daySlots[i].StartAt.Before(daySlots[j].StartAt) })

		byStart := make(map[int64]TimeSlot, len(daySlots))
		for _, s := range daySlots {
			byStart[s.StartAt.Unix()] = s
		}

		for _, s := range daySlots {
			if !s.Available {
				continue
			}
			run, ok := collectRun(byStart, s.StartAt, required, granularity)
			if !ok {
				continue
			}
			out = append(out, BookableStart{Date: day, StartAt: s.StartAt, Run: run})
		}
	}
	return out
}

// ExpectedRun resolves the exact run of slots a reservation starting at
// startAt must consume. It reports the starts that are missing or already
// taken so conflicts can be surfaced with detail.
func ExpectedRun(daySlots []TimeSlot, startAt time.Time, required int, granularity time.Duration) (run []TimeSlot, unavailable []time.Time) {
	byStart := make(map[int64]TimeSlot, len(daySlots))
	for _, s := range daySlots {
		byStart[s.StartAt.Unix()] = s
	}

	for k := 0; k < required; k++ {
		at := startAt.Add(time.Duration(k) * granularity)
		s, ok := byStart[at.Unix()]
		if !ok || !s.Available {
			unavailable = append(unavailable, at)
			continue
		}
		run = append(run, s)
	}
	if len(unavailable) > 0 {
		return nil, unavailable
	}
	return run, nil
}

func collectRun(byStart map[int64]TimeSlot, startAt time.Time, required int, granularity time.Duration) ([]TimeSlot, bool) {
	run := make([]TimeSlot, 0, required)
	for k := 0; k < required; k++ {
		s, ok := byStart[startAt.Add(time.Duration(k)*granularity).Unix()]
		if !ok || !s.Available {
			return nil, false
		}
		run = append(run, s)
	}
	return run, true
}
