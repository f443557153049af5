package checkin

import (
	"slices"
	"time"
)

// CheckInLeadTime is how long before departure the airline opens check-in.
const CheckInLeadTime = 24 * time.Hour

// EligibleAt returns when check-in opens for a leg departing at departure.
// The leg's UTC offset is preserved.
func EligibleAt(departure time.Time) time.Time {
	return departure.Add(-CheckInLeadTime)
}

// ComputeWindows converts leg departures into check-in windows. Windows that
// are not strictly after now are dropped; the earliest remaining one becomes Next.
func ComputeWindows(departures []time.Time, now time.Time) Windows {
	var times []time.Time
	for _, d := range departures {
		t := EligibleAt(d)
		if t.After(now) {
			times = append(times, t)
		}
	}
	if len(times) == 0 {
		return Windows{Remaining: []time.Time{}}
	}
	slices.SortStableFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	next := times[0]
	return Windows{Remaining: times[1:], Next: &next}
}
