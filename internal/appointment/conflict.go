package appointment

import "time"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first appointment whose interval overlaps slot.
func FindConflict(slot TimeSlot, existing []Appointment) (*Appointment, bool) {
	for i := range existing {
		if Overlaps(slot.Start, slot.End, existing[i].ScheduledAt, existing[i].EndsAt()) {
			return &existing[i], true
		}
	}
	return nil, false
}
