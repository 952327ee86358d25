package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDuration is the fixed booking length. Slots tile working hours in
// steps of this size, so it is a policy constant rather than request input.
const DefaultDuration = 60 * time.Minute

// boundaryTolerance lets a window that ends exactly at closing time count
// as fitting.
const boundaryTolerance = time.Second

// ComputeSlots tiles the working hours of date's weekday into windows of
// slotDuration and returns the ones no booked appointment overlaps, in
// chronological order. A trailing remainder shorter than slotDuration is
// dropped. Only BookedStatuses block a window.
func ComputeSlots(tmpl Template, booked []Appointment, date time.Time, slotDuration time.Duration) ([]TimeSlot, error) {
	if slotDuration <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidRequest)
	}

	window, open, err := WorkingWindow(tmpl, date)
	if err != nil {
		return nil, err
	}
	slots := make([]TimeSlot, 0)
	if !open {
		return slots, nil
	}

	blocking := make([]Appointment, 0, len(booked))
	for _, a := range booked {
		if a.Status.in(BookedStatuses) {
			blocking = append(blocking, a)
		}
	}

	limit := window.End.Add(boundaryTolerance)
	for start := window.Start; ; {
		end := start.Add(slotDuration)
		if !end.Before(limit) {
			break
		}
		candidate := TimeSlot{Start: start, End: end}
		if _, conflict := FindConflict(candidate, blocking); !conflict {
			slots = append(slots, candidate)
		}
		start = end
	}

	return slots, nil
}

// WorkingWindow resolves the template entry for date's weekday to absolute
// times in the template's location. open is false when the day has no entry
// or is marked unavailable.
func WorkingWindow(tmpl Template, date time.Time) (window TimeSlot, open bool, err error) {
	loc := tmpl.location()
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	entry, ok := tmpl.EntryFor(day.Weekday())
	if !ok || !entry.Available {
		return TimeSlot{}, false, nil
	}

	openH, openM, err := parseClock(entry.StartTime)
	if err != nil {
		return TimeSlot{}, false, err
	}
	closeH, closeM, err := parseClock(entry.EndTime)
	if err != nil {
		return TimeSlot{}, false, err
	}

	// time.Date normalises 24:00 to midnight of the next day
	window = TimeSlot{
		Start: time.Date(y, m, d, openH, openM, 0, 0, loc),
		End:   time.Date(y, m, d, closeH, closeM, 0, 0, loc),
	}
	if !window.Start.Before(window.End) {
		return TimeSlot{}, false, nil
	}
	return window, true, nil
}

// parseClock parses "HH:mm". "24:00" is accepted as a closing time.
func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:mm", ErrInvalidWorkingHours, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidWorkingHours, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidWorkingHours, s)
	}
	if h == 24 && m == 0 {
		return h, m, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: %q out of range", ErrInvalidWorkingHours, s)
	}
	return h, m, nil
}
