package appointment

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

var allStatuses = []Status{
	StatusRequested,
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// BookedStatuses block a slot in the availability view.
var BookedStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress}

// HoldingStatuses reserve a window against new booking requests.
// A pending request holds its window until it is accepted or cancelled.
var HoldingStatuses = []Status{StatusRequested, StatusScheduled, StatusConfirmed, StatusInProgress}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range allStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s Status) in(set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeVideoCall Type = "VIDEO_CALL"
	TypePhoneCall Type = "PHONE_CALL"
	TypeInPerson  Type = "IN_PERSON"
	TypeChat      Type = "CHAT"
)

func (t Type) Valid() bool {
	switch t {
	case TypeVideoCall, TypePhoneCall, TypeInPerson, TypeChat:
		return true
	}
	return false
}

type Priority string

const (
	PriorityRoutine   Priority = "ROUTINE"
	PriorityUrgent    Priority = "URGENT"
	PriorityEmergency Priority = "EMERGENCY"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

func DayOf(wd time.Weekday) DayOfWeek {
	switch wd {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Appointment is a scheduled consultation between a patient and an advisor.
// Its interval is [ScheduledAt, ScheduledAt+DurationMinutes).
type Appointment struct {
	ID              string
	PatientID       string
	AdvisorID       string
	Type            Type
	Status          Status
	ScheduledAt     time.Time
	DurationMinutes int
	Notes           string
	Symptoms        []string
	Priority        Priority
	IdempotencyKey  *string
	CreatedAt       time.Time
	ModifiedAt      time.Time
}

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) Slot() TimeSlot {
	return TimeSlot{Start: a.ScheduledAt, End: a.EndsAt()}
}

// IsUpcoming reports whether the appointment lies ahead and is still on.
func (a Appointment) IsUpcoming(now time.Time) bool {
	return a.ScheduledAt.After(now) && (a.Status == StatusScheduled || a.Status == StatusConfirmed)
}

// WorkingHoursEntry is one weekday rule. Times are local "HH:mm".
type WorkingHoursEntry struct {
	DayOfWeek DayOfWeek
	StartTime string
	EndTime   string
	Available bool
}

// Template is an advisor's weekly working hours.
type Template struct {
	AdvisorID string
	Location  *time.Location
	Entries   []WorkingHoursEntry
}

// EntryFor returns the first entry for the weekday.
func (t Template) EntryFor(wd time.Weekday) (WorkingHoursEntry, bool) {
	day := DayOf(wd)
	for _, e := range t.Entries {
		if e.DayOfWeek == day {
			return e, true
		}
	}
	return WorkingHoursEntry{}, false
}

func (t Template) location() *time.Location {
	if t.Location == nil {
		return time.UTC
	}
	return t.Location
}

type TimeSlot struct {
	Start time.Time
	End   time.Time
}

func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Availability is the bookable view of one advisor day.
type Availability struct {
	AdvisorID    string
	Date         time.Time
	WorkingHours *WorkingHoursEntry
	Slots        []TimeSlot
}

type CreateRequest struct {
	AdvisorID      string
	ScheduledAt    time.Time
	Type           Type
	Notes          string
	Symptoms       []string
	Priority       Priority
	IdempotencyKey string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}
