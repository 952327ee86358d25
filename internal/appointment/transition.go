package appointment

import "fmt"

type ActorRole string

const (
	RolePatient ActorRole = "patient"
	RoleAdvisor ActorRole = "advisor"
	// RoleSystem is the expiry worker acting without a user.
	RoleSystem ActorRole = "system"
)

// transitions is the full state machine. Anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusRequested:  {StatusScheduled, StatusCancelled, StatusNoShow},
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// RoleFor resolves which party of the appointment the actor is.
// The advisor role wins if an actor is somehow both.
func RoleFor(a *Appointment, actorID string) (ActorRole, error) {
	switch {
	case actorID == "":
		return "", ErrAccessDenied
	case actorID == a.AdvisorID:
		return RoleAdvisor, nil
	case actorID == a.PatientID:
		return RolePatient, nil
	default:
		return "", ErrAccessDenied
	}
}

func mayRequest(role ActorRole, to Status) bool {
	switch role {
	case RoleAdvisor:
		return true
	case RolePatient, RoleSystem:
		return to == StatusCancelled
	default:
		return false
	}
}

// ValidateTransition checks authorization first and the state machine second.
func ValidateTransition(from, to Status, role ActorRole) error {
	if !mayRequest(role, to) {
		return fmt.Errorf("%w: %s may not set status %s", ErrAccessDenied, role, to)
	}
	next, known := transitions[from]
	if !known {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, from)
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
