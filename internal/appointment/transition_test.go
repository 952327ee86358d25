package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransitionAdvisor(t *testing.T) {
	allowed := map[Status][]Status{
		StatusRequested:  {StatusScheduled, StatusCancelled, StatusNoShow},
		StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
		StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
		StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := ValidateTransition(from, to, RoleAdvisor)
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalStatusesRejectEverything(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, from.IsTerminal())
		for _, to := range allStatuses {
			assert.ErrorIs(t, ValidateTransition(from, to, RoleAdvisor), ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
}

func TestValidateTransitionPatient(t *testing.T) {
	for _, from := range []Status{StatusRequested, StatusScheduled, StatusConfirmed, StatusInProgress} {
		assert.NoError(t, ValidateTransition(from, StatusCancelled, RolePatient))
	}

	for _, to := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusNoShow} {
		assert.ErrorIs(t, ValidateTransition(StatusRequested, to, RolePatient), ErrAccessDenied, "patient -> %s", to)
	}
}

func TestValidateTransitionChecksRoleFirst(t *testing.T) {
	// not a valid transition either, but the role check comes first
	err := ValidateTransition(StatusCompleted, StatusConfirmed, RolePatient)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrInvalidTransition)

	err = ValidateTransition(StatusCompleted, StatusCancelled, RolePatient)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidateTransitionSystem(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusRequested, StatusCancelled, RoleSystem))
	assert.ErrorIs(t, ValidateTransition(StatusRequested, StatusScheduled, RoleSystem), ErrAccessDenied)
	assert.ErrorIs(t, ValidateTransition(StatusRequested, StatusCancelled, ActorRole("")), ErrAccessDenied)
}

func TestRoleFor(t *testing.T) {
	a := &Appointment{PatientID: "pat-1", AdvisorID: "adv-1"}

	role, err := RoleFor(a, "adv-1")
	require.NoError(t, err)
	assert.Equal(t, RoleAdvisor, role)

	role, err = RoleFor(a, "pat-1")
	require.NoError(t, err)
	assert.Equal(t, RolePatient, role)

	_, err = RoleFor(a, "someone-else")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = RoleFor(a, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
}
