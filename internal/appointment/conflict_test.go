package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2030, time.January, 7, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d time.Time
		want       bool
	}{
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"partial start", at(9, 30), at(10, 30), at(10, 0), at(11, 0), true},
		{"partial end", at(10, 30), at(11, 30), at(10, 0), at(11, 0), true},
		{"contained", at(10, 15), at(10, 45), at(10, 0), at(11, 0), true},
		{"containing", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"back to back before", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"back to back after", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b, tt.c, tt.d))
			assert.Equal(t, tt.want, Overlaps(tt.c, tt.d, tt.a, tt.b), "overlap must be symmetric")
		})
	}
}

func TestFindConflict(t *testing.T) {
	existing := []Appointment{
		{ID: "early", ScheduledAt: at(9, 0), DurationMinutes: 60},
		{ID: "late", ScheduledAt: at(11, 0), DurationMinutes: 60},
	}

	_, found := FindConflict(TimeSlot{Start: at(10, 0), End: at(11, 0)}, existing)
	assert.False(t, found)

	hit, found := FindConflict(TimeSlot{Start: at(10, 30), End: at(11, 30)}, existing)
	require.True(t, found)
	assert.Equal(t, "late", hit.ID)

	_, found = FindConflict(TimeSlot{Start: at(10, 0), End: at(11, 0)}, nil)
	assert.False(t, found)
}
