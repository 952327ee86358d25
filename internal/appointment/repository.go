package appointment

import (
	"context"
	"time"
)

// Repository contains all DB interactions needed by the service.
// Range arguments select appointments whose interval intersects [start, end).
type Repository interface {
	FindByID(ctx context.Context, id string) (*Appointment, error)
	FindByAdvisorAndRange(ctx context.Context, advisorID string, start, end time.Time, statuses []Status) ([]Appointment, error)

	// For conflict checks
	ExistsOverlapping(ctx context.Context, advisorID string, start, end time.Time, statuses []Status) (bool, error)
	FindByIdempotencyKey(ctx context.Context, patientID, key string) (*Appointment, error)

	// Listing for a participant, optionally limited to a range
	ListByParticipant(ctx context.Context, userID string, start, end *time.Time) ([]Appointment, error)

	// Creation and updates
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, modifiedAt time.Time) (*Appointment, error)

	// Expiry worker
	FindStaleRequested(ctx context.Context, startedBefore time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// AdvisorDirectory supplies advisor working hours. Returns ErrAdvisorNotFound
// for unknown ids.
type AdvisorDirectory interface {
	GetTemplate(ctx context.Context, advisorID string) (*Template, error)
}
