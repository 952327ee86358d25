package appointment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps appointments and advisor templates in process.
// It backs tests and the local lock backend; it also implements
// AdvisorDirectory.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]Appointment
	advisors     map[string]Template
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[string]Appointment),
		advisors:     make(map[string]Template),
	}
}

func (m *MemoryRepository) AddAdvisor(id string, tmpl Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmpl.AdvisorID = id
	m.advisors[id] = tmpl
}

func (m *MemoryRepository) GetTemplate(_ context.Context, advisorID string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.advisors[advisorID]
	if !ok {
		return nil, ErrAdvisorNotFound
	}
	entries := make([]WorkingHoursEntry, len(tmpl.Entries))
	copy(entries, tmpl.Entries)
	tmpl.Entries = entries
	return &tmpl, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) FindByAdvisorAndRange(_ context.Context, advisorID string, start, end time.Time, statuses []Status) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Appointment, 0)
	for _, a := range m.appointments {
		if a.AdvisorID == advisorID && a.Status.in(statuses) && Overlaps(a.ScheduledAt, a.EndsAt(), start, end) {
			out = append(out, a)
		}
	}
	sortBySchedule(out)
	return out, nil
}

func (m *MemoryRepository) ExistsOverlapping(ctx context.Context, advisorID string, start, end time.Time, statuses []Status) (bool, error) {
	found, err := m.FindByAdvisorAndRange(ctx, advisorID, start, end, statuses)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (m *MemoryRepository) FindByIdempotencyKey(_ context.Context, patientID, key string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.appointments {
		if a.PatientID == patientID && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryRepository) ListByParticipant(_ context.Context, userID string, start, end *time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Appointment, 0)
	for _, a := range m.appointments {
		if a.PatientID != userID && a.AdvisorID != userID {
			continue
		}
		if start != nil && !a.EndsAt().After(*start) {
			continue
		}
		if end != nil && !a.ScheduledAt.Before(*end) {
			continue
		}
		out = append(out, a)
	}
	sortBySchedule(out)
	return out, nil
}

// Create enforces the same constraints as the Postgres schema: no two
// holding appointments of one advisor overlap, and idempotency keys are
// unique per patient.
func (m *MemoryRepository) Create(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.appointments[a.ID]; exists {
		return nil, ErrSlotUnavailable
	}
	for _, other := range m.appointments {
		if a.IdempotencyKey != nil && other.PatientID == a.PatientID &&
			other.IdempotencyKey != nil && *other.IdempotencyKey == *a.IdempotencyKey {
			return nil, ErrDuplicateIdempotencyKey
		}
		if a.Status.in(HoldingStatuses) && other.AdvisorID == a.AdvisorID && other.Status.in(HoldingStatuses) &&
			Overlaps(a.ScheduledAt, a.EndsAt(), other.ScheduledAt, other.EndsAt()) {
			return nil, ErrSlotUnavailable
		}
	}

	if a.ModifiedAt.IsZero() {
		a.ModifiedAt = a.CreatedAt
	}
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, from, to Status, modifiedAt time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.ModifiedAt = modifiedAt
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) FindStaleRequested(_ context.Context, startedBefore time.Time, limit int) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Appointment, 0)
	for _, a := range m.appointments {
		if a.Status == StatusRequested && a.ScheduledAt.Before(startedBefore) {
			out = append(out, a)
		}
	}
	sortBySchedule(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev.ID = m.nextEventID
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

func sortBySchedule(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ScheduledAt.Equal(list[j].ScheduledAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].ScheduledAt.Before(list[j].ScheduledAt)
	})
}
