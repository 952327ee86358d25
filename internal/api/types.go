package api

import (
	"time"

	"github.com/hackgods/advisor-booking-engine/internal/appointment"
)

type CreateAppointmentRequest struct {
	AdvisorID   string    `json:"advisor_id" validate:"required,max=64"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Type        string    `json:"type" validate:"omitempty,oneof=VIDEO_CALL PHONE_CALL IN_PERSON CHAT"`
	Notes       string    `json:"notes" validate:"max=2000"`
	Symptoms    []string  `json:"symptoms" validate:"max=20,dive,max=200"`
	Priority    string    `json:"priority" validate:"omitempty,oneof=ROUTINE URGENT EMERGENCY"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AppointmentResponse struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	AdvisorID       string    `json:"advisor_id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	Symptoms        []string  `json:"symptoms,omitempty"`
	Priority        string    `json:"priority"`
	Upcoming        bool      `json:"upcoming"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
}

type TimeSlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type WorkingHoursResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResponse struct {
	AdvisorID    string                `json:"advisor_id"`
	Date         string                `json:"date"`
	WorkingHours *WorkingHoursResponse `json:"working_hours,omitempty"`
	Slots        []TimeSlotResponse    `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, now time.Time) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		AdvisorID:       a.AdvisorID,
		Type:            string(a.Type),
		Status:          string(a.Status),
		ScheduledAt:     a.ScheduledAt,
		EndsAt:          a.EndsAt(),
		DurationMinutes: a.DurationMinutes,
		Notes:           a.Notes,
		Symptoms:        a.Symptoms,
		Priority:        string(a.Priority),
		Upcoming:        a.IsUpcoming(now),
		CreatedAt:       a.CreatedAt,
		ModifiedAt:      a.ModifiedAt,
	}
}

func toAvailabilityResponse(a *appointment.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		AdvisorID: a.AdvisorID,
		Date:      a.Date.Format(time.DateOnly),
		Slots:     make([]TimeSlotResponse, 0, len(a.Slots)),
	}
	if a.WorkingHours != nil {
		resp.WorkingHours = &WorkingHoursResponse{Start: a.WorkingHours.StartTime, End: a.WorkingHours.EndTime}
	}
	for _, s := range a.Slots {
		resp.Slots = append(resp.Slots, TimeSlotResponse{Start: s.Start, End: s.End})
	}
	return resp
}
