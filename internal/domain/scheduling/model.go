package scheduling

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/platform/apperr"
)

// WeeklyAvailability maps to the weekly_availability table: a recurring
// window in which a doctor accepts bookings.
type WeeklyAvailability struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DayOfWeek   Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime   TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay `db:"end_time" json:"end_time"`
	Capacity    int       `db:"capacity" json:"capacity"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultCapacity is used when a window is created without one.
const DefaultCapacity = 20

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DefaultEstimatedDuration is the consultation length assumed when a booking
// does not say otherwise.
const DefaultEstimatedDuration = 30

// Appointment maps to the appointment table, the booking ledger.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	DoctorID           uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	Date               Date      `db:"appointment_date" json:"appointment_date"`
	Time               TimeOfDay `db:"appointment_time" json:"appointment_time"`
	Status             Status    `db:"status" json:"status"`
	Priority           Priority  `db:"priority" json:"priority"`
	Reason             string    `db:"reason" json:"reason"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
	Symptoms           *string   `db:"symptoms" json:"symptoms,omitempty"`
	IsFirstVisit       bool      `db:"is_first_visit" json:"is_first_visit"`
	EstimatedDuration  int       `db:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayTime is the appointment time in the 12-hour form.
func (a *Appointment) DisplayTime() string { return a.Time.Display() }

// MarshalJSON adds display_time next to appointment_time, as slots carry it.
func (a Appointment) MarshalJSON() ([]byte, error) {
	type plain Appointment
	return json.Marshal(struct {
		plain
		DisplayTime string `json:"display_time"`
	}{plain(a), a.DisplayTime()})
}

// SlotKey identifies one (doctor, date, time) cell of the ledger.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     Date
	Time     TimeOfDay
}

func (a *Appointment) Key() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// TimeSlot maps to the time_slot table, a materialized view of the ledger.
// A row is booked iff AppointmentID is set.
type TimeSlot struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Date          Date       `db:"slot_date" json:"date"`
	StartTime     TimeOfDay  `db:"start_time" json:"start_time"`
	EndTime       TimeOfDay  `db:"end_time" json:"end_time"`
	IsAvailable   bool       `db:"is_available" json:"is_available"`
	IsBooked      bool       `db:"is_booked" json:"is_booked"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Slot is one free bookable time as returned to callers.
type Slot struct {
	Time        TimeOfDay `json:"time"`
	DisplayTime string    `json:"display_time"`
}

func newSlot(t TimeOfDay) Slot {
	return Slot{Time: t, DisplayTime: t.Display()}
}

// AppointmentFilter narrows ListAppointments. Zero values mean "any".
type AppointmentFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    []Status
	From      *Date
	To        *Date
	Limit     int
	Offset    int
}

// Dashboard is a doctor's view of today.
type Dashboard struct {
	DoctorID          uuid.UUID      `json:"doctor_id"`
	Date              Date           `json:"date"`
	Appointments      []*Appointment `json:"appointments"`
	CountsByStatus    map[Status]int `json:"counts_by_status"`
	UpcomingOccupying int            `json:"upcoming_occupying"`
	FreeSlots         []Slot         `json:"free_slots"`
}

func slotTaken(k SlotKey) error {
	return apperr.Conflict("doctor %s is already booked on %s at %s", k.DoctorID, k.Date, k.Time)
}
