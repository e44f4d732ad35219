package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type AvailabilityRepository interface {
	// Create fails with a Conflict when (doctor, day, start) already exists.
	Create(ctx context.Context, w *WeeklyAvailability) error
	GetByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error)
	Update(ctx context.Context, w *WeeklyAvailability) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor orders by day (monday first) then start time.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error)
	ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*WeeklyAvailability, error)
}

// AppointmentRepository is the booking ledger. Create and Update fail with a
// Conflict when the row would become a second occupying appointment on the
// same (doctor, date, time).
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the row for the rest of the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	IsOccupied(ctx context.Context, key SlotKey) (bool, error)
	OccupiedTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error)
	// ListByDoctorDate orders by time.
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error)
	// List orders by date then time, newest first.
	List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error)
}

// TimeSlotRepository maintains the materialized slot view. Writes happen only
// inside the ledger transaction.
type TimeSlotRepository interface {
	Claim(ctx context.Context, a *Appointment) error
	Release(ctx context.Context, appointmentID uuid.UUID) error
	ResetDay(ctx context.Context, doctorID uuid.UUID, date Date) error
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*TimeSlot, error)
}

// Transactor runs fn atomically; repositories called with the ctx passed to
// fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
