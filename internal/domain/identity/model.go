package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role is the effective role of a caller once identity has been resolved.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// rolePrecedence orders roles from most to least privileged. A principal that
// carries several roles acts as the first one found here.
var rolePrecedence = []Role{RoleAdmin, RoleStaff, RoleDoctor, RolePatient}

// Actor is a resolved caller. DoctorID and PatientID are set when the user
// owns the corresponding profile.
type Actor struct {
	UserID    string     `json:"user_id"`
	Role      Role       `json:"role"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}

// IsStaff is true for staff and admin; both act on any record.
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

func (a Actor) IsDoctor(id uuid.UUID) bool {
	return a.Role == RoleDoctor && a.DoctorID != nil && *a.DoctorID == id
}

func (a Actor) IsPatient(id uuid.UUID) bool {
	return a.Role == RolePatient && a.PatientID != nil && *a.PatientID == id
}

type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	Specialization  string    `db:"specialization" json:"specialization"`
	LicenseNumber   string    `db:"license_number" json:"license_number"`
	ExperienceYears int       `db:"experience_years" json:"experience_years"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Name is the display name used in doctor listings.
func (d *Doctor) Name() string {
	return "Dr. " + d.FirstName + " " + d.LastName
}

type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DoctorSummary is the public projection of a doctor.
type DoctorSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	ExperienceYears int       `json:"experience_years"`
	ConsultationFee float64   `json:"consultation_fee"`
}

func (d *Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		ID:              d.ID,
		Name:            d.Name(),
		Specialization:  d.Specialization,
		ExperienceYears: d.ExperienceYears,
		ConsultationFee: d.ConsultationFee,
	}
}
