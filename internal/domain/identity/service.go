package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/auth"
)

// Directory resolves authenticated principals into actors and answers
// doctor/patient existence questions for the scheduling engine.
type Directory struct {
	doctors  DoctorRepository
	patients PatientRepository
}

func NewDirectory(doctors DoctorRepository, patients PatientRepository) *Directory {
	return &Directory{doctors: doctors, patients: patients}
}

// ResolveActor maps a principal to an Actor. The most privileged known role
// wins; doctor and patient roles must own a matching profile.
func (d *Directory) ResolveActor(ctx context.Context, p auth.Principal) (Actor, error) {
	if p.UserID == "" {
		return Actor{}, apperr.Forbidden("unauthenticated caller")
	}

	role, ok := effectiveRole(p.Roles)
	if !ok {
		return Actor{}, apperr.Forbidden("user %s has no recognised role", p.UserID)
	}

	actor := Actor{UserID: p.UserID, Role: role}
	switch role {
	case RoleDoctor:
		doc, err := d.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			return Actor{}, profileError(err, "doctor", p.UserID)
		}
		actor.DoctorID = &doc.ID
	case RolePatient:
		pat, err := d.patients.GetByUserID(ctx, p.UserID)
		if err != nil {
			return Actor{}, profileError(err, "patient", p.UserID)
		}
		actor.PatientID = &pat.ID
	}
	return actor, nil
}

func effectiveRole(roles []string) (Role, bool) {
	for _, want := range rolePrecedence {
		for _, r := range roles {
			if Role(strings.ToLower(strings.TrimSpace(r))) == want {
				return want, true
			}
		}
	}
	return "", false
}

func profileError(err error, kind, userID string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Forbidden("user %s has no %s profile", userID, kind)
	}
	return err
}

func (d *Directory) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return exists(d.doctors.GetByID(ctx, id))
}

func (d *Directory) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return exists(d.patients.GetByID(ctx, id))
}

func exists[T any](v *T, err error) (bool, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// -- Profiles --

func (d *Directory) CreateDoctor(ctx context.Context, doc *Doctor) error {
	switch {
	case doc.UserID == "":
		return apperr.Validation("user_id is required")
	case doc.FirstName == "" || doc.LastName == "":
		return apperr.Validation("first_name and last_name are required")
	case doc.Specialization == "":
		return apperr.Validation("specialization is required")
	case doc.ExperienceYears < 0:
		return apperr.Validation("experience_years must not be negative")
	case doc.ConsultationFee < 0:
		return apperr.Validation("consultation_fee must not be negative")
	}
	return d.doctors.Create(ctx, doc)
}

func (d *Directory) CreatePatient(ctx context.Context, p *Patient) error {
	if p.UserID == "" {
		return apperr.Validation("user_id is required")
	}
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	return d.patients.Create(ctx, p)
}

func (d *Directory) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return d.doctors.GetByID(ctx, id)
}

func (d *Directory) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return d.patients.GetByID(ctx, id)
}

// ListDoctors returns the public summaries of doctors accepting bookings.
func (d *Directory) ListDoctors(ctx context.Context, limit, offset int) ([]DoctorSummary, int, error) {
	doctors, total, err := d.doctors.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DoctorSummary, 0, len(doctors))
	for _, doc := range doctors {
		out = append(out, doc.Summary())
	}
	return out, total, nil
}
