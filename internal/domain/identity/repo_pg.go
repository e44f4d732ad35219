package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/db"
)

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, user_id, first_name, last_name, specialization, license_number,
	experience_years, consultation_fee, is_available, created_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctor (`+doctorCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.UserID, d.FirstName, d.LastName, d.Specialization, d.LicenseNumber,
		d.ExperienceYears, d.ConsultationFee, d.IsAvailable, d.CreatedAt,
	)
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict("doctor profile already exists for user %s or license %s", d.UserID, d.LicenseNumber)
	}
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("doctor %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID string) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("doctor profile for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor by user: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM doctor WHERE is_available`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+doctorCols+` FROM doctor WHERE is_available
		ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Specialization, &d.LicenseNumber,
		&d.ExperienceYears, &d.ConsultationFee, &d.IsAvailable, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, user_id, first_name, last_name, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (`+patientCols+`) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.UserID, p.FirstName, p.LastName, p.CreatedAt,
	)
	if db.IsUniqueViolation(err, "") {
		return apperr.Conflict("patient profile already exists for user %s", p.UserID)
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient profile for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient by user: %w", err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
