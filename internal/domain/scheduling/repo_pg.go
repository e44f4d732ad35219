package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/db"
)

// Constraint names from migrations/002_scheduling.sql.
const (
	availabilityUniqueConstraint = "weekly_availability_doctor_day_start_key"
	occupiedSlotIndex            = "appointment_occupied_slot_uq"
)

var pg = goqu.Dialect("postgres")

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

func fromPGTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond / time.Minute)
}

// -- Weekly Availability Repository --

type availabilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepo(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

const availabilityCols = `id, doctor_id, day_of_week, start_time, end_time, capacity, is_available, created_at, updated_at`

// dayOrder sorts monday first regardless of how day names collate.
const dayOrder = `array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day_of_week)`

func (r *availabilityRepoPG) Create(ctx context.Context, w *WeeklyAvailability) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO weekly_availability (`+availabilityCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		w.ID, w.DoctorID, string(w.DayOfWeek), pgTime(w.StartTime), pgTime(w.EndTime),
		w.Capacity, w.IsAvailable, w.CreatedAt, w.UpdatedAt,
	)
	if db.IsUniqueViolation(err, availabilityUniqueConstraint) {
		return apperr.Conflict("availability for %s at %s already exists", w.DayOfWeek, w.StartTime)
	}
	if err != nil {
		return fmt.Errorf("insert weekly availability: %w", err)
	}
	return nil
}

func (r *availabilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	w, err := scanAvailability(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+availabilityCols+` FROM weekly_availability WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("availability %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly availability: %w", err)
	}
	return w, nil
}

func (r *availabilityRepoPG) Update(ctx context.Context, w *WeeklyAvailability) error {
	w.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE weekly_availability SET
			day_of_week=$2, start_time=$3, end_time=$4, capacity=$5, is_available=$6, updated_at=$7
		WHERE id = $1`,
		w.ID, string(w.DayOfWeek), pgTime(w.StartTime), pgTime(w.EndTime), w.Capacity, w.IsAvailable, w.UpdatedAt,
	)
	if db.IsUniqueViolation(err, availabilityUniqueConstraint) {
		return apperr.Conflict("availability for %s at %s already exists", w.DayOfWeek, w.StartTime)
	}
	if err != nil {
		return fmt.Errorf("update weekly availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("availability %s", w.ID)
	}
	return nil
}

func (r *availabilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM weekly_availability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete weekly availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("availability %s", id)
	}
	return nil
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+availabilityCols+` FROM weekly_availability
		WHERE doctor_id = $1 ORDER BY `+dayOrder+`, start_time`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	return collectAvailability(rows)
}

func (r *availabilityRepoPG) ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, day Weekday) ([]*WeeklyAvailability, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+availabilityCols+` FROM weekly_availability
		WHERE doctor_id = $1 AND day_of_week = $2 ORDER BY start_time`, doctorID, string(day))
	if err != nil {
		return nil, fmt.Errorf("list weekly availability for %s: %w", day, err)
	}
	return collectAvailability(rows)
}

func collectAvailability(rows pgx.Rows) ([]*WeeklyAvailability, error) {
	defer rows.Close()
	var out []*WeeklyAvailability
	for rows.Next() {
		w, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly availability: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanAvailability(row pgx.Row) (*WeeklyAvailability, error) {
	var (
		w          WeeklyAvailability
		day        string
		start, end pgtype.Time
	)
	err := row.Scan(&w.ID, &w.DoctorID, &day, &start, &end, &w.Capacity, &w.IsAvailable, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.DayOfWeek = Weekday(day)
	w.StartTime = fromPGTime(start)
	w.EndTime = fromPGTime(end)
	return &w, nil
}

// -- Appointment Repository --

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const appointmentCols = `id, doctor_id, patient_id, appointment_date, appointment_time, status, priority,
	reason, notes, symptoms, is_first_visit, estimated_duration_minutes, cancellation_reason,
	created_at, updated_at`

var appointmentColList = []interface{}{
	"id", "doctor_id", "patient_id", "appointment_date", "appointment_time", "status", "priority",
	"reason", "notes", "symptoms", "is_first_visit", "estimated_duration_minutes", "cancellation_reason",
	"created_at", "updated_at",
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment (`+appointmentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.DoctorID, a.PatientID, a.Date.Time(), pgTime(a.Time), string(a.Status), string(a.Priority),
		a.Reason, a.Notes, a.Symptoms, a.IsFirstVisit, a.EstimatedDuration, a.CancellationReason,
		a.CreatedAt, a.UpdatedAt,
	)
	if db.IsUniqueViolation(err, occupiedSlotIndex) {
		return slotTaken(a.Key())
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id)
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id)
}

func (r *appointmentRepoPG) get(ctx context.Context, query string, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment SET
			appointment_date=$2, appointment_time=$3, status=$4, priority=$5, reason=$6,
			notes=$7, symptoms=$8, is_first_visit=$9, estimated_duration_minutes=$10,
			cancellation_reason=$11, updated_at=$12
		WHERE id = $1`,
		a.ID, a.Date.Time(), pgTime(a.Time), string(a.Status), string(a.Priority), a.Reason,
		a.Notes, a.Symptoms, a.IsFirstVisit, a.EstimatedDuration,
		a.CancellationReason, a.UpdatedAt,
	)
	if db.IsUniqueViolation(err, occupiedSlotIndex) {
		return slotTaken(a.Key())
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment %s", a.ID)
	}
	return nil
}

func (r *appointmentRepoPG) IsOccupied(ctx context.Context, key SlotKey) (bool, error) {
	var taken bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3
			  AND status = ANY($4)
		)`, key.DoctorID, key.Date.Time(), pgTime(key.Time), occupyingStrings()).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slot occupancy: %w", err)
	}
	return taken, nil
}

func (r *appointmentRepoPG) OccupiedTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT appointment_time FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2 AND status = ANY($3)
		ORDER BY appointment_time`, doctorID, date.Time(), occupyingStrings())
	if err != nil {
		return nil, fmt.Errorf("list occupied times: %w", err)
	}
	defer rows.Close()

	var out []TimeOfDay
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan occupied time: %w", err)
		}
		out = append(out, fromPGTime(t))
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentCols+` FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY appointment_time, created_at`, doctorID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list appointments for day: %w", err)
	}
	return collectAppointments(rows)
}

// List builds its WHERE clause with goqu since every filter is optional.
func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	ds := pg.From("appointment").Prepared(true)
	if f.DoctorID != nil {
		ds = ds.Where(goqu.Ex{"doctor_id": f.DoctorID.String()})
	}
	if f.PatientID != nil {
		ds = ds.Where(goqu.Ex{"patient_id": f.PatientID.String()})
	}
	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, s := range f.Status {
			statuses[i] = string(s)
		}
		ds = ds.Where(goqu.Ex{"status": statuses})
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("appointment_date").Gte(f.From.Time()))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("appointment_date").Lte(f.To.Time()))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment count query: %w", err)
	}
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	listDS := ds.Select(appointmentColList...).
		Order(goqu.I("appointment_date").Desc(), goqu.I("appointment_time").Desc())
	if f.Limit > 0 {
		listDS = listDS.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		listDS = listDS.Offset(uint(f.Offset))
	}
	query, args, err := listDS.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment list query: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	out, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                Appointment
		date             time.Time
		at               pgtype.Time
		status, priority string
	)
	err := row.Scan(
		&a.ID, &a.DoctorID, &a.PatientID, &date, &at, &status, &priority,
		&a.Reason, &a.Notes, &a.Symptoms, &a.IsFirstVisit, &a.EstimatedDuration, &a.CancellationReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Date = DateOf(date)
	a.Time = fromPGTime(at)
	a.Status = Status(status)
	a.Priority = Priority(priority)
	return &a, nil
}

// -- Time Slot Repository --

type timeSlotRepoPG struct {
	pool *pgxpool.Pool
}

func NewTimeSlotRepo(pool *pgxpool.Pool) TimeSlotRepository {
	return &timeSlotRepoPG{pool: pool}
}

const timeSlotCols = `id, doctor_id, slot_date, start_time, end_time, is_available, is_booked, appointment_id, updated_at`

func (r *timeSlotRepoPG) Claim(ctx context.Context, a *Appointment) error {
	end := a.Time.Add(time.Duration(a.EstimatedDuration) * time.Minute)
	if end > minutesPerDay {
		end = minutesPerDay
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO time_slot (id, doctor_id, slot_date, start_time, end_time, is_available, is_booked, appointment_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, true, $6, now())
		ON CONFLICT (doctor_id, slot_date, start_time) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			is_available = false,
			is_booked = true,
			appointment_id = EXCLUDED.appointment_id,
			updated_at = now()`,
		uuid.New(), a.DoctorID, a.Date.Time(), pgTime(a.Time), pgTime(end), a.ID,
	)
	if err != nil {
		return fmt.Errorf("claim time slot: %w", err)
	}
	return nil
}

func (r *timeSlotRepoPG) Release(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE time_slot SET is_available = true, is_booked = false, appointment_id = NULL, updated_at = now()
		WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return fmt.Errorf("release time slot: %w", err)
	}
	return nil
}

func (r *timeSlotRepoPG) ResetDay(ctx context.Context, doctorID uuid.UUID, date Date) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE time_slot SET is_available = true, is_booked = false, appointment_id = NULL, updated_at = now()
		WHERE doctor_id = $1 AND slot_date = $2`, doctorID, date.Time())
	if err != nil {
		return fmt.Errorf("reset time slots: %w", err)
	}
	return nil
}

func (r *timeSlotRepoPG) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date Date) ([]*TimeSlot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+timeSlotCols+` FROM time_slot
		WHERE doctor_id = $1 AND slot_date = $2 ORDER BY start_time`, doctorID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()

	var out []*TimeSlot
	for rows.Next() {
		var (
			s          TimeSlot
			day        time.Time
			start, end pgtype.Time
		)
		if err := rows.Scan(&s.ID, &s.DoctorID, &day, &start, &end, &s.IsAvailable, &s.IsBooked, &s.AppointmentID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan time slot: %w", err)
		}
		s.Date = DateOf(day)
		s.StartTime = fromPGTime(start)
		s.EndTime = fromPGTime(end)
		out = append(out, &s)
	}
	return out, rows.Err()
}
