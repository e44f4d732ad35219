package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/auth"
)

const instrumentationName = "github.com/hospital/frontdesk/internal/domain/scheduling"

// maxEstimatedDuration bounds a single consultation.
const maxEstimatedDuration = 8 * 60

// Directory is the identity collaborator: it resolves callers once per
// request and answers existence checks.
type Directory interface {
	ResolveActor(ctx context.Context, p auth.Principal) (identity.Actor, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Config struct {
	Templates    AvailabilityRepository
	Appointments AppointmentRepository
	TimeSlots    TimeSlotRepository
	Tx           Transactor
	Directory    Directory
	// Cache is optional; nil disables template grid caching.
	Cache    *AvailabilityCache
	Clock    Clock
	Location *time.Location

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type Service struct {
	templates AvailabilityRepository
	ledger    AppointmentRepository
	slots     TimeSlotRepository
	tx        Transactor
	dir       Directory
	cache     *AvailabilityCache
	gen       *Generator
	resolver  *Resolver
	clock     Clock
	loc       *time.Location

	tracer      trace.Tracer
	bookings    metric.Int64Counter
	transitions metric.Int64Counter
}

func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	gen := NewGenerator(cfg.Templates, cfg.Location)
	meter := cfg.MeterProvider.Meter(instrumentationName)
	bookings, _ := meter.Int64Counter(
		"scheduling.bookings",
		metric.WithDescription("Booking attempts by operation and outcome"),
		metric.WithUnit("{booking}"),
	)
	transitions, _ := meter.Int64Counter(
		"scheduling.status_transitions",
		metric.WithDescription("Appointment status changes by target status"),
		metric.WithUnit("{transition}"),
	)

	return &Service{
		templates:   cfg.Templates,
		ledger:      cfg.Appointments,
		slots:       cfg.TimeSlots,
		tx:          cfg.Tx,
		dir:         cfg.Directory,
		cache:       cfg.Cache,
		gen:         gen,
		resolver:    NewResolver(gen, cfg.Appointments, cfg.Cache),
		clock:       cfg.Clock,
		loc:         cfg.Location,
		tracer:      cfg.TracerProvider.Tracer(instrumentationName),
		bookings:    bookings,
		transitions: transitions,
	}
}

// Actor resolves the authenticated caller.
func (s *Service) Actor(ctx context.Context, p auth.Principal) (identity.Actor, error) {
	return s.dir.ResolveActor(ctx, p)
}

func (s *Service) now() time.Time { return s.clock.Now().In(s.loc) }

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "scheduling."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	ok, err := s.dir.DoctorExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("doctor %s", id)
	}
	return nil
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	ok, err := s.dir.PatientExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient %s", id)
	}
	return nil
}

func (s *Service) recordBooking(ctx context.Context, op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, apperr.ErrConflict):
		outcome = "conflict"
	case err != nil:
		outcome = "rejected"
	}
	s.bookings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// -- Availability --

// ListAvailableSlots returns the free slots of a doctor on a date, ascending.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date Date) (_ []Slot, err error) {
	ctx, span := s.startSpan(ctx, "ListAvailableSlots",
		attribute.String("doctor.id", doctorID.String()), attribute.String("date", date.String()))
	defer func() { endSpan(span, err) }()

	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	now := s.now()
	if date.Before(DateOf(now)) {
		return nil, apperr.Validation("date %s is in the past", date)
	}
	return s.resolver.Free(ctx, doctorID, date, now)
}

// checkBookable rejects past and off-template (date, time) pairs.
func (s *Service) checkBookable(ctx context.Context, doctorID uuid.UUID, date Date, t TimeOfDay) error {
	if !t.Valid() {
		return apperr.Validation("invalid time %d", int(t))
	}
	now := s.now()
	if !date.At(t, s.loc).After(now) {
		return apperr.Validation("cannot book %s %s: it is not in the future", date, t)
	}
	ok, err := s.resolver.OnGrid(ctx, doctorID, date, t, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("doctor does not offer a slot on %s at %s", date, t)
	}
	return nil
}

// -- Appointments --

type CreateAppointmentRequest struct {
	DoctorID          uuid.UUID `json:"doctor_id"`
	PatientID         uuid.UUID `json:"patient_id"`
	Date              Date       `json:"appointment_date"`
	Time              *TimeOfDay `json:"appointment_time"`
	Reason            string     `json:"reason"`
	Priority          Priority   `json:"priority"`
	Notes             *string    `json:"notes"`
	Symptoms          *string    `json:"symptoms"`
	IsFirstVisit      bool       `json:"is_first_visit"`
	EstimatedDuration int        `json:"estimated_duration_minutes"`
}

func (s *Service) CreateAppointment(ctx context.Context, actor identity.Actor, req CreateAppointmentRequest) (_ *Appointment, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("doctor.id", req.DoctorID.String()),
		attribute.String("date", req.Date.String()),
	}
	if req.Time != nil {
		attrs = append(attrs, attribute.String("time", req.Time.String()))
	}
	ctx, span := s.startSpan(ctx, "CreateAppointment", attrs...)
	defer func() {
		s.recordBooking(ctx, "create", err)
		endSpan(span, err)
	}()

	switch {
	case actor.IsStaff():
	case actor.Role == identity.RolePatient && actor.PatientID != nil:
		if req.PatientID == uuid.Nil {
			req.PatientID = *actor.PatientID
		}
		if req.PatientID != *actor.PatientID {
			return nil, apperr.Forbidden("patients may only book for themselves")
		}
	default:
		return nil, apperr.Forbidden("role %s may not book appointments", actor.Role)
	}

	a, err := s.newAppointment(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireDoctor(ctx, a.DoctorID); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, a.PatientID); err != nil {
		return nil, err
	}
	if err := s.checkBookable(ctx, a.DoctorID, a.Date, a.Time); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.ledger.IsOccupied(ctx, a.Key())
		if err != nil {
			return err
		}
		if taken {
			return slotTaken(a.Key())
		}
		if err := s.ledger.Create(ctx, a); err != nil {
			return err
		}
		return s.slots.Claim(ctx, a)
	})
	log := zerolog.Ctx(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Info().Str("doctor_id", a.DoctorID.String()).Str("date", a.Date.String()).
				Str("time", a.Time.String()).Msg("booking conflict")
		}
		return nil, err
	}

	log.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
		Str("date", a.Date.String()).Str("time", a.Time.String()).Msg("appointment created")
	return a, nil
}

func (s *Service) newAppointment(req CreateAppointmentRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor_id is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if req.Date.IsZero() {
		return nil, apperr.Validation("appointment_date is required")
	}
	if req.Time == nil {
		return nil, apperr.Validation("appointment_time is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, apperr.Validation("invalid priority %q", req.Priority)
	}
	if req.EstimatedDuration == 0 {
		req.EstimatedDuration = DefaultEstimatedDuration
	}
	if req.EstimatedDuration < 0 || req.EstimatedDuration > maxEstimatedDuration {
		return nil, apperr.Validation("estimated_duration_minutes must be between 1 and %d", maxEstimatedDuration)
	}
	return &Appointment{
		DoctorID:          req.DoctorID,
		PatientID:         req.PatientID,
		Date:              req.Date,
		Time:              *req.Time,
		Status:            StatusScheduled,
		Priority:          req.Priority,
		Reason:            reason,
		Notes:             req.Notes,
		Symptoms:          req.Symptoms,
		IsFirstVisit:      req.IsFirstVisit,
		EstimatedDuration: req.EstimatedDuration,
	}, nil
}

// RescheduleAppointment moves a non-terminal appointment to another free slot
// of the same doctor. Moving to the current slot is a no-op.
func (s *Service) RescheduleAppointment(ctx context.Context, actor identity.Actor, id uuid.UUID, date Date, t TimeOfDay) (_ *Appointment, err error) {
	ctx, span := s.startSpan(ctx, "RescheduleAppointment",
		attribute.String("appointment.id", id.String()),
		attribute.String("date", date.String()),
		attribute.String("time", t.String()))
	defer func() {
		s.recordBooking(ctx, "reschedule", err)
		endSpan(span, err)
	}()

	if date.IsZero() {
		return nil, apperr.Validation("appointment_date is required")
	}

	var (
		a       *Appointment
		oldDate Date
		moved   bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.ledger.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canActOn(actor, a) {
			return apperr.Forbidden("not permitted to reschedule appointment %s", id)
		}
		if a.Status.Terminal() {
			return apperr.Validation("cannot reschedule a %s appointment", a.Status)
		}
		if a.Date == date && a.Time == t {
			return nil
		}
		if err := s.checkBookable(ctx, a.DoctorID, date, t); err != nil {
			return err
		}
		target := SlotKey{DoctorID: a.DoctorID, Date: date, Time: t}
		taken, err := s.ledger.IsOccupied(ctx, target)
		if err != nil {
			return err
		}
		if taken {
			return slotTaken(target)
		}

		oldDate = a.Date
		a.Date, a.Time = date, t
		if err := s.ledger.Update(ctx, a); err != nil {
			return err
		}
		if err := s.slots.Release(ctx, a.ID); err != nil {
			return err
		}
		moved = true
		return s.slots.Claim(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	if moved {
		zerolog.Ctx(ctx).Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
			Str("from_date", oldDate.String()).Str("date", a.Date.String()).Str("time", a.Time.String()).Msg("appointment rescheduled")
	}
	return a, nil
}

// TransitionStatus applies one edge of the transition table. notes, when
// given, replace the appointment notes.
func (s *Service) TransitionStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, status string, notes *string) (_ *Appointment, err error) {
	ctx, span := s.startSpan(ctx, "TransitionStatus",
		attribute.String("appointment.id", id.String()), attribute.String("status", status))
	defer func() { endSpan(span, err) }()

	target, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		a    *Appointment
		prev Status
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.ledger.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canManageDoctor(actor, a.DoctorID) {
			return apperr.Forbidden("only the appointment's doctor or staff may change its status")
		}
		prev = a.Status
		if prev == StatusCancelled && target == StatusCancelled {
			return nil
		}
		if !CanTransition(prev, target) {
			return apperr.Validation("cannot move appointment from %s to %s", prev, target)
		}

		a.Status = target
		if notes != nil {
			a.Notes = notes
		}
		if err := s.ledger.Update(ctx, a); err != nil {
			return err
		}
		if prev.Occupying() && !target.Occupying() {
			return s.slots.Release(ctx, a.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if prev == target {
		return a, nil
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(target))))
	zerolog.Ctx(ctx).Info().Str("appointment_id", a.ID.String()).
		Str("from", string(prev)).Str("to", string(target)).Msg("appointment transitioned")
	return a, nil
}

// CancelAppointment cancels and releases the slot. Cancelling an already
// cancelled appointment succeeds without changes.
func (s *Service) CancelAppointment(ctx context.Context, actor identity.Actor, id uuid.UUID, reason *string) (err error) {
	ctx, span := s.startSpan(ctx, "CancelAppointment", attribute.String("appointment.id", id.String()))
	defer func() { endSpan(span, err) }()

	var (
		a       *Appointment
		changed bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.ledger.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canActOn(actor, a) {
			return apperr.Forbidden("not permitted to cancel appointment %s", id)
		}
		if a.Status == StatusCancelled {
			return nil
		}
		if !CanTransition(a.Status, StatusCancelled) {
			return apperr.Validation("cannot cancel a %s appointment", a.Status)
		}
		a.Status = StatusCancelled
		if reason != nil && strings.TrimSpace(*reason) != "" {
			r := strings.TrimSpace(*reason)
			a.CancellationReason = &r
		}
		if err := s.ledger.Update(ctx, a); err != nil {
			return err
		}
		changed = true
		return s.slots.Release(ctx, a.ID)
	})
	if err != nil {
		return err
	}
	if changed {
		s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(StatusCancelled))))
		zerolog.Ctx(ctx).Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
			Str("date", a.Date.String()).Str("time", a.Time.String()).Msg("appointment cancelled")
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActOn(actor, a) {
		return nil, apperr.Forbidden("not permitted to view appointment %s", id)
	}
	return a, nil
}

// ListAppointments scopes patients and doctors to their own appointments;
// staff may filter freely.
func (s *Service) ListAppointments(ctx context.Context, actor identity.Actor, f AppointmentFilter) ([]*Appointment, int, error) {
	switch {
	case actor.IsStaff():
	case actor.Role == identity.RoleDoctor && actor.DoctorID != nil:
		f.DoctorID = actor.DoctorID
	case actor.Role == identity.RolePatient && actor.PatientID != nil:
		f.PatientID = actor.PatientID
	default:
		return nil, 0, apperr.Forbidden("role %s may not list appointments", actor.Role)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Validation("date_to is before date_from")
	}
	return s.ledger.List(ctx, f)
}

// -- Weekly availability --

// AvailabilityInput carries template fields. On create DayOfWeek, StartTime
// and EndTime are required; on update nil fields are left unchanged.
type AvailabilityInput struct {
	DayOfWeek   *Weekday   `json:"day_of_week"`
	StartTime   *TimeOfDay `json:"start_time"`
	EndTime     *TimeOfDay `json:"end_time"`
	Capacity    *int       `json:"capacity"`
	IsAvailable *bool      `json:"is_available"`
}

func (in AvailabilityInput) apply(w *WeeklyAvailability) {
	if in.DayOfWeek != nil {
		w.DayOfWeek = Weekday(strings.ToLower(string(*in.DayOfWeek)))
	}
	if in.StartTime != nil {
		w.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		w.EndTime = *in.EndTime
	}
	if in.Capacity != nil {
		w.Capacity = *in.Capacity
	}
	if in.IsAvailable != nil {
		w.IsAvailable = *in.IsAvailable
	}
}

func validateWindow(w *WeeklyAvailability) error {
	if w.DayOfWeek.Index() < 0 {
		return apperr.Validation("invalid day_of_week %q", w.DayOfWeek)
	}
	if !w.StartTime.Valid() || !w.EndTime.Valid() {
		return apperr.Validation("start_time and end_time must be within the day")
	}
	if w.StartTime >= w.EndTime {
		return apperr.Validation("start_time %s must be before end_time %s", w.StartTime, w.EndTime)
	}
	if w.Capacity < 1 {
		return apperr.Validation("capacity must be at least 1")
	}
	return nil
}

func (s *Service) CreateWeeklyAvailability(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, in AvailabilityInput) (*WeeklyAvailability, error) {
	if !canManageDoctor(actor, doctorID) {
		return nil, apperr.Forbidden("not permitted to edit availability of doctor %s", doctorID)
	}
	if in.DayOfWeek == nil || in.StartTime == nil || in.EndTime == nil {
		return nil, apperr.Validation("day_of_week, start_time and end_time are required")
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	w := &WeeklyAvailability{DoctorID: doctorID, Capacity: DefaultCapacity, IsAvailable: true}
	in.apply(w)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, w); err != nil {
		return nil, err
	}
	s.cache.InvalidateDoctor(ctx, doctorID)
	return w, nil
}

func (s *Service) ListWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.templates.ListByDoctor(ctx, doctorID)
}

func (s *Service) UpdateWeeklyAvailability(ctx context.Context, actor identity.Actor, id uuid.UUID, in AvailabilityInput) (*WeeklyAvailability, error) {
	w, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageDoctor(actor, w.DoctorID) {
		return nil, apperr.Forbidden("not permitted to edit availability of doctor %s", w.DoctorID)
	}
	in.apply(w)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if err := s.templates.Update(ctx, w); err != nil {
		return nil, err
	}
	s.cache.InvalidateDoctor(ctx, w.DoctorID)
	return w, nil
}

func (s *Service) DeleteWeeklyAvailability(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	w, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canManageDoctor(actor, w.DoctorID) {
		return apperr.Forbidden("not permitted to edit availability of doctor %s", w.DoctorID)
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateDoctor(ctx, w.DoctorID)
	return nil
}

// -- Doctor dashboard --

func (s *Service) DoctorDashboard(ctx context.Context, actor identity.Actor, doctorID uuid.UUID) (_ *Dashboard, err error) {
	ctx, span := s.startSpan(ctx, "DoctorDashboard", attribute.String("doctor.id", doctorID.String()))
	defer func() { endSpan(span, err) }()

	if !canManageDoctor(actor, doctorID) {
		return nil, apperr.Forbidden("not permitted to view dashboard of doctor %s", doctorID)
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	now := s.now()
	today := DateOf(now)
	appts, err := s.ledger.ListByDoctorDate(ctx, doctorID, today)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		DoctorID:       doctorID,
		Date:           today,
		Appointments:   appts,
		CountsByStatus: make(map[Status]int),
	}
	for _, a := range appts {
		d.CountsByStatus[a.Status]++
		if a.Status.Occupying() && today.At(a.Time, s.loc).After(now) {
			d.UpcomingOccupying++
		}
	}
	if d.FreeSlots, err = s.resolver.Free(ctx, doctorID, today, now); err != nil {
		return nil, err
	}
	return d, nil
}

// -- Materialized slot view --

func (s *Service) ListTimeSlots(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, date Date) ([]*TimeSlot, error) {
	if !canManageDoctor(actor, doctorID) {
		return nil, apperr.Forbidden("not permitted to view time slots of doctor %s", doctorID)
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.slots.ListByDoctorDate(ctx, doctorID, date)
}

// RebuildTimeSlots recomputes the view for one doctor and date from the
// ledger: every row is reset, then every occupying appointment claims its row.
func (s *Service) RebuildTimeSlots(ctx context.Context, actor identity.Actor, doctorID uuid.UUID, date Date) (_ []*TimeSlot, err error) {
	ctx, span := s.startSpan(ctx, "RebuildTimeSlots",
		attribute.String("doctor.id", doctorID.String()), attribute.String("date", date.String()))
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return nil, apperr.Forbidden("only staff may rebuild time slots")
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	claimed := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.slots.ResetDay(ctx, doctorID, date); err != nil {
			return err
		}
		appts, err := s.ledger.ListByDoctorDate(ctx, doctorID, date)
		if err != nil {
			return err
		}
		for _, a := range appts {
			if !a.Status.Occupying() {
				continue
			}
			if err := s.slots.Claim(ctx, a); err != nil {
				return err
			}
			claimed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("doctor_id", doctorID.String()).Str("date", date.String()).
		Int("claimed", claimed).Msg("time slots rebuilt")
	return s.slots.ListByDoctorDate(ctx, doctorID, date)
}
