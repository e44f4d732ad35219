package scheduling

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/auth"
	"github.com/hospital/frontdesk/internal/platform/cache"
)

var (
	monday  = Date{Year: 2025, Month: time.June, Day: 9}
	tuesday = Date{Year: 2025, Month: time.June, Day: 10}
	// sundayNoon precedes every test booking.
	sundayNoon = time.Date(2025, time.June, 8, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	store *MemoryStore
	dir   *identity.Directory

	doctor        *identity.Doctor
	otherDoc      *identity.Doctor
	patient       *identity.Patient
	otherPat      *identity.Patient
	staff         identity.Actor
	docActor      identity.Actor
	patActor      identity.Actor
	otherPatActor identity.Actor
}

// newFixture seeds one doctor with Monday 09:00-10:00 and Tuesday
// 09:00-12:00 windows, a second doctor without windows, and two patients.
func newFixture(t *testing.T, now time.Time, opts ...func(*Config)) *fixture {
	t.Helper()
	ctx := context.Background()

	ids := identity.NewMemoryStore()
	dir := identity.NewDirectory(ids.Doctors(), ids.Patients())
	doc := &identity.Doctor{UserID: "u-doc", FirstName: "Greg", LastName: "House", Specialization: "diagnostics", IsAvailable: true}
	other := &identity.Doctor{UserID: "u-doc2", FirstName: "Lisa", LastName: "Cuddy", Specialization: "endocrinology", IsAvailable: true}
	pat := &identity.Patient{UserID: "u-pat", FirstName: "Pat", LastName: "Doe"}
	pat2 := &identity.Patient{UserID: "u-pat2", FirstName: "Sam", LastName: "Roe"}
	for _, d := range []*identity.Doctor{doc, other} {
		if err := dir.CreateDoctor(ctx, d); err != nil {
			t.Fatalf("seed doctor: %v", err)
		}
	}
	for _, p := range []*identity.Patient{pat, pat2} {
		if err := dir.CreatePatient(ctx, p); err != nil {
			t.Fatalf("seed patient: %v", err)
		}
	}

	store := NewMemoryStore()
	seedWindow(t, store, doc.ID, Monday, "09:00", "10:00")
	seedWindow(t, store, doc.ID, Tuesday, "09:00", "12:00")

	cfg := Config{
		Templates:    store.Availability(),
		Appointments: store.Appointments(),
		TimeSlots:    store.TimeSlots(),
		Tx:           store,
		Directory:    dir,
		Clock:        FixedClock(now),
		Location:     time.UTC,
	}
	for _, o := range opts {
		o(&cfg)
	}

	return &fixture{
		svc:           NewService(cfg),
		store:         store,
		dir:           dir,
		doctor:        doc,
		otherDoc:      other,
		patient:       pat,
		otherPat:      pat2,
		staff:         identity.Actor{UserID: "u-staff", Role: identity.RoleStaff},
		docActor:      identity.Actor{UserID: doc.UserID, Role: identity.RoleDoctor, DoctorID: &doc.ID},
		patActor:      identity.Actor{UserID: pat.UserID, Role: identity.RolePatient, PatientID: &pat.ID},
		otherPatActor: identity.Actor{UserID: pat2.UserID, Role: identity.RolePatient, PatientID: &pat2.ID},
	}
}

func seedWindow(t *testing.T, store *MemoryStore, doctorID uuid.UUID, day Weekday, start, end string) *WeeklyAvailability {
	t.Helper()
	w := &WeeklyAvailability{
		DoctorID:    doctorID,
		DayOfWeek:   day,
		StartTime:   mustTime(t, start),
		EndTime:     mustTime(t, end),
		Capacity:    DefaultCapacity,
		IsAvailable: true,
	}
	if err := store.Availability().Create(context.Background(), w); err != nil {
		t.Fatalf("seed window: %v", err)
	}
	return w
}

func ptr[T any](v T) *T { return &v }

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

func (f *fixture) book(t *testing.T, actor identity.Actor, patientID uuid.UUID, date Date, at string) *Appointment {
	t.Helper()
	a, err := f.svc.CreateAppointment(context.Background(), actor, CreateAppointmentRequest{
		DoctorID:  f.doctor.ID,
		PatientID: patientID,
		Date:      date,
		Time:      ptr(mustTime(t, at)),
		Reason:    "checkup",
	})
	if err != nil {
		t.Fatalf("book %s %s: %v", date, at, err)
	}
	return a
}

func (f *fixture) freeTimes(t *testing.T, date Date) []string {
	t.Helper()
	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, date)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time.String())
	}
	return out
}

func expectErr(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func expectTimes(t *testing.T, got []string, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected slots %v, got %v", want, got)
	}
}

// -- Availability listing --

func TestListAvailableSlots_BookingRemovesSlot(t *testing.T) {
	f := newFixture(t, sundayNoon)

	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")

	f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	expectTimes(t, f.freeTimes(t, monday), "09:30")
}

func TestListAvailableSlots_DisplayTime(t *testing.T) {
	f := newFixture(t, sundayNoon)
	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, tuesday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[0].DisplayTime != "09:00 AM" || slots[5].DisplayTime != "11:30 AM" {
		t.Errorf("unexpected display times %q .. %q", slots[0].DisplayTime, slots[5].DisplayTime)
	}
}

func TestListAvailableSlots_NoWindowsThatDay(t *testing.T) {
	f := newFixture(t, sundayNoon)
	wednesday := monday.AddDays(2)
	expectTimes(t, f.freeTimes(t, wednesday))
}

func TestListAvailableSlots_DropsStartsBeforeNow(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.June, 9, 9, 15, 0, 0, time.UTC))
	expectTimes(t, f.freeTimes(t, monday), "09:30")
}

func TestListAvailableSlots_SlotAtNowIsGone(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.June, 9, 9, 30, 0, 0, time.UTC))
	expectTimes(t, f.freeTimes(t, monday))
}

func TestListAvailableSlots_PastDate(t *testing.T) {
	f := newFixture(t, sundayNoon)
	_, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, monday.AddDays(-7))
	expectErr(t, err, apperr.ErrValidation)
}

func TestListAvailableSlots_UnknownDoctor(t *testing.T) {
	f := newFixture(t, sundayNoon)
	_, err := f.svc.ListAvailableSlots(context.Background(), uuid.New(), monday)
	expectErr(t, err, apperr.ErrNotFound)
}

func TestListAvailableSlots_DisabledWindow(t *testing.T) {
	f := newFixture(t, sundayNoon)
	windows, _ := f.svc.ListWeeklyAvailability(context.Background(), f.doctor.ID)
	off := false
	if _, err := f.svc.UpdateWeeklyAvailability(context.Background(), f.docActor, windows[0].ID, AvailabilityInput{IsAvailable: &off}); err != nil {
		t.Fatalf("disable window: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday))
}

// -- Booking --

func TestCreateAppointment_Defaults(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a, err := f.svc.CreateAppointment(context.Background(), f.patActor, CreateAppointmentRequest{
		DoctorID: f.doctor.ID,
		Date:     monday,
		Time:     ptr(NewTimeOfDay(9, 0)),
		Reason:   "  headache ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PatientID != f.patient.ID {
		t.Errorf("expected patient to default to caller, got %s", a.PatientID)
	}
	if a.Status != StatusScheduled || a.Priority != PriorityMedium || a.EstimatedDuration != DefaultEstimatedDuration {
		t.Errorf("unexpected defaults: %+v", a)
	}
	if a.Reason != "headache" {
		t.Errorf("expected trimmed reason, got %q", a.Reason)
	}
	if a.ID == uuid.Nil {
		t.Error("expected an id")
	}
}

func TestCreateAppointment_DuplicateConflict(t *testing.T) {
	f := newFixture(t, sundayNoon)
	f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	_, err := f.svc.CreateAppointment(context.Background(), f.otherPatActor, CreateAppointmentRequest{
		DoctorID: f.doctor.ID, Date: monday, Time: ptr(NewTimeOfDay(9, 0)), Reason: "second",
	})
	expectErr(t, err, apperr.ErrConflict)
}

func TestCreateAppointment_Rejections(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.June, 9, 9, 10, 0, 0, time.UTC))
	base := func() CreateAppointmentRequest {
		return CreateAppointmentRequest{DoctorID: f.doctor.ID, PatientID: f.patient.ID, Date: monday, Time: ptr(NewTimeOfDay(9, 30)), Reason: "r"}
	}

	tests := []struct {
		name  string
		actor identity.Actor
		edit  func(*CreateAppointmentRequest)
		want  error
	}{
		{"slot already started", f.staff, func(r *CreateAppointmentRequest) { r.Time = ptr(NewTimeOfDay(9, 0)) }, apperr.ErrValidation},
		{"past date", f.staff, func(r *CreateAppointmentRequest) { r.Date = monday.AddDays(-1) }, apperr.ErrValidation},
		{"off grid", f.staff, func(r *CreateAppointmentRequest) { r.Time = ptr(NewTimeOfDay(9, 45)) }, apperr.ErrValidation},
		{"outside window", f.staff, func(r *CreateAppointmentRequest) { r.Time = ptr(NewTimeOfDay(10, 0)) }, apperr.ErrValidation},
		{"missing time", f.staff, func(r *CreateAppointmentRequest) { r.Time = nil }, apperr.ErrValidation},
		{"missing reason", f.staff, func(r *CreateAppointmentRequest) { r.Reason = " " }, apperr.ErrValidation},
		{"bad priority", f.staff, func(r *CreateAppointmentRequest) { r.Priority = "asap" }, apperr.ErrValidation},
		{"duration too long", f.staff, func(r *CreateAppointmentRequest) { r.EstimatedDuration = 600 }, apperr.ErrValidation},
		{"unknown doctor", f.staff, func(r *CreateAppointmentRequest) { r.DoctorID = uuid.New() }, apperr.ErrNotFound},
		{"unknown patient", f.staff, func(r *CreateAppointmentRequest) { r.PatientID = uuid.New() }, apperr.ErrNotFound},
		{"patient for someone else", f.otherPatActor, func(*CreateAppointmentRequest) {}, apperr.ErrForbidden},
		{"doctor cannot book", f.docActor, func(*CreateAppointmentRequest) {}, apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.edit(&req)
			_, err := f.svc.CreateAppointment(context.Background(), tt.actor, req)
			expectErr(t, err, tt.want)
		})
	}

	expectTimes(t, f.freeTimes(t, monday), "09:30")
}

func TestCreateAppointment_MissingTimeIsNotMidnight(t *testing.T) {
	f := newFixture(t, sundayNoon)
	seedWindow(t, f.store, f.doctor.ID, Tuesday, "00:00", "00:30")

	_, err := f.svc.CreateAppointment(context.Background(), f.staff, CreateAppointmentRequest{
		DoctorID: f.doctor.ID, PatientID: f.patient.ID, Date: tuesday, Reason: "no time given",
	})
	expectErr(t, err, apperr.ErrValidation)

	free := f.freeTimes(t, tuesday)
	if len(free) == 0 || free[0] != "00:00" {
		t.Errorf("midnight slot should still be free, got %v", free)
	}
}

func TestCreateAppointment_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t, sundayNoon)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pid := range []uuid.UUID{f.patient.ID, f.otherPat.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.CreateAppointment(context.Background(), f.staff, CreateAppointmentRequest{
				DoctorID: f.doctor.ID, PatientID: pid, Date: tuesday, Time: ptr(NewTimeOfDay(10, 0)), Reason: "race",
			})
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d and %d", ok, conflicts)
	}

	appts, total, err := f.svc.ListAppointments(context.Background(), f.staff, AppointmentFilter{DoctorID: &f.doctor.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(appts) != 1 {
		t.Errorf("expected exactly one appointment in the ledger, got %d", total)
	}
}

// -- Cancel --

func TestCancelThenRebook(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	reason := "feeling better"
	if err := f.svc.CancelAppointment(context.Background(), f.patActor, a.ID, &reason); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")

	got, _ := f.svc.GetAppointment(context.Background(), f.staff, a.ID)
	if got.Status != StatusCancelled || got.CancellationReason == nil || *got.CancellationReason != reason {
		t.Errorf("unexpected cancelled appointment: %+v", got)
	}

	f.book(t, f.otherPatActor, f.otherPat.ID, monday, "09:00")
	expectTimes(t, f.freeTimes(t, monday), "09:30")
}

func TestCancelAppointment_Idempotent(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	if err := f.svc.CancelAppointment(context.Background(), f.patActor, a.ID, nil); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := f.svc.CancelAppointment(context.Background(), f.patActor, a.ID, nil); err != nil {
		t.Fatalf("second cancel should succeed, got %v", err)
	}
	if _, err := f.svc.TransitionStatus(context.Background(), f.docActor, a.ID, "cancelled", nil); err != nil {
		t.Fatalf("cancelled to cancelled should be a no-op, got %v", err)
	}
}

func TestCancelAppointment_CompletedRejected(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")
	for _, st := range []string{"arrived", "in_progress", "completed"} {
		if _, err := f.svc.TransitionStatus(context.Background(), f.docActor, a.ID, st, nil); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
	expectErr(t, f.svc.CancelAppointment(context.Background(), f.patActor, a.ID, nil), apperr.ErrValidation)
}

func TestCancelAppointment_Authority(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	expectErr(t, f.svc.CancelAppointment(context.Background(), f.otherPatActor, a.ID, nil), apperr.ErrForbidden)
	otherDoc := identity.Actor{UserID: "u-doc2", Role: identity.RoleDoctor, DoctorID: &f.otherDoc.ID}
	expectErr(t, f.svc.CancelAppointment(context.Background(), otherDoc, a.ID, nil), apperr.ErrForbidden)
	expectErr(t, f.svc.CancelAppointment(context.Background(), f.staff, uuid.New(), nil), apperr.ErrNotFound)

	if err := f.svc.CancelAppointment(context.Background(), f.docActor, a.ID, nil); err != nil {
		t.Fatalf("owning doctor should cancel: %v", err)
	}
}

// -- Reschedule --

func TestRescheduleAppointment_RoundTrip(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	moved, err := f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, tuesday, NewTimeOfDay(11, 30))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Date != tuesday || moved.Time != NewTimeOfDay(11, 30) {
		t.Errorf("unexpected slot %s %s", moved.Date, moved.Time)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")
	expectTimes(t, f.freeTimes(t, tuesday), "09:00", "09:30", "10:00", "10:30", "11:00")

	if _, err := f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, monday, NewTimeOfDay(9, 0)); err != nil {
		t.Fatalf("reschedule back: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:30")
	expectTimes(t, f.freeTimes(t, tuesday), "09:00", "09:30", "10:00", "10:30", "11:00", "11:30")

	slots, _ := f.svc.ListTimeSlots(context.Background(), f.staff, f.doctor.ID, tuesday)
	for _, ts := range slots {
		if ts.IsBooked {
			t.Errorf("tuesday slot %s should have been released", ts.StartTime)
		}
	}
}

func TestRescheduleAppointment_SameSlotNoop(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	got, err := f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, monday, NewTimeOfDay(9, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Date != monday || got.Time != NewTimeOfDay(9, 0) {
		t.Errorf("expected unchanged slot, got %s %s", got.Date, got.Time)
	}
}

func TestRescheduleAppointment_Rejections(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")
	f.book(t, f.otherPatActor, f.otherPat.ID, monday, "09:30")

	_, err := f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, monday, NewTimeOfDay(9, 30))
	expectErr(t, err, apperr.ErrConflict)

	_, err = f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, tuesday, NewTimeOfDay(12, 0))
	expectErr(t, err, apperr.ErrValidation)

	_, err = f.svc.RescheduleAppointment(context.Background(), f.otherPatActor, a.ID, tuesday, NewTimeOfDay(9, 0))
	expectErr(t, err, apperr.ErrForbidden)

	if err := f.svc.CancelAppointment(context.Background(), f.patActor, a.ID, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, tuesday, NewTimeOfDay(9, 0))
	expectErr(t, err, apperr.ErrValidation)

	// the failed attempts must not have moved anything
	expectTimes(t, f.freeTimes(t, monday), "09:00")
}

// -- Status transitions --

func TestTransitionStatus_Table(t *testing.T) {
	tests := []struct {
		path []string
		ok   bool
	}{
		{[]string{"confirmed", "arrived", "in_progress", "completed"}, true},
		{[]string{"arrived"}, true},
		{[]string{"confirmed", "no_show"}, true},
		{[]string{"in_progress"}, false},
		{[]string{"completed"}, false},
		{[]string{"scheduled"}, false},
		{[]string{"confirmed", "confirmed"}, false},
		{[]string{"arrived", "confirmed"}, false},
		{[]string{"no_show", "cancelled"}, false},
		{[]string{"cancelled", "confirmed"}, false},
	}
	for _, tt := range tests {
		f := newFixture(t, sundayNoon)
		a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

		var err error
		for _, st := range tt.path {
			if _, err = f.svc.TransitionStatus(context.Background(), f.docActor, a.ID, st, nil); err != nil {
				break
			}
		}
		if tt.ok && err != nil {
			t.Errorf("%v: unexpected error %v", tt.path, err)
		}
		if !tt.ok && !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%v: expected validation error, got %v", tt.path, err)
		}
	}
}

func TestTransitionStatus_ReleasesOnLeavingOccupying(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	if _, err := f.svc.TransitionStatus(context.Background(), f.docActor, a.ID, "confirmed", nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:30")

	notes := "did not show up"
	got, err := f.svc.TransitionStatus(context.Background(), f.staff, a.ID, "NO_SHOW", &notes)
	if err != nil {
		t.Fatalf("no_show: %v", err)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("expected notes to be replaced, got %v", got.Notes)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")
}

func TestTransitionStatus_Authority(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	_, err := f.svc.TransitionStatus(context.Background(), f.patActor, a.ID, "confirmed", nil)
	expectErr(t, err, apperr.ErrForbidden)

	otherDoc := identity.Actor{UserID: "u-doc2", Role: identity.RoleDoctor, DoctorID: &f.otherDoc.ID}
	_, err = f.svc.TransitionStatus(context.Background(), otherDoc, a.ID, "confirmed", nil)
	expectErr(t, err, apperr.ErrForbidden)

	_, err = f.svc.TransitionStatus(context.Background(), f.staff, a.ID, "postponed", nil)
	expectErr(t, err, apperr.ErrValidation)
}

// -- Reads --

func TestGetAppointment_Authority(t *testing.T) {
	f := newFixture(t, sundayNoon)
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	for _, actor := range []identity.Actor{f.patActor, f.docActor, f.staff} {
		if _, err := f.svc.GetAppointment(context.Background(), actor, a.ID); err != nil {
			t.Errorf("%s should see the appointment: %v", actor.Role, err)
		}
	}
	_, err := f.svc.GetAppointment(context.Background(), f.otherPatActor, a.ID)
	expectErr(t, err, apperr.ErrForbidden)
}

func TestListAppointments_Scoping(t *testing.T) {
	f := newFixture(t, sundayNoon)
	f.book(t, f.patActor, f.patient.ID, monday, "09:00")
	f.book(t, f.patActor, f.patient.ID, tuesday, "10:00")
	f.book(t, f.otherPatActor, f.otherPat.ID, monday, "09:30")
	ctx := context.Background()

	mine, total, err := f.svc.ListAppointments(ctx, f.patActor, AppointmentFilter{PatientID: &f.otherPat.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("patient should only see own appointments, got %d", total)
	}
	if mine[0].Date != tuesday {
		t.Errorf("expected newest first, got %s", mine[0].Date)
	}

	_, total, _ = f.svc.ListAppointments(ctx, f.staff, AppointmentFilter{})
	if total != 3 {
		t.Errorf("staff should see all, got %d", total)
	}

	otherDoc := identity.Actor{UserID: "u-doc2", Role: identity.RoleDoctor, DoctorID: &f.otherDoc.ID}
	_, total, _ = f.svc.ListAppointments(ctx, otherDoc, AppointmentFilter{DoctorID: &f.doctor.ID})
	if total != 0 {
		t.Errorf("other doctor should see nothing, got %d", total)
	}

	day := monday
	page, total, _ := f.svc.ListAppointments(ctx, f.docActor, AppointmentFilter{From: &day, To: &day, Limit: 1})
	if total != 2 || len(page) != 1 {
		t.Errorf("expected 1 of 2 monday appointments, got %d of %d", len(page), total)
	}
	if page[0].Time != NewTimeOfDay(9, 30) {
		t.Errorf("expected latest time first, got %s", page[0].Time)
	}

	_, _, err = f.svc.ListAppointments(ctx, f.staff, AppointmentFilter{Status: []Status{StatusCancelled}, From: &tuesday, To: &day})
	expectErr(t, err, apperr.ErrValidation)
}

// -- Weekly availability --

func TestWeeklyAvailability_CRUD(t *testing.T) {
	f := newFixture(t, sundayNoon)
	ctx := context.Background()
	day, start, end := Wednesday, NewTimeOfDay(14, 0), NewTimeOfDay(15, 0)

	w, err := f.svc.CreateWeeklyAvailability(ctx, f.docActor, f.doctor.ID, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Capacity != DefaultCapacity || !w.IsAvailable {
		t.Errorf("unexpected defaults: %+v", w)
	}
	expectTimes(t, f.freeTimes(t, monday.AddDays(2)), "14:00", "14:30")

	_, err = f.svc.CreateWeeklyAvailability(ctx, f.staff, f.doctor.ID, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end})
	expectErr(t, err, apperr.ErrConflict)

	later := NewTimeOfDay(16, 0)
	if _, err := f.svc.UpdateWeeklyAvailability(ctx, f.staff, w.ID, AvailabilityInput{EndTime: &later}); err != nil {
		t.Fatalf("update: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday.AddDays(2)), "14:00", "14:30", "15:00", "15:30")

	windows, _ := f.svc.ListWeeklyAvailability(ctx, f.doctor.ID)
	if len(windows) != 3 || windows[0].DayOfWeek != Monday || windows[2].DayOfWeek != Wednesday {
		t.Errorf("expected windows ordered monday first, got %d", len(windows))
	}

	if err := f.svc.DeleteWeeklyAvailability(ctx, f.docActor, w.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday.AddDays(2)))
	expectErr(t, f.svc.DeleteWeeklyAvailability(ctx, f.docActor, w.ID), apperr.ErrNotFound)
}

func TestWeeklyAvailability_Rejections(t *testing.T) {
	f := newFixture(t, sundayNoon)
	ctx := context.Background()
	day, start, end := Friday, NewTimeOfDay(9, 0), NewTimeOfDay(10, 0)
	bad := Weekday("funday")
	zero := 0

	tests := []struct {
		name  string
		actor identity.Actor
		in    AvailabilityInput
		want  error
	}{
		{"patient", f.patActor, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end}, apperr.ErrForbidden},
		{"missing fields", f.staff, AvailabilityInput{DayOfWeek: &day}, apperr.ErrValidation},
		{"unknown day", f.staff, AvailabilityInput{DayOfWeek: &bad, StartTime: &start, EndTime: &end}, apperr.ErrValidation},
		{"inverted", f.staff, AvailabilityInput{DayOfWeek: &day, StartTime: &end, EndTime: &start}, apperr.ErrValidation},
		{"empty", f.staff, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &start}, apperr.ErrValidation},
		{"zero capacity", f.staff, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end, Capacity: &zero}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateWeeklyAvailability(ctx, tt.actor, f.doctor.ID, tt.in)
			expectErr(t, err, tt.want)
		})
	}

	otherDoc := identity.Actor{UserID: "u-doc2", Role: identity.RoleDoctor, DoctorID: &f.otherDoc.ID}
	windows, _ := f.svc.ListWeeklyAvailability(ctx, f.doctor.ID)
	expectErr(t, f.svc.DeleteWeeklyAvailability(ctx, otherDoc, windows[0].ID), apperr.ErrForbidden)
}

// -- Dashboard and slot view --

func TestDoctorDashboard(t *testing.T) {
	f := newFixture(t, time.Date(2025, time.June, 9, 9, 10, 0, 0, time.UTC))
	ctx := context.Background()
	day, start, end := Monday, NewTimeOfDay(10, 0), NewTimeOfDay(10, 30)
	if _, err := f.svc.CreateWeeklyAvailability(ctx, f.docActor, f.doctor.ID, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end}); err != nil {
		t.Fatalf("add window: %v", err)
	}

	seen := &Appointment{DoctorID: f.doctor.ID, PatientID: f.otherPat.ID, Date: monday, Time: NewTimeOfDay(9, 0),
		Status: StatusCompleted, Priority: PriorityLow, Reason: "follow-up", EstimatedDuration: 30}
	if err := f.store.Appointments().Create(ctx, seen); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.book(t, f.patActor, f.patient.ID, monday, "09:30")

	d, err := f.svc.DoctorDashboard(ctx, f.docActor, f.doctor.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Date != monday || len(d.Appointments) != 2 {
		t.Fatalf("expected 2 appointments today, got %d on %s", len(d.Appointments), d.Date)
	}
	if d.CountsByStatus[StatusCompleted] != 1 || d.CountsByStatus[StatusScheduled] != 1 {
		t.Errorf("unexpected counts %v", d.CountsByStatus)
	}
	if d.UpcomingOccupying != 1 {
		t.Errorf("expected 1 upcoming, got %d", d.UpcomingOccupying)
	}
	if len(d.FreeSlots) != 1 || d.FreeSlots[0].Time != NewTimeOfDay(10, 0) {
		t.Errorf("expected only 10:00 free, got %v", d.FreeSlots)
	}

	_, err = f.svc.DoctorDashboard(ctx, f.patActor, f.doctor.ID)
	expectErr(t, err, apperr.ErrForbidden)
}

func TestTimeSlots_ClaimAndRebuild(t *testing.T) {
	f := newFixture(t, sundayNoon)
	ctx := context.Background()
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")

	slots, err := f.svc.ListTimeSlots(ctx, f.docActor, f.doctor.ID, monday)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(slots) != 1 || !slots[0].IsBooked || *slots[0].AppointmentID != a.ID || slots[0].EndTime != NewTimeOfDay(9, 30) {
		t.Fatalf("expected claimed 09:00-09:30 row, got %+v", slots)
	}

	if err := f.store.TimeSlots().ResetDay(ctx, f.doctor.ID, monday); err != nil {
		t.Fatalf("reset: %v", err)
	}
	_, err = f.svc.RebuildTimeSlots(ctx, f.docActor, f.doctor.ID, monday)
	expectErr(t, err, apperr.ErrForbidden)

	rebuilt, err := f.svc.RebuildTimeSlots(ctx, f.staff, f.doctor.ID, monday)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(rebuilt) != 1 || !rebuilt[0].IsBooked || *rebuilt[0].AppointmentID != a.ID {
		t.Errorf("rebuild should reclaim the row, got %+v", rebuilt)
	}

	_, err = f.svc.ListTimeSlots(ctx, f.patActor, f.doctor.ID, monday)
	expectErr(t, err, apperr.ErrForbidden)
}

// -- Cache --

func TestService_CacheInvalidation(t *testing.T) {
	store := cache.NewMemoryStore()
	f := newFixture(t, sundayNoon, func(c *Config) {
		c.Cache = NewAvailabilityCache(store, time.Hour)
	})

	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")
	a := f.book(t, f.patActor, f.patient.ID, monday, "09:00")
	expectTimes(t, f.freeTimes(t, monday), "09:30")

	if _, err := f.svc.RescheduleAppointment(context.Background(), f.patActor, a.ID, tuesday, NewTimeOfDay(9, 0)); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30")

	day, start, end := Monday, NewTimeOfDay(13, 0), NewTimeOfDay(13, 30)
	if _, err := f.svc.CreateWeeklyAvailability(context.Background(), f.docActor, f.doctor.ID, AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end}); err != nil {
		t.Fatalf("add window: %v", err)
	}
	expectTimes(t, f.freeTimes(t, monday), "09:00", "09:30", "13:00")
}

// pausingLedger holds the first OccupiedTimes call after its read until
// resume is closed.
type pausingLedger struct {
	AppointmentRepository
	once   sync.Once
	paused chan struct{}
	resume chan struct{}
}

func (l *pausingLedger) OccupiedTimes(ctx context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	times, err := l.AppointmentRepository.OccupiedTimes(ctx, doctorID, date)
	l.once.Do(func() {
		close(l.paused)
		<-l.resume
	})
	return times, err
}

func TestService_BookingDuringListingIsNotCachedAsFree(t *testing.T) {
	var ledger *pausingLedger
	f := newFixture(t, sundayNoon, func(c *Config) {
		c.Cache = NewAvailabilityCache(cache.NewMemoryStore(), time.Hour)
		ledger = &pausingLedger{
			AppointmentRepository: c.Appointments,
			paused:                make(chan struct{}),
			resume:                make(chan struct{}),
		}
		c.Appointments = ledger
	})

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.ListAvailableSlots(context.Background(), f.doctor.ID, monday)
		errc <- err
	}()

	<-ledger.paused
	f.book(t, f.staff, f.patient.ID, monday, "09:00")
	close(ledger.resume)
	if err := <-errc; err != nil {
		t.Fatalf("list slots: %v", err)
	}

	expectTimes(t, f.freeTimes(t, monday), "09:30")
}

func TestService_Actor(t *testing.T) {
	f := newFixture(t, sundayNoon)
	actor, err := f.svc.Actor(context.Background(), auth.Principal{UserID: "u-pat", Roles: []string{"patient"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !actor.IsPatient(f.patient.ID) {
		t.Errorf("expected patient actor, got %+v", actor)
	}
}
