package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/platform/apperr"
)

// MemoryStore is an in-process ledger, template store and slot view. It
// backs STORE=memory and the unit tests. WithinTx runs one transaction at a
// time and restores a snapshot when fn fails, so ledger and view change
// together or not at all. The occupancy invariant is also checked on every
// write, inside or outside a transaction.
type MemoryStore struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	availability map[uuid.UUID]*WeeklyAvailability
	appointments map[uuid.UUID]*Appointment
	occupied     map[SlotKey]uuid.UUID // occupying appointment per slot
	timeSlots    map[SlotKey]*TimeSlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		availability: make(map[uuid.UUID]*WeeklyAvailability),
		appointments: make(map[uuid.UUID]*Appointment),
		occupied:     make(map[SlotKey]uuid.UUID),
		timeSlots:    make(map[SlotKey]*TimeSlot),
	}
}

func (s *MemoryStore) Availability() AvailabilityRepository { return memoryAvailability{s} }
func (s *MemoryStore) Appointments() AppointmentRepository  { return memoryAppointments{s} }
func (s *MemoryStore) TimeSlots() TimeSlotRepository        { return memoryTimeSlots{s} }

type memTxKey struct{}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	appointments map[uuid.UUID]Appointment
	occupied     map[SlotKey]uuid.UUID
	timeSlots    map[SlotKey]TimeSlot
	availability map[uuid.UUID]WeeklyAvailability
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := memorySnapshot{
		appointments: make(map[uuid.UUID]Appointment, len(s.appointments)),
		occupied:     make(map[SlotKey]uuid.UUID, len(s.occupied)),
		timeSlots:    make(map[SlotKey]TimeSlot, len(s.timeSlots)),
		availability: make(map[uuid.UUID]WeeklyAvailability, len(s.availability)),
	}
	for k, v := range s.appointments {
		snap.appointments[k] = *v
	}
	for k, v := range s.occupied {
		snap.occupied[k] = v
	}
	for k, v := range s.timeSlots {
		snap.timeSlots[k] = *v
	}
	for k, v := range s.availability {
		snap.availability[k] = *v
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = make(map[uuid.UUID]*Appointment, len(snap.appointments))
	for k, v := range snap.appointments {
		s.appointments[k] = &v
	}
	s.occupied = snap.occupied
	s.timeSlots = make(map[SlotKey]*TimeSlot, len(snap.timeSlots))
	for k, v := range snap.timeSlots {
		s.timeSlots[k] = &v
	}
	s.availability = make(map[uuid.UUID]*WeeklyAvailability, len(snap.availability))
	for k, v := range snap.availability {
		s.availability[k] = &v
	}
}

// -- Weekly availability --

type memoryAvailability struct{ s *MemoryStore }

func (m memoryAvailability) duplicate(w *WeeklyAvailability) bool {
	for _, existing := range m.s.availability {
		if existing.ID != w.ID && existing.DoctorID == w.DoctorID &&
			existing.DayOfWeek == w.DayOfWeek && existing.StartTime == w.StartTime {
			return true
		}
	}
	return false
}

func (m memoryAvailability) Create(_ context.Context, w *WeeklyAvailability) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.duplicate(w) {
		return apperr.Conflict("availability for %s at %s already exists", w.DayOfWeek, w.StartTime)
	}
	w.ID = uuid.New()
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	cp := *w
	m.s.availability[w.ID] = &cp
	return nil
}

func (m memoryAvailability) GetByID(_ context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	w, ok := m.s.availability[id]
	if !ok {
		return nil, apperr.NotFound("availability %s", id)
	}
	cp := *w
	return &cp, nil
}

func (m memoryAvailability) Update(_ context.Context, w *WeeklyAvailability) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.availability[w.ID]; !ok {
		return apperr.NotFound("availability %s", w.ID)
	}
	if m.duplicate(w) {
		return apperr.Conflict("availability for %s at %s already exists", w.DayOfWeek, w.StartTime)
	}
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	m.s.availability[w.ID] = &cp
	return nil
}

func (m memoryAvailability) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.availability[id]; !ok {
		return apperr.NotFound("availability %s", id)
	}
	delete(m.s.availability, id)
	return nil
}

func (m memoryAvailability) list(match func(*WeeklyAvailability) bool) []*WeeklyAvailability {
	m.s.mu.RLock()
	var out []*WeeklyAvailability
	for _, w := range m.s.availability {
		if match(w) {
			cp := *w
			out = append(out, &cp)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if di, dj := out[i].DayOfWeek.Index(), out[j].DayOfWeek.Index(); di != dj {
			return di < dj
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (m memoryAvailability) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	return m.list(func(w *WeeklyAvailability) bool { return w.DoctorID == doctorID }), nil
}

func (m memoryAvailability) ListByDoctorDay(_ context.Context, doctorID uuid.UUID, day Weekday) ([]*WeeklyAvailability, error) {
	return m.list(func(w *WeeklyAvailability) bool { return w.DoctorID == doctorID && w.DayOfWeek == day }), nil
}

// -- Appointments --

type memoryAppointments struct{ s *MemoryStore }

func (m memoryAppointments) Create(_ context.Context, a *Appointment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a.Status.Occupying() {
		if _, taken := m.s.occupied[a.Key()]; taken {
			return slotTaken(a.Key())
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.s.appointments[a.ID] = &cp
	if a.Status.Occupying() {
		m.s.occupied[a.Key()] = a.ID
	}
	return nil
}

func (m memoryAppointments) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	a, ok := m.s.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment %s", id)
	}
	cp := *a
	return &cp, nil
}

// GetForUpdate needs no row lock: transactions are already serialized.
func (m memoryAppointments) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m memoryAppointments) Update(_ context.Context, a *Appointment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	prev, ok := m.s.appointments[a.ID]
	if !ok {
		return apperr.NotFound("appointment %s", a.ID)
	}
	if a.Status.Occupying() {
		if holder, taken := m.s.occupied[a.Key()]; taken && holder != a.ID {
			return slotTaken(a.Key())
		}
	}
	if prev.Status.Occupying() && m.s.occupied[prev.Key()] == a.ID {
		delete(m.s.occupied, prev.Key())
	}
	if a.Status.Occupying() {
		m.s.occupied[a.Key()] = a.ID
	}
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	m.s.appointments[a.ID] = &cp
	return nil
}

func (m memoryAppointments) IsOccupied(_ context.Context, key SlotKey) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	_, taken := m.s.occupied[key]
	return taken, nil
}

func (m memoryAppointments) OccupiedTimes(_ context.Context, doctorID uuid.UUID, date Date) ([]TimeOfDay, error) {
	m.s.mu.RLock()
	var out []TimeOfDay
	for k := range m.s.occupied {
		if k.DoctorID == doctorID && k.Date == date {
			out = append(out, k.Time)
		}
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m memoryAppointments) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	m.s.mu.RLock()
	var out []*Appointment
	for _, a := range m.s.appointments {
		if a.DoctorID == doctorID && a.Date == date {
			cp := *a
			out = append(out, &cp)
		}
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m memoryAppointments) List(_ context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	m.s.mu.RLock()
	var all []*Appointment
	for _, a := range m.s.appointments {
		if matchesFilter(a, f) {
			cp := *a
			all = append(all, &cp)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[j].Date.Before(all[i].Date)
		}
		return all[i].Time > all[j].Time
	})
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func matchesFilter(a *Appointment, f AppointmentFilter) bool {
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if len(f.Status) > 0 {
		found := false
		for _, s := range f.Status {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && f.To.Before(a.Date) {
		return false
	}
	return true
}

// -- Time slot view --

type memoryTimeSlots struct{ s *MemoryStore }

func (m memoryTimeSlots) Claim(_ context.Context, a *Appointment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	end := a.Time.Add(time.Duration(a.EstimatedDuration) * time.Minute)
	if end > minutesPerDay {
		end = minutesPerDay
	}
	id := a.ID
	ts, ok := m.s.timeSlots[a.Key()]
	if !ok {
		ts = &TimeSlot{ID: uuid.New(), DoctorID: a.DoctorID, Date: a.Date, StartTime: a.Time}
		m.s.timeSlots[a.Key()] = ts
	}
	ts.EndTime = end
	ts.IsAvailable = false
	ts.IsBooked = true
	ts.AppointmentID = &id
	ts.UpdatedAt = time.Now().UTC()
	return nil
}

func (m memoryTimeSlots) Release(_ context.Context, appointmentID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ts := range m.s.timeSlots {
		if ts.AppointmentID != nil && *ts.AppointmentID == appointmentID {
			resetTimeSlot(ts)
		}
	}
	return nil
}

func (m memoryTimeSlots) ResetDay(_ context.Context, doctorID uuid.UUID, date Date) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for k, ts := range m.s.timeSlots {
		if k.DoctorID == doctorID && k.Date == date {
			resetTimeSlot(ts)
		}
	}
	return nil
}

func resetTimeSlot(ts *TimeSlot) {
	ts.IsAvailable = true
	ts.IsBooked = false
	ts.AppointmentID = nil
	ts.UpdatedAt = time.Now().UTC()
}

func (m memoryTimeSlots) ListByDoctorDate(_ context.Context, doctorID uuid.UUID, date Date) ([]*TimeSlot, error) {
	m.s.mu.RLock()
	var out []*TimeSlot
	for k, ts := range m.s.timeSlots {
		if k.DoctorID == doctorID && k.Date == date {
			cp := *ts
			out = append(out, &cp)
		}
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}
