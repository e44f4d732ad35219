package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/frontdesk/internal/platform/apperr"
)

// MemoryStore keeps doctor and patient profiles in process. It backs
// STORE=memory and the unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
	}
}

// Doctors and Patients expose the store through the repository interfaces.
func (s *MemoryStore) Doctors() DoctorRepository   { return memoryDoctors{s} }
func (s *MemoryStore) Patients() PatientRepository { return memoryPatients{s} }

type memoryDoctors struct{ s *MemoryStore }

func (m memoryDoctors) Create(_ context.Context, d *Doctor) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.doctors {
		if existing.UserID == d.UserID || (d.LicenseNumber != "" && existing.LicenseNumber == d.LicenseNumber) {
			return apperr.Conflict("doctor profile already exists for user %s or license %s", d.UserID, d.LicenseNumber)
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	cp := *d
	m.s.doctors[d.ID] = &cp
	return nil
}

func (m memoryDoctors) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	d, ok := m.s.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor %s", id)
	}
	cp := *d
	return &cp, nil
}

func (m memoryDoctors) GetByUserID(_ context.Context, userID string) (*Doctor, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, d := range m.s.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("doctor profile for user %s", userID)
}

func (m memoryDoctors) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	m.s.mu.RLock()
	var all []*Doctor
	for _, d := range m.s.doctors {
		if d.IsAvailable {
			cp := *d
			all = append(all, &cp)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		return all[i].FirstName < all[j].FirstName
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type memoryPatients struct{ s *MemoryStore }

func (m memoryPatients) Create(_ context.Context, p *Patient) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.patients {
		if existing.UserID == p.UserID {
			return apperr.Conflict("patient profile already exists for user %s", p.UserID)
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.s.patients[p.ID] = &cp
	return nil
}

func (m memoryPatients) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %s", id)
	}
	cp := *p
	return &cp, nil
}

func (m memoryPatients) GetByUserID(_ context.Context, userID string) (*Patient, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, p := range m.s.patients {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("patient profile for user %s", userID)
}
