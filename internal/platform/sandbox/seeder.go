// Package sandbox populates a development deployment with reproducible demo
// doctors, patients and weekly availability so the booking flow can be tried
// without hand-entering profiles.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/domain/scheduling"
	"github.com/hospital/frontdesk/internal/platform/apperr"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated demo data.
type SeedConfig struct {
	DoctorCount  int   `json:"doctor_count"`
	PatientCount int   `json:"patient_count"`
	Seed         int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		DoctorCount:  5,
		PatientCount: 20,
		Seed:         1,
	}
}

const maxSeedCount = 500

func (c SeedConfig) validate() error {
	if c.DoctorCount < 0 || c.PatientCount < 0 {
		return apperr.Validation("doctor_count and patient_count must not be negative")
	}
	if c.DoctorCount > maxSeedCount || c.PatientCount > maxSeedCount {
		return apperr.Validation("at most %d doctors and %d patients per run", maxSeedCount, maxSeedCount)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Daniel", "Matthew", "Anthony", "Mark", "Paul",
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth",
		"Susan", "Jessica", "Sarah", "Karen", "Nancy", "Emily", "Laura",
		"Priya", "Arjun", "Ananya", "Rahul", "Meera", "Kiran", "Divya",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Wilson", "Anderson",
		"Taylor", "Moore", "Jackson", "Martin", "Lee", "Thompson", "White",
		"Sharma", "Patel", "Iyer", "Reddy", "Nair", "Gupta", "Rao",
	}
	specializations = []string{
		"Cardiology", "Dermatology", "General Medicine", "Neurology",
		"Orthopedics", "Pediatrics", "Psychiatry", "ENT", "Ophthalmology",
	}
)

// shift is one recurring window of a clinic pattern.
type shift struct {
	day        scheduling.Weekday
	start, end scheduling.TimeOfDay
}

func weekdays(start, end scheduling.TimeOfDay, days ...scheduling.Weekday) []shift {
	out := make([]shift, 0, len(days))
	for _, d := range days {
		out = append(out, shift{day: d, start: start, end: end})
	}
	return out
}

var (
	morning   = weekdays(scheduling.NewTimeOfDay(9, 0), scheduling.NewTimeOfDay(12, 0), scheduling.Monday, scheduling.Tuesday, scheduling.Wednesday, scheduling.Thursday, scheduling.Friday)
	afternoon = weekdays(scheduling.NewTimeOfDay(14, 0), scheduling.NewTimeOfDay(17, 0), scheduling.Monday, scheduling.Wednesday, scheduling.Friday)
	evening   = weekdays(scheduling.NewTimeOfDay(17, 30), scheduling.NewTimeOfDay(20, 0), scheduling.Tuesday, scheduling.Thursday)
	weekend   = weekdays(scheduling.NewTimeOfDay(10, 0), scheduling.NewTimeOfDay(13, 0), scheduling.Saturday)

	clinicPatterns = [][]shift{
		append(append([]shift{}, morning...), afternoon...),
		append(append([]shift{}, morning...), weekend...),
		append(append([]shift{}, afternoon...), evening...),
		morning,
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic demo profiles.
type DataGenerator struct {
	rng     *rand.Rand
	seed    int64
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// nextUserID is stable for a given seed, so re-running the same seed hits
// the unique user_id constraint instead of duplicating people.
func (g *DataGenerator) nextUserID(prefix string) string {
	g.counter++
	return fmt.Sprintf("sandbox-%s-%x-%04d", prefix, g.seed, g.counter)
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) Doctor() *identity.Doctor {
	userID := g.nextUserID("doc")
	return &identity.Doctor{
		UserID:          userID,
		FirstName:       g.pick(firstNames),
		LastName:        g.pick(lastNames),
		Specialization:  g.pick(specializations),
		LicenseNumber:   fmt.Sprintf("SBX-%x-%04d", g.seed, g.counter),
		ExperienceYears: 1 + g.rng.Intn(30),
		ConsultationFee: float64(300 + 50*g.rng.Intn(15)),
		IsAvailable:     true,
	}
}

func (g *DataGenerator) Patient() *identity.Patient {
	return &identity.Patient{
		UserID:    g.nextUserID("pat"),
		FirstName: g.pick(firstNames),
		LastName:  g.pick(lastNames),
	}
}

// Windows picks one of the clinic patterns.
func (g *DataGenerator) Windows() []scheduling.AvailabilityInput {
	pattern := clinicPatterns[g.rng.Intn(len(clinicPatterns))]
	out := make([]scheduling.AvailabilityInput, 0, len(pattern))
	for _, s := range pattern {
		day, start, end := s.day, s.start, s.end
		out = append(out, scheduling.AvailabilityInput{DayOfWeek: &day, StartTime: &start, EndTime: &end})
	}
	return out
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type SeedResult struct {
	Doctors  int           `json:"doctors"`
	Patients int           `json:"patients"`
	Windows  int           `json:"windows"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Seeder writes generated data through the identity directory and the
// scheduling service, so every validation rule applies to demo data too.
type Seeder struct {
	dir *identity.Directory
	svc *scheduling.Service
	// serialises runs; two concurrent runs with one seed would race on user ids
	mu sync.Mutex
}

func NewSeeder(dir *identity.Directory, svc *scheduling.Service) *Seeder {
	return &Seeder{dir: dir, svc: svc}
}

var seederActor = identity.Actor{UserID: "sandbox-seeder", Role: identity.RoleAdmin}

// Seed creates cfg.DoctorCount doctors with weekly windows and
// cfg.PatientCount patients. Profiles that already exist are skipped.
func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	gen := NewDataGenerator(cfg.Seed)
	result := &SeedResult{}

	for i := 0; i < cfg.DoctorCount; i++ {
		doc := gen.Doctor()
		windows := gen.Windows()
		if err := s.dir.CreateDoctor(ctx, doc); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("seed doctor %s: %w", doc.UserID, err)
		}
		result.Doctors++

		for _, in := range windows {
			if _, err := s.svc.CreateWeeklyAvailability(ctx, seederActor, doc.ID, in); err != nil {
				return nil, fmt.Errorf("seed availability for doctor %s: %w", doc.ID, err)
			}
			result.Windows++
		}
	}

	for i := 0; i < cfg.PatientCount; i++ {
		p := gen.Patient()
		if err := s.dir.CreatePatient(ctx, p); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("seed patient %s: %w", p.UserID, err)
		}
		result.Patients++
	}

	result.Duration = time.Since(start)
	zerolog.Ctx(ctx).Info().
		Int64("seed", gen.seed).
		Int("doctors", result.Doctors).
		Int("patients", result.Patients).
		Int("windows", result.Windows).
		Int("skipped", result.Skipped).
		Msg("sandbox data seeded")
	return result, nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

type SeedHandler struct {
	seeder *Seeder
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

// RegisterRoutes mounts the seeding endpoint. Callers guard g.
func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed)
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := DefaultSeedConfig()
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&cfg); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid seed config: "+err.Error())
		}
	}
	result, err := h.seeder.Seed(c.Request().Context(), cfg)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, result)
}
