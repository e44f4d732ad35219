package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hospital/frontdesk/internal/config"
	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/domain/scheduling"
	"github.com/hospital/frontdesk/internal/platform/cache"
	"github.com/hospital/frontdesk/internal/platform/db"
)

// app holds the wired services shared by serve and the operator commands.
type app struct {
	dir   *identity.Directory
	svc   *scheduling.Service
	pool  *pgxpool.Pool // nil with STORE=memory
	redis *redis.Client // nil without REDIS_URL
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

type repositories struct {
	doctors      identity.DoctorRepository
	patients     identity.PatientRepository
	templates    scheduling.AvailabilityRepository
	appointments scheduling.AppointmentRepository
	timeSlots    scheduling.TimeSlotRepository
	tx           scheduling.Transactor
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		doctors:      identity.NewDoctorRepo(pool),
		patients:     identity.NewPatientRepo(pool),
		templates:    scheduling.NewAvailabilityRepo(pool),
		appointments: scheduling.NewAppointmentRepo(pool),
		timeSlots:    scheduling.NewTimeSlotRepo(pool),
		tx:           db.NewTransactor(pool),
	}
}

func memoryRepositories() repositories {
	people := identity.NewMemoryStore()
	sched := scheduling.NewMemoryStore()
	return repositories{
		doctors:      people.Doctors(),
		patients:     people.Patients(),
		templates:    sched.Availability(),
		appointments: sched.Appointments(),
		timeSlots:    sched.TimeSlots(),
		tx:           sched,
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{}
	var repos repositories
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		repos = memoryRepositories()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("connected to database")
		a.pool = pool
		repos = postgresRepositories(pool)
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Msg("connected to redis")
		a.redis = client
		store = cache.NewRedisStore(client, "frontdesk:")
	}

	a.dir = identity.NewDirectory(repos.doctors, repos.patients)
	a.svc = scheduling.NewService(scheduling.Config{
		Templates:    repos.templates,
		Appointments: repos.appointments,
		TimeSlots:    repos.timeSlots,
		Tx:           repos.tx,
		Directory:    a.dir,
		Cache:        scheduling.NewAvailabilityCache(store, cfg.AvailabilityCacheTTL),
		Location:     loc,
	})
	return a, nil
}
