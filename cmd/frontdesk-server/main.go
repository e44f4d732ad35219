package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hospital/frontdesk/internal/config"
	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/domain/scheduling"
	"github.com/hospital/frontdesk/internal/platform/auth"
	"github.com/hospital/frontdesk/internal/platform/db"
	"github.com/hospital/frontdesk/internal/platform/logging"
	"github.com/hospital/frontdesk/internal/platform/middleware"
	"github.com/hospital/frontdesk/internal/platform/sandbox"
	"github.com/hospital/frontdesk/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "frontdesk-server",
		Short: "Hospital appointment scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool, dir, schema)
			if err != nil {
				return err
			}
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool, dir, schema)
			if err != nil {
				return err
			}
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				fmt.Println(formatStatus(s))
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func formatStatus(s db.MigrationStatus) string {
	status := "pending"
	appliedAt := ""
	if s.Applied {
		status = "applied"
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
	}
	return fmt.Sprintf("%-10d %-40s %-10s %s", s.Version, s.Name, status, appliedAt)
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

// systemActor runs operator commands with staff authority.
var systemActor = identity.Actor{UserID: "frontdesk-cli", Role: identity.RoleAdmin}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Maintain the materialized time-slot view",
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild one doctor's time slots for a date from the appointment ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorFlag, _ := cmd.Flags().GetString("doctor")
			dateFlag, _ := cmd.Flags().GetString("date")

			doctorID, err := uuid.Parse(doctorFlag)
			if err != nil {
				return fmt.Errorf("invalid --doctor: %w", err)
			}
			date, err := scheduling.ParseDate(dateFlag)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closer := newLogger(cfg)
			defer closer.Close()

			ctx := logger.WithContext(context.Background())
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.svc.RebuildTimeSlots(ctx, systemActor, doctorID, date)
			if err != nil {
				return err
			}
			booked := 0
			for _, r := range rows {
				if r.IsBooked {
					booked++
				}
			}
			fmt.Printf("Rebuilt %d slot(s) for doctor %s on %s, %d booked.\n", len(rows), doctorID, date, booked)
			return nil
		},
	}
	rebuildCmd.Flags().String("doctor", "", "Doctor id")
	rebuildCmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	_ = rebuildCmd.MarkFlagRequired("doctor")
	_ = rebuildCmd.MarkFlagRequired("date")
	cmd.AddCommand(rebuildCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reproducible demo doctors, patients and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.DoctorCount, _ = cmd.Flags().GetInt("doctors")
			seedCfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store == config.StoreMemory {
				return fmt.Errorf("seed writes to the database; use `serve` with ENV=development to seed the in-memory store")
			}
			logger, closer := newLogger(cfg)
			defer closer.Close()

			ctx := logger.WithContext(context.Background())
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := sandbox.NewSeeder(a.dir, a.svc).Seed(ctx, seedCfg)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d doctor(s), %d patient(s), %d window(s); %d skipped.\n",
				result.Doctors, result.Patients, result.Windows, result.Skipped)
			return nil
		},
	}
	defaults := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("doctors", defaults.DoctorCount, "Number of doctors")
	cmd.Flags().Int("patients", defaults.PatientCount, "Number of patients")
	cmd.Flags().Int64("seed", defaults.Seed, "Random seed; the same seed produces the same people")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer) {
	logger, closer := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDev(),
		File:        cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
		Service:     "frontdesk",
	})
	zerolog.DefaultContextLogger = &logger
	return logger, closer
}

func runServer() error {
	// Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logger
	logger, closer := newLogger(cfg)
	defer closer.Close()

	ctx := logger.WithContext(context.Background())

	// Telemetry
	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "frontdesk",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise application")
	}
	defer a.Close()

	if cfg.IsDev() && cfg.Store == config.StoreMemory {
		if _, err := sandbox.NewSeeder(a.dir, a.svc).Seed(ctx, sandbox.DefaultSeedConfig()); err != nil {
			logger.Warn().Err(err).Msg("sandbox seeding failed")
		}
	}

	policy, err := auth.NewPolicy(auth.DefaultPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load authorization policy")
	}

	e := newRouter(cfg, logger, a, policy, tel)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newRouter mounts middleware and every domain handler. tel may be nil, which
// disables tracing middleware and /metrics.
func newRouter(cfg *config.Config, logger zerolog.Logger, a *app, policy *auth.Policy, tel *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	if tel != nil {
		e.Use(telemetry.Middleware(tel.TracerProvider, tel.MeterProvider))
	}
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader, auth.DevRolesHeader},
	}))

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// API groups. Both share the prefix; only api carries authentication.
	public := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	api := e.Group("/api/v1", authMiddleware(cfg), middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(a.dir).RegisterRoutes(public, api)
	scheduling.NewHandler(a.svc).RegisterRoutes(public, api, policy)
	if cfg.IsDev() {
		sandbox.NewSeedHandler(sandbox.NewSeeder(a.dir, a.svc)).RegisterRoutes(
			api.Group("", auth.RequireRole(auth.RoleAdmin)),
		)
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.Store,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	if tel != nil && cfg.MetricsEnabled {
		e.GET("/metrics", tel.PrometheusHandler())
	}

	return e
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}
