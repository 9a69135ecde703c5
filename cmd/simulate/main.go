package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/config"
	"github.com/hackgods/emr-backend/internal/db"
	"github.com/hackgods/emr-backend/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	Days              int
	BookingRatio      float64
	UpdateRatio       float64
	ReadRatio         float64
	PatientLimit      int
	PractitionerLimit int
	// Race makes every worker book the same window once instead of running
	// the mixed workload.
	Race bool
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("simulate", "dev")
		bootLog.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New("simulate", baseCfg.Env)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("update", cfg.UpdateRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	policy, err := appointment.NewSlotPolicy(baseCfg.ClinicOpen, baseCfg.ClinicClose, baseCfg.SlotMinutes, baseCfg.CancelledBlocksSlots)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic hours")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, baseCfg.DBMaxConns, baseCfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	issuer := auth.NewIssuer(baseCfg.JWTSecret, cfg.Duration+time.Hour)
	dataPool, err := loadDataPool(ctx, pgPool, issuer, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("practitioners", len(dataPool.Practitioners)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		starts: startTimes(policy),
		days:   bookingDays(time.Now(), cfg.Days),
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	if cfg.Race {
		sim.Race()
	} else {
		sim.Run()
	}
	sim.PrintReport(os.Stdout)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		Days:              getInt("SIM_DAYS", 5),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.5),
		UpdateRatio:       getFloat("SIM_UPDATE_RATIO", 0.2),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 4000),
		PractitionerLimit: getInt("SIM_PRACTITIONER_LIMIT", 20),
		Race:              os.Getenv("SIM_RACE") == "true",
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.UpdateRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.UpdateRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, issuer *auth.Issuer, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	// Only practitioners can book, and a few of them sharing many patients
	// keeps the schedules contended.
	rows, err = pool.Query(ctx, `
		SELECT id FROM users
		WHERE role IN ('doctor', 'nurse')
		ORDER BY created_at
		LIMIT $1
	`, cfg.PractitionerLimit)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		token, err := issuer.Issue(id)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		dataPool.Practitioners = append(dataPool.Practitioners, Practitioner{ID: id, Token: token})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run emrctl seed first")
	}
	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded, run emrctl seed first")
	}

	return dataPool, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
