package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/config"
	"github.com/hackgods/emr-backend/internal/db"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/invitation"
	"github.com/hackgods/emr-backend/internal/logging"
	"github.com/hackgods/emr-backend/internal/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("expiry-worker", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("expiry-worker", cfg.Env)
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// The worker never sends mail; the log mailer satisfies the service.
	svc := invitation.NewService(
		invitation.NewPgRepository(pgPool),
		appointment.NewPgRepository(pgPool),
		directory.NewPgDirectory(pgPool),
		mail.NewLogMailer(logger),
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *invitation.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireStale(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
}
