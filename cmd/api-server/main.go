package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/api"
	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/chat"
	"github.com/hackgods/emr-backend/internal/config"
	"github.com/hackgods/emr-backend/internal/db"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/invitation"
	"github.com/hackgods/emr-backend/internal/logging"
	"github.com/hackgods/emr-backend/internal/mail"
	"github.com/hackgods/emr-backend/internal/metrics"
	redisclient "github.com/hackgods/emr-backend/internal/redis"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("api-server", "dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("api-server stopped")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.DBMinConns)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Redis is optional unless chat fanout needs it; without it bookings
	// fall back to an in-process lock plus the Postgres advisory lock.
	var rdb *redis.Client
	locker := redisclient.NewLocalLocker()
	rdb, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	switch {
	case err == nil:
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	case cfg.ChatFanout == config.FanoutRedis:
		return err
	default:
		rdb = nil
		logger.Warn().Err(err).Msg("redis unavailable, using in-process schedule locks")
	}

	policy, err := appointment.NewSlotPolicy(cfg.ClinicOpen, cfg.ClinicClose, cfg.SlotMinutes, cfg.CancelledBlocksSlots)
	if err != nil {
		return err
	}

	var mailer mail.Mailer = mail.NewLogMailer(logger)
	if cfg.SMTPEnabled() {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	m := metrics.New()
	dir := directory.NewPgDirectory(pgPool)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	apptRepo := appointment.NewPgRepository(pgPool)
	chatStore := chat.NewPgStore(pgPool)

	appts := appointment.NewService(apptRepo, locker, policy, logger)
	invites := invitation.NewService(invitation.NewPgRepository(pgPool), apptRepo, dir, mailer, logger)

	opts := []chat.Option{
		chat.WithObserver(chat.Observers{chat.NewLogObserver(logger), m.ChatObserver()}),
	}
	var fanout *chat.RedisFanout
	if cfg.ChatFanout == config.FanoutRedis {
		fanout = chat.NewRedisFanout(rdb, logger)
		opts = append(opts, chat.WithFanout(fanout))
	}
	gw := chat.NewGateway(verifier, dir, chatStore, opts...)

	if fanout != nil {
		ready := make(chan struct{})
		go func() {
			if err := fanout.Run(ctx, gw, ready); err != nil {
				logger.Error().Err(err).Msg("chat fanout stopped")
			}
		}()
		select {
		case <-ready:
		case <-ctx.Done():
			return nil
		}
	}

	var redisCheck api.Checker
	if rdb != nil {
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	health := api.NewHealthHandler(pgPool.Ping, redisCheck, cfg.Env, version)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appts,
		Invitations:  invites,
		History:      chat.NewHistory(chatStore, dir, logger),
		Chat:         chat.NewHandler(gw, logger),
		Verifier:     verifier,
		Directory:    dir,
		Metrics:      m,
		Health:       health,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
