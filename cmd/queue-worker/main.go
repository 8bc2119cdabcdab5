package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/config"
	"github.com/mediqueue/queue-service/internal/db"
	"github.com/mediqueue/queue-service/internal/queue"
	redisclient "github.com/mediqueue/queue-service/internal/redis"
)

// queue-worker closes out stale queues: any entry still active for a past
// visit date gets completed (serving) or cancelled (waiting/next), so
// yesterday's no-shows never block today's queue.
func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "queue-worker").Logger()
	log.Info().Msg("queue-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("running day-closure worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	// The closure sweep can touch many rows after downtime, so the worker
	// gets the full run budget rather than the per-call API timeout.
	repo := queue.NewPgRepository(pgPool, runTimeout)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	notifier := redisclient.NewQueueNotifier(rdb)
	svc := queue.NewService(repo, locker, notifier, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping queue-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

const runTimeout = 20 * time.Second

func runOnce(ctx context.Context, svc *queue.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	today := time.Now().Format(appointment.DateLayout)

	start := time.Now()
	closed, err := svc.CloseStaleDays(runCtx, today)
	if err != nil {
		log.Error().Err(err).Msg("day-closure run error")
		return
	}
	log.Info().Int("closed", closed).Dur("took", time.Since(start)).Msg("day-closure run complete")
}
