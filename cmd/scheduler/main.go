package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/segyhp/koperasi-loan-engine/internal/config"
	"github.com/segyhp/koperasi-loan-engine/internal/lock"
	"github.com/segyhp/koperasi-loan-engine/internal/repository"
	"github.com/segyhp/koperasi-loan-engine/internal/service"
	"github.com/segyhp/koperasi-loan-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Logging)

	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// the scheduler must share loan locks with the server when redis is configured
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Business.LockTTL)
	}

	loanService := service.NewLoanService(repository.NewStore(db), locker, cfg)

	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.GetSchedulerLocation()))
	if err := setupCronJobs(c, cfg, loanService); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}

	c.Start()
	log.Info().Str("spec", cfg.Scheduler.StatusRefreshSpec).Str("timezone", cfg.Scheduler.Timezone).
		Msg("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down scheduler")
	// wait for a running refresh to finish
	<-c.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

type statusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// setupCronJobs registers the nightly status refresh. Delinquency moves with the calendar,
// so stored statuses go stale without any ledger activity.
func setupCronJobs(c *cron.Cron, cfg *config.Config, refresher statusRefresher) error {
	_, err := c.AddFunc(cfg.Scheduler.StatusRefreshSpec, func() {
		refreshStatuses(refresher, 10*time.Minute)
	})
	return err
}

func refreshStatuses(refresher statusRefresher, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	changed, err := refresher.RefreshStatuses(ctx)
	if err != nil {
		log.Error().Err(err).Int("changed", changed).Msg("loan status refresh failed")
		return
	}

	log.Info().Int("changed", changed).Dur("duration", time.Since(start)).Msg("loan statuses refreshed")
}
