package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/config"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository/postgres"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/lifecycle"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/queueing"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/sweep"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/logger"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/metrics"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/security"
)

// WorkerConfig is read straight from the environment; the worker runs in
// cron-like deployments where a config file is more trouble than it is worth.
type WorkerConfig struct {
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        int           `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" default:"cho_koronadal"`
	DBSSLMode     string        `envconfig:"DB_SSLMODE" default:"disable"`
	SweepCutoff   string        `envconfig:"SWEEP_CUTOFF" default:"17:00:00"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"5m"`
	RunOnce       bool          `envconfig:"RUN_ONCE" default:"false"`
	MigrationsURL string        `envconfig:"MIGRATIONS_URL" default:""`
}

func main() {
	var cfg WorkerConfig
	if err := envconfig.Process("worker", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.MigrationsURL != "" {
		if err := postgres.RunMigrations(db, cfg.MigrationsURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	appMetrics := metrics.New("cho_worker")

	lifecycleSvc := lifecycle.NewService(
		postgres.NewTxRunner(db),
		postgres.NewAppointmentRepository(db),
		postgres.NewVisitRepository(db),
		postgres.NewQueueRepository(db),
		postgres.NewAppointmentLogRepository(db),
		postgres.NewEmployeeRepository(db),
		queueing.NewPolicy(),
		security.NewBcryptHasher(bcrypt.DefaultCost),
		nil, // worker cancellations are system actions, no email
		nil,
		appLogger,
		appMetrics,
	)
	sweeper := sweep.NewService(postgres.NewAppointmentRepository(db), lifecycleSvc, cfg.SweepCutoff, appLogger, appMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunOnce {
		if err := runSweep(ctx, sweeper); err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		return
	}

	log.Info().Str("cutoff", cfg.SweepCutoff).Dur("interval", cfg.PollInterval).Msg("starting sweep worker")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweep worker stopped")
			return
		case <-ticker.C:
			if err := runSweep(ctx, sweeper); err != nil {
				log.Error().Err(err).Msg("sweep run failed")
			}
		}
	}
}

func runSweep(ctx context.Context, sweeper *sweep.Service) error {
	now := time.Now()
	result, err := sweeper.Run(ctx, now)
	if err != nil {
		// Before cutoff the run is simply not due yet.
		if apperrors.IsCode(err, apperrors.ErrBadRequest) {
			log.Debug().Time("as_of", now).Msg("sweep not due")
			return nil
		}
		return fmt.Errorf("run sweep: %w", err)
	}
	if result.CancelledCount > 0 {
		log.Info().
			Int("cancelled", result.CancelledCount).
			Int("no_show", result.NoShowCount).
			Int("left_early", result.LeftEarlyCount).
			Int("skipped", result.SkippedCount).
			Msg("sweep completed")
	}
	return nil
}
