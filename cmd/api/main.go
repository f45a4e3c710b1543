package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/config"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/handler"
	appointmentHandler "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/handler/appointment"
	labOrderHandler "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/handler/laborder"
	verificationHandler "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/handler/verification"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/middleware"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/notification"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository/postgres"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/router"
	laborderService "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/laborder"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/lifecycle"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/queueing"
	sweepService "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/sweep"
	verificationService "github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/auth"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/logger"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/messaging"
	redisbroker "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/messaging/redis"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/metrics"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, cfg.Database.MigrationsURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	appMetrics := metrics.New("cho")

	// Repositories
	txRunner := postgres.NewTxRunner(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	visitRepo := postgres.NewVisitRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	logRepo := postgres.NewAppointmentLogRepository(db)
	employeeRepo := postgres.NewEmployeeRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	labOrderRepo := postgres.NewLabOrderRepository(db)

	// Lifecycle events are best effort; the API still runs without Redis.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLogger.Zerolog())
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, lifecycle events disabled")
			broker = nil
		} else {
			defer broker.Close()
		}
	}

	notifier := notification.NewService(notification.Config{
		Enabled:  cfg.SMTP.Enabled,
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, patientRepo, appLogger)

	// Services
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	verifier := verificationService.NewService(appointmentRepo, appMetrics)
	lifecycleSvc := lifecycle.NewService(
		txRunner, appointmentRepo, visitRepo, queueRepo, logRepo, employeeRepo,
		queueing.NewPolicy(), hasher, notifier, broker, appLogger, appMetrics,
	)
	sweepSvc := sweepService.NewService(appointmentRepo, lifecycleSvc, cfg.Sweep.CutoffTime, appLogger, appMetrics)
	labOrderSvc := laborderService.NewService(txRunner, labOrderRepo)

	// HTTP wiring
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	r := router.NewRouter(
		authMiddleware,
		appointmentHandler.NewHandler(lifecycleSvc, verifier, sweepSvc),
		verificationHandler.NewHandler(verifier),
		labOrderHandler.NewHandler(labOrderSvc),
		handler.NewHandler(),
		router.Config{
			RateLimitRPS:   cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst: cfg.RateLimit.Burst,
			VerifyRPS:      5,
			VerifyBurst:    10,
			CORS:           middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
