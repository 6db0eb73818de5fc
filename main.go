package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkease/internal/api"
	"parkease/internal/api/handler"
	"parkease/internal/api/middleware"
	"parkease/internal/config"
	"parkease/internal/domain"
	"parkease/internal/events"
	"parkease/internal/geocode"
	"parkease/internal/repository"
	"parkease/internal/repository/memory"
	"parkease/internal/repository/postgresql"
	"parkease/internal/service"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type repositories struct {
	tx           repository.TxManager
	users        repository.UserRepository
	spots        repository.SpotRepository
	reservations repository.ReservationRepository
}

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	cfg.ConfigureLogging()
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	repos, closeDB := openRepositories(ctx, cfg)
	defer closeDB()

	// 3. Realtime publishers
	wsManager := handler.NewWebSocketManager()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go wsManager.Start(hubCtx)

	publisher, closePublishers := buildPublishers(ctx, cfg, wsManager)
	defer closePublishers()

	// 4. Services
	authService := service.NewAuthService(repos.users, cfg.JWTSecret, cfg.JWTExpirationHours)
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := authService.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword, domain.RoleAdmin); err != nil {
			log.WithError(err).Fatal("could not provision bootstrap admin")
		}
	}

	var geocoder service.Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		geocoder = geocode.NewGoogleClient(cfg.GoogleMapsAPIKey, 5*time.Second)
	} else {
		log.Warn("GOOGLE_MAPS_API_KEY not set, new spots must include coordinates")
	}

	reconciler := service.NewReconciler(repos.tx, repos.spots, repos.reservations)
	reservationService := service.NewReservationService(repos.tx, repos.spots, repos.reservations,
		reconciler, publisher, cfg.HoldWindow)
	spotService := service.NewSpotService(repos.tx, repos.spots, repos.reservations, reconciler, geocoder)

	// 5. Startup repair, then expiry recovery and the periodic sweep
	if corrected, err := reconciler.ReconcileAll(ctx); err != nil {
		log.WithError(err).Error("startup reconcile failed")
	} else {
		log.WithField("corrected", corrected).Info("startup reconcile finished")
	}

	sweeper := service.NewExpirySweeper(repos.reservations, reservationService, cfg.ExpirySweepInterval)
	reservationService.SetScheduler(sweeper)
	sweeper.Start(ctx)

	// 6. HTTP
	authMiddleware := middleware.NewAuthMiddleware(authService)
	router := api.SetupRouter(api.Services{
		Auth:         authService,
		Spots:        spotService,
		Reservations: reservationService,
		Reconciler:   reconciler,
	}, authMiddleware, middleware.NewRateLimiter(cfg.ReserveRatePerMinute), wsManager)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.WithCORS(router, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.ServerPort).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced server shutdown")
	}

	sweeper.Stop()
	stopHub()
	log.Info("server stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, func()) {
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return repositories{
			tx:           store.TxManager(),
			users:        store.Users(),
			spots:        store.Spots(),
			reservations: store.Reservations(),
		}, func() {}
	}

	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	log.WithField("driver", cfg.DBDriver).Info("database connected")

	if err := postgresql.Migrate(ctx, db); err != nil {
		db.Close()
		log.WithError(err).Fatal("could not apply schema")
	}

	return repositories{
		tx:           postgresql.NewPgTxManager(db, cfg.DBTxMaxAttempts),
		users:        postgresql.NewPgUserRepository(db),
		spots:        postgresql.NewPgSpotRepository(db),
		reservations: postgresql.NewPgReservationRepository(db),
	}, closer(db)
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("closing database")
		}
	}
}

// buildPublishers always includes the websocket hub and adds SQS and Redis
// when they are configured.
func buildPublishers(ctx context.Context, cfg *config.Config, wsManager *handler.WebSocketManager) (service.EventPublisher, func()) {
	publishers := events.Multi{wsManager}
	closers := []func(){}

	if cfg.SQSEventQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.WithError(err).Fatal("could not load AWS SDK config")
		}
		publishers = append(publishers, events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SQSEventQueueURL))
		log.WithField("queue", cfg.SQSEventQueueURL).Info("publishing reservation events to SQS")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis not reachable yet, publishing will retry per event")
		}
		publishers = append(publishers, events.NewRedisPublisher(client, cfg.RedisChannel))
		closers = append(closers, func() { client.Close() })
		log.WithField("channel", cfg.RedisChannel).Info("publishing reservation events to Redis")
	}

	return publishers, func() {
		for _, c := range closers {
			c()
		}
	}
}
