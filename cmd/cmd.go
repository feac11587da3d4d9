package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mdsync-backend/internal/config"
	"mdsync-backend/internal/events"
	"mdsync-backend/internal/handlers"
	"mdsync-backend/internal/middleware"
	"mdsync-backend/internal/repository"
	"mdsync-backend/internal/repository/memory"
	"mdsync-backend/internal/repository/postgres"
	"mdsync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the document store
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	// Change notifications
	broker, err := openBroker(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer broker.Close()

	// Optional integrations
	var archiver services.Archiver
	if cfg.AWS.S3Bucket != "" {
		s3Archiver, err := services.NewS3Archiver(ctx, services.S3Options{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create message archiver")
		}
		archiver = s3Archiver
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Expired message archive enabled")
	}

	var notifier services.Notifier
	if cfg.Push.KeyFile != "" {
		apns, err := services.NewAPNSNotifier(services.APNSOptions{
			KeyFile:    cfg.Push.KeyFile,
			KeyID:      cfg.Push.KeyID,
			TeamID:     cfg.Push.TeamID,
			Topic:      cfg.Push.Topic,
			Production: cfg.Push.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		notifier = apns
		log.Info().Bool("production", cfg.Push.Production).Msg("Push notifications enabled")
	}

	// Initialize services
	userService := services.NewUserService(store.Users, cfg.JWT.Secret, cfg.JWT.TTL)
	pairingService := services.NewPairingService(store.Users, broker)
	moodService := services.NewMoodService(store.Users, store.Moods, pairingService, broker)
	reactionService := services.NewReactionService(store.Reactions, broker)
	chatService := services.NewChatService(store.Chats, userService, broker, archiver)
	pushService := services.NewPushService(userService, notifier)
	sweeper := services.NewSweeper(chatService, cfg.Chat.SweepInterval, cfg.Chat.SweepConcurrency)
	wsHub := services.NewWSHub()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	pairHandler := handlers.NewPairHandler(pairingService)
	moodHandler := handlers.NewMoodHandler(moodService)
	reactionHandler := handlers.NewReactionHandler(reactionService, pairingService, userService, pushService)
	chatHandler := handlers.NewChatHandler(chatService, pairingService, userService, pushService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, pairingService, moodService, reactionService, chatService)

	r := handlers.NewRouter(handlers.Routes{
		Auth:      middleware.AuthMiddleware(userService),
		Users:     userHandler,
		Pairing:   pairHandler,
		Mood:      moodHandler,
		Reactions: reactionHandler,
		Chat:      chatHandler,
		WebSocket: wsHandler,
	})

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Mount("/", r)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Expired message sweep
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown
	wsHub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-sweepDone

	log.Info().Msg("Server exited")
}

// openStore connects the configured repository backend
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.Store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.NewStore(memory.New()), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DSN(), cfg.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("Database connection established")

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return postgres.NewStore(db), db.Close, nil
}

// openBroker connects to Redis when configured, otherwise stays in process
func openBroker(ctx context.Context, cfg config.RedisConfig) (events.Broker, error) {
	if cfg.Addr == "" {
		return events.NewLocalBroker(), nil
	}
	broker, err := events.NewRedisBroker(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("Redis broker connected")
	return broker, nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
