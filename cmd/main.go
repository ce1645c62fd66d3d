package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/auth"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/handler"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/hub"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/notifier"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/presence"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/registry"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/relay"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/repository"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/stream"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/database"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()
	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting chat service")

	// Database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db,
		&domain.SessionModel{},
		&domain.MessageModel{},
		&domain.CounselorModel{},
		&domain.RatingModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Repositories
	sessionRepo := repository.NewGormSessionRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	counselorRepo := repository.NewGormCounselorRepository(db)
	ratingRepo := repository.NewGormRatingRepository(db)

	// Blocklist: Redis when configured, otherwise in-process.
	var blocklist auth.Blocklist
	if cfg.Redis.Address != "" {
		redisBlocklist, err := auth.NewRedisBlocklist(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis blocklist unavailable, using in-memory blocklist")
			blocklist = auth.NewMemoryBlocklist()
		} else {
			blocklist = redisBlocklist
			logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis blocklist")
		}
	} else {
		blocklist = auth.NewMemoryBlocklist()
	}
	defer blocklist.Close()

	verifier := auth.NewVerifier(cfg.Auth, blocklist, counselorRepo)

	// Presence mirror
	var presenceStore presence.Store
	switch cfg.Presence.Backend {
	case "redis":
		presenceStore, err = presence.NewRedisStore(presence.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Presence.TTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis presence store")
		}
		logger.Info().Msg("using redis presence store")
	default:
		presenceStore = presence.NewMemoryStore()
	}
	defer presenceStore.Close()

	// Message stream
	var producer stream.MessageProducer
	if cfg.Stream.Enabled {
		producer, err = stream.NewConfluentProducer(cfg.Stream.Brokers, cfg.Stream.Topic, cfg.Stream.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		logger.Info().
			Str("brokers", cfg.Stream.Brokers).
			Str("topic", cfg.Stream.Topic).
			Msg("connected to kafka")
	} else {
		producer = stream.NewNoopProducer()
	}
	defer producer.Close()

	// Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	// Core components
	sessionRegistry := registry.New(sessionRepo, counselorRepo, ratingRepo)
	notifyRouter := notifier.NewRouter(wsHub)
	messageRelay := relay.New(
		sessionRepo,
		messageRepo,
		counselorRepo,
		wsHub,
		notifyRouter,
		producer,
		presenceStore,
		sessionRegistry.SessionLocks(),
		cfg.Presence.RefreshInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go messageRelay.RunPresenceRefresh(ctx)

	// HTTP + websocket surface
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	wsHandler := handler.NewWSHandler(verifier, messageRelay, wsHub, cfg.WebSocket)
	router.GET("/ws", wsHandler.Handle)

	chatHandler := handler.NewChatHandler(sessionRegistry, messageRelay)
	api := router.Group("/api")
	api.Use(handler.AuthMiddleware(verifier))
	chatHandler.RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat service stopped")
}
