package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stitchd-marketplace-service/internal/adapters/broadcaster"
	"stitchd-marketplace-service/internal/adapters/cache"
	"stitchd-marketplace-service/internal/adapters/db"
	"stitchd-marketplace-service/internal/adapters/identity"
	"stitchd-marketplace-service/internal/adapters/nats"
	"stitchd-marketplace-service/internal/adapters/redis"
	"stitchd-marketplace-service/internal/adapters/ws"
	"stitchd-marketplace-service/internal/app"
	"stitchd-marketplace-service/internal/config"
	"stitchd-marketplace-service/internal/ports/outbound"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Stitchd Marketplace Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	repoFactory := db.NewRepositoryFactory(dbConn)
	listingRepo := repoFactory.GetListingRepository()

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster and listing cache
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	listingCache := cache.NewListingCache(cache.ListingCacheParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	// Create NATS publisher when configured; events to sibling services
	// are optional
	var publisher outbound.EventPublisher
	if cfg.NATS.URL != "" {
		natsPublisher, err := nats.NewPublisher(nats.PublisherParams{
			URL:    cfg.NATS.URL,
			Logger: log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		log.Info().Msg("NATS publisher initialized")
	}

	// Identity resolution is delegated to the auth subsystem's tokens
	identityResolver := identity.NewJWTResolver(cfg.Auth.JWTSecret)

	// Create business services
	listingService := app.NewListingService(app.ListingServiceParams{
		ListingRepo: listingRepo,
		Identity:    identityResolver,
		Cache:       listingCache,
		Broadcaster: redisBroadcaster,
		Publisher:   publisher,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		ListingRepo: listingRepo,
		Identity:    identityResolver,
		Cache:       listingCache,
		Broadcaster: redisBroadcaster,
		Publisher:   publisher,
		Logger:      log.Logger,
	})

	projection := app.NewMarketplaceProjection(app.MarketplaceProjectionParams{
		ListingService: listingService,
		BidService:     bidService,
		Logger:         log.Logger,
	})

	log.Info().Msg("Business services initialized")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		ListingService: listingService,
		BidService:     bidService,
		Projection:     projection,
		Identity:       identityResolver,
		Broadcaster:    redisBroadcaster,
		Logger:         log.Logger,
	})

	log.Info().Msg("WebSocket server initialized")

	// Start WebSocket server
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting WebSocket server")
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		// JSON format (default)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
