package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"coino/application"
	"coino/bot"
	"coino/config"
	"coino/database"
	"coino/events"
	"coino/infrastructure"
	"coino/infrastructure/observability"
	"coino/repository"
	"coino/server"
	"coino/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("Starting coino round engine...")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}
	metrics := observability.GetMetrics()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	eventBus := events.NewBus()
	defer eventBus.Close()

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	accountService := service.NewAccountService(uowFactory, cfg)
	bettingService := service.NewBettingService(uowFactory, cfg, metrics)
	roundService := service.NewRoundService(uowFactory, cfg, metrics)
	settlementService := service.NewSettlementService(uowFactory, cfg, metrics)
	roomService := service.NewRoomService(uowFactory, cfg, metrics)
	roundFeed := service.NewRoundFeed(roundService, eventBus)

	if err := accountService.EnsureHouseAccount(ctx); err != nil {
		return fmt.Errorf("failed to ensure house account: %w", err)
	}

	source := instanceName()

	if cfg.NATSEnabled {
		natsClient, err := startEventBridge(ctx, cfg, source, eventBus, metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Error("Error closing NATS client")
			}
		}()
	}

	var scopeLock application.ScopeLock
	if cfg.RedisAddr != "" {
		redisClient, err := infrastructure.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		lock := infrastructure.NewRedisScopeLock(redisClient, cfg.ScopeLockTTL)
		defer lock.Close()
		scopeLock = lock
		log.WithField("addr", cfg.RedisAddr).Info("Redis scope lock enabled")
	}

	scheduler := application.NewRoundScheduler(
		roundService,
		settlementService,
		application.NewRoomGate(roomService),
		scopeLock,
		eventBus,
		cfg,
	)
	stopScheduler := scheduler.Start(ctx)
	defer stopScheduler()

	if cfg.DiscordToken != "" {
		discordBot, err := bot.New(bot.Config{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannelID,
		}, bot.Services{
			Accounts: accountService,
			Betting:  bettingService,
			Rounds:   roundService,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Discord bot: %w", err)
		}
		defer func() {
			if err := discordBot.Close(); err != nil {
				log.WithError(err).Error("Error closing Discord bot")
			}
		}()

		unsubscribe := application.RegisterResultAnnouncer(eventBus, discordBot.Announcer())
		defer unsubscribe()
		log.Info("Discord bot initialized successfully")
	}

	srv := server.New(cfg, server.Services{
		Accounts: accountService,
		Betting:  bettingService,
		Rounds:   roundService,
		Rooms:    roomService,
		Feed:     roundFeed,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"instance":    source,
	}).Info("Round engine is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return err
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}
	stopScheduler()

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}

// startEventBridge connects to NATS and mirrors local events to and from
// the other engine processes
func startEventBridge(ctx context.Context, cfg *config.Config, source string, bus *events.Bus, metrics *observability.MetricsProvider) (*infrastructure.NATSClient, error) {
	log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")

	client := infrastructure.NewNATSClient(cfg.NATSServers, "coino-"+source)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(infrastructure.StreamName, mapper.GetAllSubjects()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}

	publisher := infrastructure.NewNATSEventPublisher(client, mapper, source, metrics)
	publisher.Attach(bus)

	subscriber := infrastructure.NewNATSEventSubscriber(client, mapper, source, bus, metrics)
	if err := subscriber.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to event stream: %w", err)
	}

	log.Info("NATS event bridge started")
	return client, nil
}

// instanceName identifies this process in forwarded events
func instanceName() string {
	suffix := uuid.NewString()[:8]
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + suffix
	}
	return suffix
}
