package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-manager/src/config"
	"stream-manager/src/feeds"
	"stream-manager/src/handlers"
	"stream-manager/src/logger"
	"stream-manager/src/managers"
	"stream-manager/src/publishers"
	"stream-manager/src/serializers"
	"stream-manager/src/strategies"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local overrides
	_ = godotenv.Load()
	if envPath := os.Getenv("STREAM_CONFIG"); envPath != "" {
		*configPath = envPath
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(&cfg.Logger, cfg.Name)

	// Build strategy from config
	strategy, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		appLogger.Critical("failed to create strategy: %v", err)
		os.Exit(1)
	}

	serializer := serializers.NewSerializer(cfg.Feed.Serializer)

	// Strategy manager with its listeners and connection protocol
	manager := managers.NewStrategyManager(strategy, cfg.Manager, appLogger)
	handler := handlers.NewMessageHandler(manager, serializer, appLogger)
	if err := handler.Bind(manager.PushRoutes); err != nil {
		appLogger.Critical("failed to bind connection protocol: %v", err)
		os.Exit(1)
	}

	// Optional NATS signal distribution
	if cfg.NATS != nil {
		publisher := publishers.NewNATSPublisher(cfg.NATS, appLogger, serializer)
		if err := publisher.Connect(); err != nil {
			appLogger.Warning("NATS unavailable, continuing without signal distribution: %v", err)
		} else {
			manager.SetPublisher(publisher)
			defer publisher.Disconnect()
		}
	}

	if err := manager.Start(); err != nil {
		appLogger.Critical("failed to start strategy manager: %v", err)
		os.Exit(1)
	}
	defer manager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// When an upstream endpoint is configured the feed manager rebroadcasts
	// it locally and the strategy manager consumes the local channel.
	var feedManager *managers.FeedManager
	if cfg.Feed.Endpoint != "" {
		source := feeds.NewWebsocketFeed(cfg.Feed.Endpoint, serializer, appLogger)
		if err := source.Connect(ctx); err != nil {
			appLogger.Critical("failed to connect upstream feed: %v", err)
			os.Exit(1)
		}
		defer source.Disconnect()

		feedManager = managers.NewFeedManager(source, cfg.Feed, appLogger)
		if err := feedManager.Start(); err != nil {
			appLogger.Critical("failed to start feed manager: %v", err)
			os.Exit(1)
		}
		defer feedManager.Stop()

		local := fmt.Sprintf("ws://localhost:%d/%s", cfg.Feed.Port, cfg.Feed.Channel)
		consumer := feeds.NewWebsocketFeed(local, serializer, appLogger)
		if err := consumer.Connect(ctx); err != nil {
			appLogger.Critical("failed to connect feed channel: %v", err)
			os.Exit(1)
		}
		defer consumer.Disconnect()

		if err := manager.Run(consumer, true); err != nil {
			appLogger.Critical("failed to start consumption: %v", err)
			os.Exit(1)
		}
	} else {
		appLogger.Info("no upstream feed configured, snapshot-driven mode")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Poll listener fault queues; a captured fault is fatal by policy
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if fault := manager.GetException(); fault != nil {
					appLogger.Critical("listener fault: %v", fault)
					sigChan <- syscall.SIGTERM
					return
				}
				if feedManager != nil {
					if fault := feedManager.GetException(); fault != nil {
						appLogger.Critical("feed listener fault: %v", fault)
						sigChan <- syscall.SIGTERM
						return
					}
				}
			}
		}
	}()

	appLogger.Info("stream manager running. HTTP: :%d, websocket: :%d",
		cfg.Manager.ServerPort, cfg.Manager.WebsocketPort)
	appLogger.Info("Press Ctrl+C to stop.")

	<-sigChan
	appLogger.Info("shutting down...")
}
