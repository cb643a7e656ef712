package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/api"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/config"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/eventbus"
	internalgrpc "github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/grpc"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/janitor"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/logging"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/notify"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/repository"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.Setup(cfg.Logging.Level)
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
	logger := slog.Default()
	metrics := observability.NewMetrics()

	if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	broadcaster := notify.NewBroadcaster(0, metrics)
	sinks := notify.Fanout{broadcaster}
	sinkNames := []string{"websocket"}

	if cfg.Notify.NATSURL != "" {
		nc, err := eventbus.Connect(cfg.Notify.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Drain()
		sinks = append(sinks, eventbus.NewNATSSink(nc, logger))
		sinkNames = append(sinkNames, "nats")
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kafka := eventbus.NewKafkaSink(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, metrics, logger)
		defer kafka.Close()
		sinks = append(sinks, kafka)
		sinkNames = append(sinkNames, "kafka")
	}

	policy := newFallbackPolicy(cfg)
	orch, err := newOrchestrator(cfg, policy, sinks, db, metrics, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	sweeper, err := janitor.New(orch, cfg.Registry.TTL, cfg.Registry.SweepSchedule, logger)
	if err != nil {
		return err
	}
	sweeper.Start()

	grpcServer := internalgrpc.NewServer(orch, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	rooms := notify.NewRoomHandler(broadcaster, orch, cfg.Server.AllowedOrigins, logger)
	handler := api.NewHandler(orch, db, rooms, policy, api.Info{
		LLMConfigured:  cfg.LLM.APIKey != "",
		LiveProviders:  liveProviders(cfg),
		SampleLayers:   cfg.Providers.GeoHubURL == "",
		ArchiveEnabled: true,
		Sinks:          sinkNames,
	})
	handler.RegisterRoutes(router, api.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Cancelled runs still settle, so their terminal events reach NATS and
	// Kafka before the deferred closes.
	cancel()
	sweeper.Stop()
	orch.Stop()
	broadcaster.Close()
	grpcServer.Stop()

	slog.Info("shutdown complete")
	return nil
}
