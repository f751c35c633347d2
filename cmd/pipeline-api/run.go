package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/mediaforge/media-pipeline/internal/api_server"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/compute"
	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/events"
	"github.com/mediaforge/media-pipeline/internal/service"
	"github.com/mediaforge/media-pipeline/internal/storage"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zap.InfoLevel)
		}

		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalf("running initial migration: %v", err)
		}

		objects, err := newObjectStore(cfg)
		if err != nil {
			zap.S().Fatalf("initializing object store: %v", err)
		}

		producer := newEventProducer(cfg)
		defer func() { _ = producer.Close() }()

		backend := compute.NewClient(cfg.Service.ComputeBackendUrl, cfg.Service.ComputeBackendToken)
		resolver := service.NewStorageResolver(s, objects, cfg.Storage.InlineThreshold, cfg.Service.BaseUrl)
		capability := auth.NewCapabilityIssuer(cfg.Auth.SigningSecret)

		srvHandler := service.NewServiceHandler(s, backend, resolver, producer, capability, cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			server := apiserver.New(cfg, s, srvHandler, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalf("Error running server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating metrics listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("Error running metrics server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}

// newObjectStore wires minio when credentials are configured and falls back
// to the in-memory store for local development.
func newObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.AccessKey == "" {
		zap.S().Info("no object storage credentials, using in-memory object store")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewMinioStore(
		storage.WithEndpoint(cfg.Storage.Endpoint),
		storage.WithBucket(cfg.Storage.Bucket),
		storage.WithAccessKey(cfg.Storage.AccessKey),
		storage.WithSecretKey(cfg.Storage.SecretKey),
		storage.WithSSL(cfg.Storage.UseSSL),
	)
}

// newEventProducer publishes to kafka when brokers are configured, otherwise
// events go to stdout.
func newEventProducer(cfg *config.Config) *events.EventProducer {
	if len(cfg.Events.KafkaBrokers) > 0 && cfg.Events.KafkaBrokers[0] != "" {
		writer, err := events.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaClientID)
		if err == nil {
			return events.NewEventProducer(writer, events.WithOutputTopic(cfg.Events.KafkaTopic))
		}
		zap.S().Warnw("failed to connect to kafka, falling back to stdout writer", "error", err)
	}
	return events.NewEventProducer(&events.StdoutWriter{})
}
