package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/compute"
	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/events"
	"github.com/mediaforge/media-pipeline/internal/service"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/pkg/log"
)

// sweepCmd expires stale upload sessions and removes their staged chunks.
// Meant to run from an external scheduler, e.g. a cron job.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale upload sessions",
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

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		objects, err := newObjectStore(cfg)
		if err != nil {
			zap.S().Fatalf("initializing object store: %v", err)
		}

		resolver := service.NewStorageResolver(s, objects, cfg.Storage.InlineThreshold, cfg.Service.BaseUrl)
		capability := auth.NewCapabilityIssuer(cfg.Auth.SigningSecret)
		backend := compute.NewClient(cfg.Service.ComputeBackendUrl, cfg.Service.ComputeBackendToken)
		producer := events.NewEventProducer(&events.StdoutWriter{})
		defer func() { _ = producer.Close() }()

		srvHandler := service.NewServiceHandler(s, backend, resolver, producer, capability, cfg)

		swept, err := srvHandler.SweepExpiredUploads(cmd.Context(), time.Now())
		if err != nil {
			zap.S().Fatalf("sweeping expired upload sessions: %v", err)
		}

		zap.S().Infof("swept %d expired upload sessions", swept)
		return nil
	},
}
