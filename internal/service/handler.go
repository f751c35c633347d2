package service

import (
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/compute"
	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/events"
	"github.com/mediaforge/media-pipeline/internal/store"
)

// ServiceHandler carries the collaborators shared by all pipeline operations.
type ServiceHandler struct {
	store       store.Store
	backend     compute.Backend
	resolver    *StorageResolver
	eventWriter *events.EventProducer
	capability  *auth.CapabilityIssuer
	cfg         *config.Config
}

func NewServiceHandler(
	store store.Store,
	backend compute.Backend,
	resolver *StorageResolver,
	ew *events.EventProducer,
	capability *auth.CapabilityIssuer,
	cfg *config.Config,
) *ServiceHandler {
	return &ServiceHandler{
		store:       store,
		backend:     backend,
		resolver:    resolver,
		eventWriter: ew,
		capability:  capability,
		cfg:         cfg,
	}
}
