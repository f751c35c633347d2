package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/config"
	handlers "github.com/mediaforge/media-pipeline/internal/handlers/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/service"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/pkg/metrics"
	"github.com/mediaforge/media-pipeline/pkg/middleware"
	"github.com/mediaforge/media-pipeline/pkg/requestid"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg        *config.Config
	store      store.Store
	srvHandler *service.ServiceHandler
	listener   net.Listener
}

// New returns a new instance of a media-pipeline API server.
func New(
	cfg *config.Config,
	store store.Store,
	srvHandler *service.ServiceHandler,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		srvHandler: srvHandler,
		listener:   listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		requestid.Middleware,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	h := handlers.NewHandler(s.srvHandler)

	router.Route("/api/v1alpha1", func(r chi.Router) {
		// backend callbacks authenticate with per-job capability tokens,
		// not user credentials
		r.Post("/jobs/{externalID}/events", h.HandleWebhookEvent)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Authenticator)

			r.Post("/jobs", h.CreateJob)
			r.Get("/jobs/{id}", h.GetJob)
			r.Get("/jobs/{id}/assets", h.ListJobAssets)
			r.Get("/assets/{id}/content", h.GetAssetContent)

			r.Post("/uploads", h.OpenUploadSession)
			r.Get("/uploads/{id}", h.GetUploadSession)
			r.Put("/uploads/{id}/chunks/{index}", h.WriteChunk)
			r.Post("/uploads/{id}/finalize", h.FinalizeUpload)

			r.Get("/realtime/token", h.GetSubscriptionToken)
		})
	})
	router.Get("/health", h.Health)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
