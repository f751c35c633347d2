package v1alpha1

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/service"
	"github.com/mediaforge/media-pipeline/pkg/requestid"
)

type Handler struct {
	srv *service.ServiceHandler
}

func NewHandler(srv *service.ServiceHandler) *Handler {
	return &Handler{srv: srv}
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.S().Named("handlers").Errorw("failed to encode response", "error", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respond(w, status, api.Error{Message: message, RequestId: requestid.FromContextPtr(ctx)})
}
