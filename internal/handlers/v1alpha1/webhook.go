package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/service"
)

// HandleWebhookEvent receives job lifecycle callbacks from compute backends.
// It is mounted outside the user authentication chain; callers prove their
// identity with the per-job capability token issued at dispatch time.
func (h *Handler) HandleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	externalID := chi.URLParam(r, "externalID")
	token, ok := bearerToken(r)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var event api.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("malformed event body: %v", err))
		return
	}

	if err := h.srv.ApplyWebhookEvent(ctx, externalID, token, event); err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		case *service.ErrInvalidToken:
			respondError(ctx, w, http.StatusUnauthorized, err.Error())
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrStorage:
			zap.S().Named("webhook_handler").Errorw("storage failure while applying event", "handle", externalID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, err.Error())
		default:
			zap.S().Named("webhook_handler").Errorw("failed to apply event", "handle", externalID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to apply event: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, nil)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
