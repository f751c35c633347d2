package v1alpha1

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
)

func (h *Handler) GetSubscriptionToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	token, channels, expiresAt, err := h.srv.IssueSubscriptionToken(ctx, user)
	if err != nil {
		zap.S().Named("realtime_handler").Errorw("failed to issue subscription token", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to issue subscription token: %v", err))
		return
	}

	respond(w, http.StatusOK, api.SubscriptionToken{
		Token:     token,
		Channels:  channels,
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
