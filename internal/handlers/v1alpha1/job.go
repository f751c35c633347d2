package v1alpha1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/handlers/v1alpha1/mappers"
	"github.com/mediaforge/media-pipeline/internal/service"
)

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	var form api.JobCreate
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	job, err := h.srv.CreateJob(ctx, user, form)
	if err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		default:
			zap.S().Named("job_handler").Errorw("failed to create job", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to create job: %v", err))
		}
		return
	}

	respond(w, http.StatusCreated, mappers.JobToApi(job))
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed job id")
		return
	}

	job, err := h.srv.GetJob(ctx, user, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		default:
			zap.S().Named("job_handler").Errorw("failed to get job", "job_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.JobToApi(job))
}

func (h *Handler) ListJobAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed job id")
		return
	}

	assets, err := h.srv.ListJobAssets(ctx, user, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		default:
			zap.S().Named("job_handler").Errorw("failed to list assets", "job_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to list assets: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.AssetListToApi(assets, h.srv.ResolveAssetURL))
}

func (h *Handler) GetAssetContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed asset id")
		return
	}

	reader, size, mimeType, err := h.srv.GetAssetContent(ctx, user, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		default:
			zap.S().Named("job_handler").Errorw("failed to read asset", "asset_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to read asset: %v", err))
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		zap.S().Named("job_handler").Warnw("failed to stream asset", "asset_id", id, "error", err)
	}
}
