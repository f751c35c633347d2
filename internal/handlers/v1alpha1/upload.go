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

func (h *Handler) OpenUploadSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	var form api.UploadSessionCreate
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	session, err := h.srv.OpenUploadSession(ctx, user, form)
	if err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		default:
			zap.S().Named("upload_handler").Errorw("failed to open upload session", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to open upload session: %v", err))
		}
		return
	}

	respond(w, http.StatusCreated, mappers.UploadSessionToApi(session, nil))
}

func (h *Handler) GetUploadSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed session id")
		return
	}

	session, chunks, err := h.srv.GetUploadSession(ctx, user, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		default:
			zap.S().Named("upload_handler").Errorw("failed to get upload session", "session_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to get upload session: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, mappers.UploadSessionToApi(session, chunks))
}

func (h *Handler) WriteChunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed session id")
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed chunk index")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("failed to read chunk body: %v", err))
		return
	}

	if err := h.srv.WriteChunk(ctx, user, id, index, data); err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		case *service.ErrSessionExpired:
			respondError(ctx, w, http.StatusGone, err.Error())
		case *service.ErrChunkOutOfRange:
			respondError(ctx, w, http.StatusRequestedRangeNotSatisfiable, err.Error())
		case *service.ErrStorage:
			zap.S().Named("upload_handler").Errorw("failed to stage chunk", "session_id", id, "index", index, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, err.Error())
		default:
			zap.S().Named("upload_handler").Errorw("failed to write chunk", "session_id", id, "index", index, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to write chunk: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, nil)
}

func (h *Handler) FinalizeUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.MustHaveUser(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "malformed session id")
		return
	}

	key, err := h.srv.FinalizeUpload(ctx, user, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrValidation:
			respondError(ctx, w, http.StatusBadRequest, err.Error())
		case *service.ErrResourceNotFound:
			respondError(ctx, w, http.StatusNotFound, err.Error())
		case *service.ErrAccessForbidden:
			respondError(ctx, w, http.StatusForbidden, err.Error())
		case *service.ErrMissingChunks:
			respondError(ctx, w, http.StatusConflict, err.Error())
		case *service.ErrSessionExpired:
			respondError(ctx, w, http.StatusGone, err.Error())
		case *service.ErrStorage:
			zap.S().Named("upload_handler").Errorw("failed to assemble upload", "session_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, err.Error())
		default:
			zap.S().Named("upload_handler").Errorw("failed to finalize upload", "session_id", id, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, fmt.Sprintf("failed to finalize upload: %v", err))
		}
		return
	}

	respond(w, http.StatusOK, api.UploadFinalizeResult{ObjectKey: key})
}
