package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/compute"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
	"github.com/mediaforge/media-pipeline/pkg/metrics"
)

// CreateJob validates the request, writes the job in pending state and
// forwards it to the compute backend. When the caller supplies an idempotency
// key, a prior job with the same key and owner is returned unchanged. A
// synchronous dispatch failure moves the job straight to failed; there is no
// retry at this layer.
func (s *ServiceHandler) CreateJob(ctx context.Context, user auth.User, form api.JobCreate) (*model.Job, error) {
	params, err := validateJobParams(form.Type, form.Params)
	if err != nil {
		return nil, err
	}

	if form.IdempotencyKey != nil && *form.IdempotencyKey != "" {
		existing, err := s.store.Job().GetByIdempotencyKey(ctx, user.Organization, *form.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrRecordNotFound) {
			return nil, err
		}
	}

	job := model.Job{
		ID:       uuid.New(),
		OrgID:    user.Organization,
		Username: user.Username,
		Type:     string(form.Type),
		Params:   params,
		Status:   model.JobStatusPending,
	}
	if form.IdempotencyKey != nil && *form.IdempotencyKey != "" {
		job.IdempotencyKey = form.IdempotencyKey
		org := user.Organization
		job.IdempotencyOrg = &org
	}

	created, err := s.store.Job().Create(ctx, job)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) && job.IdempotencyKey != nil {
			// lost the race against a concurrent submit with the same key
			return s.store.Job().GetByIdempotencyKey(ctx, user.Organization, *job.IdempotencyKey)
		}
		return nil, err
	}

	webhookToken, err := s.capability.IssueJobToken(created.ID)
	if err != nil {
		return nil, err
	}

	externalID, err := s.backend.Dispatch(ctx, compute.DispatchRequest{
		JobID:        created.ID.String(),
		JobType:      created.Type,
		Params:       created.Params,
		WebhookURL:   fmt.Sprintf("%s/api/v1alpha1/jobs", strings.TrimRight(s.cfg.Service.BaseUrl, "/")),
		WebhookToken: webhookToken,
	})
	if err != nil {
		zap.S().Named("job_service").Errorw("dispatch failed", "job_id", created.ID, "error", err)
		metrics.IncreaseJobsDispatchedMetric(created.Type, "failed")

		msg := err.Error()
		if _, terr := s.store.Job().Transition(ctx, created.ID, []string{model.JobStatusPending}, model.JobStatusFailed, &msg); terr != nil {
			return nil, terr
		}
		return s.store.Job().Get(ctx, created.ID)
	}

	if err := s.store.Job().SetExternalID(ctx, created.ID, externalID); err != nil {
		return nil, err
	}
	created.ExternalID = &externalID

	metrics.IncreaseJobsDispatchedMetric(created.Type, "dispatched")
	zap.S().Named("job_service").Infow("job dispatched", "job_id", created.ID, "external_id", externalID)

	return created, nil
}

func (s *ServiceHandler) GetJob(ctx context.Context, user auth.User, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}

	if err := checkJobAccess(job, user); err != nil {
		return nil, err
	}
	return job, nil
}

// ResolveAssetURL returns the canonical retrieval URL for an asset.
func (s *ServiceHandler) ResolveAssetURL(asset *model.GeneratedAsset) string {
	return s.resolver.ResolveURL(asset)
}

func (s *ServiceHandler) ListJobAssets(ctx context.Context, user auth.User, jobID uuid.UUID) (model.GeneratedAssetList, error) {
	job, err := s.GetJob(ctx, user, jobID)
	if err != nil {
		return nil, err
	}

	return s.store.Asset().ListByJob(ctx, job.ID)
}

// GetAssetContent streams an asset's bytes regardless of which storage tier
// holds them.
func (s *ServiceHandler) GetAssetContent(ctx context.Context, user auth.User, id uuid.UUID) (io.ReadCloser, int64, string, error) {
	asset, err := s.store.Asset().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, 0, "", NewErrAssetNotFound(id)
		}
		return nil, 0, "", err
	}

	if asset.OrgID != user.Organization {
		return nil, 0, "", NewErrAccessForbidden("asset", id.String())
	}

	switch {
	case len(asset.InlineData) > 0:
		return io.NopCloser(bytes.NewReader(asset.InlineData)), int64(len(asset.InlineData)), asset.MimeType, nil

	case asset.ObjectKey != nil:
		reader, size, err := s.resolver.objects.Get(ctx, *asset.ObjectKey)
		if err != nil {
			return nil, 0, "", NewErrStorage(fmt.Sprintf("reading asset %s", *asset.ObjectKey), err)
		}
		return reader, size, asset.MimeType, nil

	case asset.VolumePath != nil:
		full := filepath.Join(s.cfg.Storage.VolumeBasePath, filepath.Clean("/"+*asset.VolumePath))
		f, err := os.Open(full)
		if err != nil {
			return nil, 0, "", NewErrStorage(fmt.Sprintf("reading volume path %s", *asset.VolumePath), err)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, "", NewErrStorage(fmt.Sprintf("reading volume path %s", *asset.VolumePath), err)
		}
		return f, info.Size(), asset.MimeType, nil

	default:
		return nil, 0, "", NewErrAssetNotFound(id)
	}
}

func checkJobAccess(job *model.Job, user auth.User) error {
	if job.OrgID != user.Organization || job.Username != user.Username {
		return NewErrAccessForbidden("job", job.ID.String())
	}
	return nil
}
