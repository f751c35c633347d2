package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/events"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
	"github.com/mediaforge/media-pipeline/pkg/metrics"
)

// ApplyWebhookEvent applies one compute-backend callback to the job state
// machine, keyed by the backend-assigned handle. Deliveries may arrive out of
// order, duplicated or concurrently; every path is idempotent. Terminal states
// are sticky: the first terminal delivery wins and later ones degrade to
// successful no-ops.
func (s *ServiceHandler) ApplyWebhookEvent(ctx context.Context, externalID, token string, event api.WebhookEvent) error {
	job, err := s.store.Job().GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrJobHandleNotFound(externalID)
		}
		return err
	}

	if err := s.capability.VerifyJobToken(token, job.ID); err != nil {
		return NewErrInvalidToken(err.Error())
	}

	switch event.EventType {
	case api.WebhookEventProgress:
		return s.applyProgress(ctx, job, event)
	case api.WebhookEventCompleted:
		return s.applyCompleted(ctx, job, event)
	case api.WebhookEventFailed:
		return s.applyFailed(ctx, job, event)
	default:
		return NewErrValidation(fmt.Sprintf("unknown event type %q", event.EventType))
	}
}

// applyProgress raises the job's progress. The store update is a monotone
// max guarded by the non-terminal states, so duplicates and out-of-order
// deliveries can never regress progress or resurrect a finished job.
func (s *ServiceHandler) applyProgress(ctx context.Context, job *model.Job, event api.WebhookEvent) error {
	if event.Progress == nil {
		return NewErrValidation("progress event is missing the progress value")
	}

	pct := *event.Progress
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	updated, err := s.store.Job().UpdateProgress(ctx, job.ID, pct)
	if err != nil {
		return err
	}
	if !updated {
		// job already terminal; late progress is dropped silently
		metrics.IncreaseWebhookEventsMetric(string(event.EventType), "noop")
		return nil
	}

	metrics.IncreaseWebhookEventsMetric(string(event.EventType), "applied")
	s.publishJobEvent(ctx, events.JobProgressKind, job, model.JobStatusProcessing, pct, "", nil)
	return nil
}

// applyCompleted transitions the job to completed. The conditional update
// guarantees that of two concurrent deliveries exactly one executes the side
// effects; the loser observes the job already terminal and reports success
// without doing anything.
func (s *ServiceHandler) applyCompleted(ctx context.Context, job *model.Job, event api.WebhookEvent) error {
	for _, d := range event.ResultDescriptors {
		if err := validateDescriptor(d); err != nil {
			return err
		}
	}

	won, err := s.store.Job().Transition(ctx, job.ID,
		[]string{model.JobStatusPending, model.JobStatusProcessing},
		model.JobStatusCompleted, nil)
	if err != nil {
		return err
	}
	if !won {
		metrics.IncreaseWebhookEventsMetric(string(event.EventType), "noop")
		return nil
	}

	assetIDs := make([]string, 0, len(event.ResultDescriptors))
	for _, d := range event.ResultDescriptors {
		asset, err := s.resolver.Persist(ctx, job, d)
		if err != nil {
			var storageErr *ErrStorage
			if errors.As(err, &storageErr) {
				// the job stays completed; the asset row carries the error
				zap.S().Named("webhook").Errorw("asset persistence failed",
					"job_id", job.ID, "file", d.FileName, "error", err)
				if asset != nil {
					assetIDs = append(assetIDs, asset.ID.String())
				}
				continue
			}
			return err
		}
		assetIDs = append(assetIDs, asset.ID.String())
	}

	metrics.IncreaseWebhookEventsMetric(string(event.EventType), "applied")
	s.publishJobEvent(ctx, events.JobCompletedKind, job, model.JobStatusCompleted, 100, "", assetIDs)
	return nil
}

// applyFailed transitions the job to failed. A late failure after a completed
// delivery is discarded: terminal states are first-arrival-wins.
func (s *ServiceHandler) applyFailed(ctx context.Context, job *model.Job, event api.WebhookEvent) error {
	msg := "generation failed"
	if event.Message != nil && *event.Message != "" {
		msg = *event.Message
	}

	won, err := s.store.Job().Transition(ctx, job.ID,
		[]string{model.JobStatusPending, model.JobStatusProcessing},
		model.JobStatusFailed, &msg)
	if err != nil {
		return err
	}
	if !won {
		metrics.IncreaseWebhookEventsMetric(string(event.EventType), "noop")
		return nil
	}

	metrics.IncreaseWebhookEventsMetric(string(event.EventType), "applied")
	s.publishJobEvent(ctx, events.JobFailedKind, job, model.JobStatusFailed, job.Progress, msg, nil)
	return nil
}

// publishJobEvent fans the event out on the owner and organization channels.
// Best-effort only: a failure to enqueue is logged, never surfaced to the
// webhook caller, and every published fact is recoverable from the job record.
func (s *ServiceHandler) publishJobEvent(ctx context.Context, kind string, job *model.Job, status string, progress int, errMsg string, assetIDs []string) {
	payload := events.JobEvent{
		JobID:    job.ID,
		JobType:  job.Type,
		Status:   status,
		Progress: progress,
		Error:    errMsg,
		AssetIDs: assetIDs,
	}

	channels := []string{auth.OwnerChannel(job.Username), auth.OrgChannel(job.OrgID)}
	if err := s.eventWriter.Publish(ctx, kind, payload, channels...); err != nil {
		zap.S().Named("webhook").Errorw("failed to publish job event",
			"job_id", job.ID, "kind", kind, "error", err)
	}
}
