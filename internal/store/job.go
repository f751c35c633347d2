package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaforge/media-pipeline/internal/store/model"
)

type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Job, error)
	GetByIdempotencyKey(ctx context.Context, orgID, key string) (*model.Job, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []string, to string, errorMessage *string) (bool, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).WithContext(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) GetByExternalID(ctx context.Context, externalID string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).WithContext(ctx).First(&job, "external_id = ?", externalID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job by external id: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) GetByIdempotencyKey(ctx context.Context, orgID, key string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).WithContext(ctx).First(&job, "idempotency_org = ? AND idempotency_key = ?", orgID, key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job by idempotency key: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ?", id).
		Update("external_id", externalID)
	if result.Error != nil {
		return fmt.Errorf("updating job external id: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpdateProgress moves the job into processing and raises its progress to the
// given value if larger than the stored one. The update is guarded by the
// non-terminal states so a late delivery can neither resurrect a terminal job
// nor regress progress. Returns false when no row matched the guard.
func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) (bool, error) {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status IN ?", id, []string{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":   model.JobStatusProcessing,
			"progress": gorm.Expr("CASE WHEN progress > ? THEN progress ELSE ? END", progress, progress),
		})
	if result.Error != nil {
		return false, fmt.Errorf("updating job progress: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Transition performs a compare-and-swap on the job status. The write only
// lands when the current status is one of the expected states, which makes
// concurrent terminal deliveries mutually exclusive: exactly one caller
// observes true.
func (s *JobStore) Transition(ctx context.Context, id uuid.UUID, from []string, to string, errorMessage *string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == model.JobStatusCompleted {
		updates["progress"] = 100
	}
	if errorMessage != nil {
		updates["error"] = *errorMessage
	}

	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("transitioning job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
