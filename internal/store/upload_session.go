package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediaforge/media-pipeline/internal/store/model"
)

type UploadSession interface {
	Create(ctx context.Context, session model.UploadSession) (*model.UploadSession, error)
	Get(ctx context.Context, id uuid.UUID) (*model.UploadSession, error)
	AddChunk(ctx context.Context, chunk model.UploadChunk) error
	Chunks(ctx context.Context, sessionID uuid.UUID) ([]model.UploadChunk, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) (model.UploadSessionList, error)
	DeleteChunks(ctx context.Context, sessionID uuid.UUID) error
}

type UploadSessionStore struct {
	db *gorm.DB
}

// Make sure we conform to UploadSession interface
var _ UploadSession = (*UploadSessionStore)(nil)

func NewUploadSessionStore(db *gorm.DB) UploadSession {
	return &UploadSessionStore{db: db}
}

func (s *UploadSessionStore) Create(ctx context.Context, session model.UploadSession) (*model.UploadSession, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("creating upload session: %w", err)
	}
	return &session, nil
}

func (s *UploadSessionStore) Get(ctx context.Context, id uuid.UUID) (*model.UploadSession, error) {
	var session model.UploadSession
	result := s.getDB(ctx).WithContext(ctx).First(&session, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying upload session: %w", result.Error)
	}
	return &session, nil
}

// AddChunk records a received chunk index. Re-sending the same index upserts
// the existing row, so chunk writes are idempotent and commute.
func (s *UploadSessionStore) AddChunk(ctx context.Context, chunk model.UploadChunk) error {
	err := s.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "chunk_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"size_bytes"}),
	}).Create(&chunk).Error
	if err != nil {
		return fmt.Errorf("recording chunk: %w", err)
	}
	return nil
}

func (s *UploadSessionStore) Chunks(ctx context.Context, sessionID uuid.UUID) ([]model.UploadChunk, error) {
	var chunks []model.UploadChunk
	result := s.getDB(ctx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("chunk_index").
		Find(&chunks)
	if result.Error != nil {
		return nil, fmt.Errorf("listing chunks: %w", result.Error)
	}
	return chunks, nil
}

// Transition performs a compare-and-swap on the session status; only one of
// several concurrent finalize or expiry attempts observes true.
func (s *UploadSessionStore) Transition(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	result := s.getDB(ctx).WithContext(ctx).
		Model(&model.UploadSession{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("transitioning upload session: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *UploadSessionStore) ListExpired(ctx context.Context, now time.Time) (model.UploadSessionList, error) {
	var sessions model.UploadSessionList
	result := s.getDB(ctx).WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.UploadSessionStatusOpen, now).
		Find(&sessions)
	if result.Error != nil {
		return nil, fmt.Errorf("listing expired upload sessions: %w", result.Error)
	}
	return sessions, nil
}

func (s *UploadSessionStore) DeleteChunks(ctx context.Context, sessionID uuid.UUID) error {
	result := s.getDB(ctx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.UploadChunk{})
	if result.Error != nil {
		return fmt.Errorf("deleting chunks: %w", result.Error)
	}
	return nil
}

func (s *UploadSessionStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
