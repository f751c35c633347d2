package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/mediaforge/media-pipeline/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Asset() Asset
	UploadSession() UploadSession
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db            *gorm.DB
	job           Job
	asset         Asset
	uploadSession UploadSession
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:            db,
		job:           NewJobStore(db),
		asset:         NewAssetStore(db),
		uploadSession: NewUploadSessionStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Asset() Asset {
	return s.asset
}

func (s *DataStore) UploadSession() UploadSession {
	return s.uploadSession
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Job{},
		&model.GeneratedAsset{},
		&model.UploadSession{},
		&model.UploadChunk{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
