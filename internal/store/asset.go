package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaforge/media-pipeline/internal/store/model"
)

type Asset interface {
	Create(ctx context.Context, asset model.GeneratedAsset) (*model.GeneratedAsset, error)
	Get(ctx context.Context, id uuid.UUID) (*model.GeneratedAsset, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) (model.GeneratedAssetList, error)
}

type AssetStore struct {
	db *gorm.DB
}

// Make sure we conform to Asset interface
var _ Asset = (*AssetStore)(nil)

func NewAssetStore(db *gorm.DB) Asset {
	return &AssetStore{db: db}
}

func (s *AssetStore) Create(ctx context.Context, asset model.GeneratedAsset) (*model.GeneratedAsset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	if err := s.getDB(ctx).WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, fmt.Errorf("creating asset: %w", err)
	}
	return &asset, nil
}

func (s *AssetStore) Get(ctx context.Context, id uuid.UUID) (*model.GeneratedAsset, error) {
	var asset model.GeneratedAsset
	result := s.getDB(ctx).WithContext(ctx).First(&asset, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying asset: %w", result.Error)
	}
	return &asset, nil
}

func (s *AssetStore) ListByJob(ctx context.Context, jobID uuid.UUID) (model.GeneratedAssetList, error) {
	var assets model.GeneratedAssetList
	result := s.getDB(ctx).WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at").
		Find(&assets)
	if result.Error != nil {
		return nil, fmt.Errorf("listing assets: %w", result.Error)
	}
	return assets, nil
}

func (s *AssetStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
