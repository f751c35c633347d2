package model

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrAmbiguousLocator = errors.New("asset must carry exactly one storage locator")

// GeneratedAsset is a persisted output artifact of a completed job. Exactly
// one of InlineData, ObjectKey and VolumePath is set; an asset whose storage
// write failed carries StorageError and no locator at all.
type GeneratedAsset struct {
	gorm.Model
	ID           uuid.UUID `gorm:"primaryKey"`
	JobID        uuid.UUID `gorm:"index;not null"`
	OrgID        string    `gorm:"index;not null"`
	Username     string    `gorm:"not null"`
	FileName     string    `gorm:"not null"`
	MimeType     string    `gorm:"not null"`
	SizeBytes    int64     `gorm:"not null"`
	InlineData   []byte
	ObjectKey    *string
	VolumePath   *string
	StorageError *string
}

type GeneratedAssetList []GeneratedAsset

// Validate enforces the single-locator invariant. Assets with a storage error
// are allowed to carry no locator.
func (a GeneratedAsset) Validate() error {
	locators := 0
	if len(a.InlineData) > 0 {
		locators++
	}
	if a.ObjectKey != nil {
		locators++
	}
	if a.VolumePath != nil {
		locators++
	}

	if locators == 0 && a.StorageError != nil {
		return nil
	}
	if locators != 1 {
		return ErrAmbiguousLocator
	}
	return nil
}
