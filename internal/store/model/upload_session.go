package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UploadSessionStatusOpen      = "open"
	UploadSessionStatusFinalized = "finalized"
	UploadSessionStatusExpired   = "expired"
)

// UploadSession tracks a client uploading a large file in fixed-size chunks.
// Received chunk indices live in their own table so that concurrent chunk
// writes commute without read-modify-write cycles on the session row.
type UploadSession struct {
	gorm.Model
	ID        uuid.UUID     `gorm:"primaryKey"`
	OrgID     string        `gorm:"index;not null"`
	Username  string        `gorm:"not null"`
	TargetKey string        `gorm:"not null"`
	TotalSize int64         `gorm:"not null"`
	ChunkSize int64         `gorm:"not null"`
	Status    string        `gorm:"index;not null"`
	ExpiresAt time.Time     `gorm:"index;not null"`
	Chunks    []UploadChunk `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE;"`
}

// UploadChunk records one received chunk index. Re-sending an index upserts
// the same row, so duplicates never accumulate.
type UploadChunk struct {
	SessionID  uuid.UUID `gorm:"primaryKey;column:session_id"`
	ChunkIndex int       `gorm:"primaryKey;column:chunk_index"`
	SizeBytes  int64     `gorm:"not null"`
	CreatedAt  time.Time
}

type UploadSessionList []UploadSession

func (s UploadSession) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}

// ExpectedChunks returns the number of chunks implied by the declared total
// and chunk sizes.
func (s UploadSession) ExpectedChunks() int {
	if s.ChunkSize <= 0 {
		return 0
	}
	return int((s.TotalSize + s.ChunkSize - 1) / s.ChunkSize)
}
