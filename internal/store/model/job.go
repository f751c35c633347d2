package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one generation request through its asynchronous lifecycle.
// Status only moves pending -> processing -> completed|failed; terminal states
// are sticky. All status writes go through conditional updates in the store.
type Job struct {
	gorm.Model
	ID             uuid.UUID        `gorm:"primaryKey"`
	OrgID          string           `gorm:"index;not null"`
	Username       string           `gorm:"not null"`
	Type           string           `gorm:"not null"`
	Params         []byte           `gorm:"type:jsonb"`
	Status         string           `gorm:"index;not null"`
	Progress       int              `gorm:"not null;default:0"`
	ExternalID     *string          `gorm:"uniqueIndex"`
	IdempotencyKey *string          `gorm:"uniqueIndex:jobs_org_id_idempotency_key"`
	IdempotencyOrg *string          `gorm:"uniqueIndex:jobs_org_id_idempotency_key"`
	Error          *string
	Assets         []GeneratedAsset `gorm:"constraint:OnDelete:CASCADE;"`
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// IsTerminal reports whether no further status transitions are accepted.
func (j Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func NewJobFromId(id uuid.UUID) *Job {
	return &Job{ID: id}
}
