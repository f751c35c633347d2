package v1alpha1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

type JobType string

const (
	JobTypeTextToImage  JobType = "text-to-image"
	JobTypeImageToImage JobType = "image-to-image"
	JobTypeTextToVideo  JobType = "text-to-video"
	JobTypeUpscale      JobType = "upscale"
)

// TextToImageParams are the parameters accepted for text-to-image jobs.
type TextToImageParams struct {
	Prompt         string `json:"prompt" validate:"required,min=1,max=4000"`
	NegativePrompt string `json:"negativePrompt,omitempty" validate:"max=4000"`
	Width          int    `json:"width" validate:"required,min=64,max=4096"`
	Height         int    `json:"height" validate:"required,min=64,max=4096"`
	Steps          int    `json:"steps,omitempty" validate:"omitempty,min=1,max=150"`
	Seed           *int64 `json:"seed,omitempty"`
}

type ImageToImageParams struct {
	Prompt    string  `json:"prompt" validate:"required,min=1,max=4000"`
	SourceKey string  `json:"sourceKey" validate:"required"`
	Strength  float64 `json:"strength" validate:"required,gt=0,lte=1"`
	Steps     int     `json:"steps,omitempty" validate:"omitempty,min=1,max=150"`
}

type TextToVideoParams struct {
	Prompt          string `json:"prompt" validate:"required,min=1,max=4000"`
	DurationSeconds int    `json:"durationSeconds" validate:"required,min=1,max=60"`
	Fps             int    `json:"fps,omitempty" validate:"omitempty,min=1,max=60"`
}

type UpscaleParams struct {
	SourceKey string `json:"sourceKey" validate:"required"`
	Scale     int    `json:"scale" validate:"required,oneof=2 4"`
}

// JobCreate is the request body for submitting a generation job. Params is
// interpreted according to Type.
type JobCreate struct {
	Type           JobType         `json:"type"`
	Params         json.RawMessage `json:"params"`
	IdempotencyKey *string         `json:"idempotencyKey,omitempty"`
}

type Job struct {
	Id        uuid.UUID `json:"id"`
	Type      JobType   `json:"type"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WebhookEventType string

const (
	WebhookEventProgress  WebhookEventType = "progress"
	WebhookEventCompleted WebhookEventType = "completed"
	WebhookEventFailed    WebhookEventType = "failed"
)

// ResultDescriptor describes one artifact produced by the compute backend.
// Exactly one of Data and VolumePath carries the bytes location.
type ResultDescriptor struct {
	FileName   string `json:"fileName"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
	Data       []byte `json:"data,omitempty"`
	VolumePath string `json:"volumePath,omitempty"`
}

// WebhookEvent is the body posted by the compute backend to report job state.
type WebhookEvent struct {
	EventType         WebhookEventType   `json:"eventType"`
	Progress          *int               `json:"progress,omitempty"`
	ResultDescriptors []ResultDescriptor `json:"resultDescriptors,omitempty"`
	Message           *string            `json:"message,omitempty"`
}

type GeneratedAsset struct {
	Id        uuid.UUID `json:"id"`
	JobId     uuid.UUID `json:"jobId"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	Url       string    `json:"url,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type UploadSessionStatus string

const (
	UploadSessionStatusOpen      UploadSessionStatus = "open"
	UploadSessionStatusFinalized UploadSessionStatus = "finalized"
	UploadSessionStatusExpired   UploadSessionStatus = "expired"
)

type UploadSessionCreate struct {
	TargetKey string `json:"targetKey"`
	TotalSize int64  `json:"totalSize"`
	ChunkSize int64  `json:"chunkSize"`
}

type UploadSession struct {
	Id        uuid.UUID           `json:"id"`
	TargetKey string              `json:"targetKey"`
	TotalSize int64               `json:"totalSize"`
	ChunkSize int64               `json:"chunkSize"`
	Received  []int               `json:"received"`
	Status    UploadSessionStatus `json:"status"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

type UploadFinalizeResult struct {
	ObjectKey string `json:"objectKey"`
}

type SubscriptionToken struct {
	Token     string    `json:"token"`
	Channels  []string  `json:"channels"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Error struct {
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}
