package events

import "github.com/google/uuid"

const (
	JobProgressKind  string = "mediaforge.pipeline.events.job.progress"
	JobCompletedKind string = "mediaforge.pipeline.events.job.completed"
	JobFailedKind    string = "mediaforge.pipeline.events.job.failed"
)

// JobEvent is the payload published on realtime channels when a job changes
// state. Delivery is best-effort; the job record remains the source of truth.
type JobEvent struct {
	JobID    uuid.UUID `json:"job_id"`
	JobType  string    `json:"job_type"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
	AssetIDs []string  `json:"asset_ids,omitempty"`
}
