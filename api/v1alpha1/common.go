package v1alpha1

func StringToJobStatus(s string) JobStatus {
	switch s {
	case string(JobStatusPending):
		return JobStatusPending
	case string(JobStatusProcessing):
		return JobStatusProcessing
	case string(JobStatusCompleted):
		return JobStatusCompleted
	case string(JobStatusFailed):
		return JobStatusFailed
	default:
		return JobStatusPending
	}
}

func StringToJobType(s string) (JobType, bool) {
	switch s {
	case string(JobTypeTextToImage):
		return JobTypeTextToImage, true
	case string(JobTypeImageToImage):
		return JobTypeImageToImage, true
	case string(JobTypeTextToVideo):
		return JobTypeTextToVideo, true
	case string(JobTypeUpscale):
		return JobTypeUpscale, true
	default:
		return "", false
	}
}
