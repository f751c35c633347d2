package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateJobParams decodes and validates the type-specific parameter shape
// for the given job type. The union is closed: unknown types are rejected.
// The returned bytes are the normalized parameter encoding stored on the job.
func validateJobParams(jobType api.JobType, raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, NewErrValidation("params are required")
	}

	var params any
	switch jobType {
	case api.JobTypeTextToImage:
		params = &api.TextToImageParams{}
	case api.JobTypeImageToImage:
		params = &api.ImageToImageParams{}
	case api.JobTypeTextToVideo:
		params = &api.TextToVideoParams{}
	case api.JobTypeUpscale:
		params = &api.UpscaleParams{}
	default:
		return nil, NewErrValidation(fmt.Sprintf("unknown job type %q", jobType))
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(params); err != nil {
		return nil, NewErrValidation(fmt.Sprintf("malformed params for job type %q: %v", jobType, err))
	}

	if err := validate.Struct(params); err != nil {
		return nil, NewErrValidation(fmt.Sprintf("invalid params for job type %q: %v", jobType, err))
	}

	normalized, err := json.Marshal(params)
	if err != nil {
		return nil, NewErrValidation(fmt.Sprintf("failed to encode params: %v", err))
	}
	return normalized, nil
}
