package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "job")
}

func NewErrJobHandleNotFound(externalID string) *ErrResourceNotFound {
	return NewErrResourceNotFound(externalID, "job with external handle")
}

func NewErrAssetNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "asset")
}

func NewErrUploadSessionNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "upload session")
}

type ErrValidation struct {
	error
}

func NewErrValidation(message string) *ErrValidation {
	return &ErrValidation{fmt.Errorf("bad request: %s", message)}
}

type ErrAccessForbidden struct {
	error
}

func NewErrAccessForbidden(resourceType, id string) *ErrAccessForbidden {
	return &ErrAccessForbidden{fmt.Errorf("access to %s %s is forbidden", resourceType, id)}
}

type ErrInvalidToken struct {
	error
}

func NewErrInvalidToken(message string) *ErrInvalidToken {
	return &ErrInvalidToken{fmt.Errorf("invalid token: %s", message)}
}

type ErrSessionExpired struct {
	error
}

func NewErrSessionExpired(id uuid.UUID) *ErrSessionExpired {
	return &ErrSessionExpired{fmt.Errorf("upload session %s is expired or closed", id)}
}

type ErrChunkOutOfRange struct {
	error
}

func NewErrChunkOutOfRange(index, expected int) *ErrChunkOutOfRange {
	return &ErrChunkOutOfRange{fmt.Errorf("chunk index %d is outside the expected range [0, %d)", index, expected)}
}

type ErrMissingChunks struct {
	error
}

func NewErrMissingChunks(id uuid.UUID, missing []int) *ErrMissingChunks {
	return &ErrMissingChunks{fmt.Errorf("upload session %s is missing chunks %v", id, missing)}
}

type ErrStorage struct {
	error
}

func NewErrStorage(message string, err error) *ErrStorage {
	return &ErrStorage{fmt.Errorf("storage failure: %s: %w", message, err)}
}
