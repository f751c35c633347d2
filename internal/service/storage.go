package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
	"github.com/mediaforge/media-pipeline/internal/storage"
)

// StorageResolver decides where generated bytes live and records exactly one
// canonical locator per asset. Small payloads stay inline in the record, large
// ones go to the object store, and results already sitting on the compute
// volume are referenced in place without copying.
type StorageResolver struct {
	store           store.Store
	objects         storage.ObjectStore
	inlineThreshold int64
	baseURL         string
}

func NewStorageResolver(store store.Store, objects storage.ObjectStore, inlineThreshold int64, baseURL string) *StorageResolver {
	return &StorageResolver{
		store:           store,
		objects:         objects,
		inlineThreshold: inlineThreshold,
		baseURL:         strings.TrimRight(baseURL, "/"),
	}
}

// validateDescriptor rejects descriptors that carry no byte source or an
// ambiguous one. Called before any job state is touched.
func validateDescriptor(d api.ResultDescriptor) error {
	if d.FileName == "" {
		return NewErrValidation("result descriptor is missing a file name")
	}
	if len(d.Data) > 0 && d.VolumePath != "" {
		return NewErrValidation("result descriptor carries both inline data and a volume path")
	}
	if len(d.Data) == 0 && d.VolumePath == "" {
		return NewErrValidation("result descriptor carries no data and no volume path")
	}
	return nil
}

// Persist stores the artifact described by d and creates its asset record.
// The locator decision happens entirely in memory and the record is written
// with a single insert, so a state where both the inline payload and the
// object key are set is never observable.
//
// A failed object-store write still produces an asset row, marked with the
// storage error; the job's completion does not depend on it. The error is
// returned so the caller can log and count it.
func (r *StorageResolver) Persist(ctx context.Context, job *model.Job, d api.ResultDescriptor) (*model.GeneratedAsset, error) {
	if err := validateDescriptor(d); err != nil {
		return nil, err
	}

	asset := model.GeneratedAsset{
		ID:        uuid.New(),
		JobID:     job.ID,
		OrgID:     job.OrgID,
		Username:  job.Username,
		FileName:  path.Base(d.FileName),
		MimeType:  d.MimeType,
		SizeBytes: d.SizeBytes,
	}

	var storageErr error
	switch {
	case d.VolumePath != "":
		volumePath := d.VolumePath
		asset.VolumePath = &volumePath

	case int64(len(d.Data)) < r.inlineThreshold:
		asset.InlineData = d.Data
		asset.SizeBytes = int64(len(d.Data))

	default:
		key := objectKeyFor(job.ID, asset.FileName)
		if err := r.objects.Put(ctx, key, bytes.NewReader(d.Data), int64(len(d.Data)), d.MimeType); err != nil {
			storageErr = NewErrStorage(fmt.Sprintf("writing asset %s", key), err)
			msg := storageErr.Error()
			asset.StorageError = &msg
			zap.S().Named("storage_resolver").Errorw("failed to write asset to object store",
				"job_id", job.ID, "key", key, "error", err)
			break
		}
		asset.ObjectKey = &key
		asset.SizeBytes = int64(len(d.Data))
	}

	created, err := r.store.Asset().Create(ctx, asset)
	if err != nil {
		return nil, err
	}
	if storageErr != nil {
		return created, storageErr
	}
	return created, nil
}

// ResolveURL builds the canonical retrieval URL for an asset. The URL is
// deterministic from the locator variant.
func (r *StorageResolver) ResolveURL(asset *model.GeneratedAsset) string {
	switch {
	case asset.ObjectKey != nil:
		return fmt.Sprintf("%s/api/v1alpha1/assets/%s/content", r.baseURL, asset.ID)
	case asset.VolumePath != nil:
		return fmt.Sprintf("%s/api/v1alpha1/workspace/%s", r.baseURL, strings.TrimLeft(*asset.VolumePath, "/"))
	case len(asset.InlineData) > 0:
		return fmt.Sprintf("data:%s;base64,%s", asset.MimeType, base64.StdEncoding.EncodeToString(asset.InlineData))
	default:
		return ""
	}
}

func objectKeyFor(jobID uuid.UUID, fileName string) string {
	return fmt.Sprintf("assets/%s/%s", jobID, fileName)
}
