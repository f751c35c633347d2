package mappers

import (
	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/store/model"
)

func JobToApi(job *model.Job) api.Job {
	return api.Job{
		Id:        job.ID,
		Type:      api.JobType(job.Type),
		Status:    api.StringToJobStatus(job.Status),
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func AssetToApi(asset *model.GeneratedAsset, url string) api.GeneratedAsset {
	return api.GeneratedAsset{
		Id:        asset.ID,
		JobId:     asset.JobID,
		FileName:  asset.FileName,
		MimeType:  asset.MimeType,
		SizeBytes: asset.SizeBytes,
		Url:       url,
		Error:     asset.StorageError,
		CreatedAt: asset.CreatedAt,
	}
}

func AssetListToApi(assets model.GeneratedAssetList, resolveURL func(*model.GeneratedAsset) string) []api.GeneratedAsset {
	out := make([]api.GeneratedAsset, 0, len(assets))
	for i := range assets {
		out = append(out, AssetToApi(&assets[i], resolveURL(&assets[i])))
	}
	return out
}

func UploadSessionToApi(session *model.UploadSession, chunks []model.UploadChunk) api.UploadSession {
	received := make([]int, 0, len(chunks))
	for _, c := range chunks {
		received = append(received, c.ChunkIndex)
	}

	return api.UploadSession{
		Id:        session.ID,
		TargetKey: session.TargetKey,
		TotalSize: session.TotalSize,
		ChunkSize: session.ChunkSize,
		Received:  received,
		Status:    api.UploadSessionStatus(session.Status),
		ExpiresAt: session.ExpiresAt,
	}
}
