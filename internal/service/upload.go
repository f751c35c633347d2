package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
	"github.com/mediaforge/media-pipeline/pkg/metrics"
)

// OpenUploadSession creates an open chunked-upload session with a fixed
// expiry. Chunks are uploaded as independent requests and may arrive in any
// order; completeness is only checked at finalize time.
func (s *ServiceHandler) OpenUploadSession(ctx context.Context, user auth.User, form api.UploadSessionCreate) (*model.UploadSession, error) {
	if form.TargetKey == "" {
		return nil, NewErrValidation("target key is required")
	}
	if form.TotalSize <= 0 || form.TotalSize > s.cfg.Upload.MaxTotalSize {
		return nil, NewErrValidation(fmt.Sprintf("total size must be in (0, %d]", s.cfg.Upload.MaxTotalSize))
	}
	if form.ChunkSize <= 0 || form.ChunkSize > s.cfg.Upload.MaxChunkSize {
		return nil, NewErrValidation(fmt.Sprintf("chunk size must be in (0, %d]", s.cfg.Upload.MaxChunkSize))
	}

	session := model.UploadSession{
		ID:        uuid.New(),
		OrgID:     user.Organization,
		Username:  user.Username,
		TargetKey: form.TargetKey,
		TotalSize: form.TotalSize,
		ChunkSize: form.ChunkSize,
		Status:    model.UploadSessionStatusOpen,
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.Upload.SessionTTLMinutes) * time.Minute),
	}

	return s.store.UploadSession().Create(ctx, session)
}

func (s *ServiceHandler) GetUploadSession(ctx context.Context, user auth.User, id uuid.UUID) (*model.UploadSession, []model.UploadChunk, error) {
	session, err := s.store.UploadSession().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, NewErrUploadSessionNotFound(id)
		}
		return nil, nil, err
	}
	if session.OrgID != user.Organization {
		return nil, nil, NewErrAccessForbidden("upload session", id.String())
	}

	chunks, err := s.store.UploadSession().Chunks(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return session, chunks, nil
}

// WriteChunk stages the chunk bytes and records the index as received.
// Re-sending an index overwrites the staged bytes and upserts the index row,
// so retries are idempotent. Writes after expiry are rejected without
// mutating the received set.
func (s *ServiceHandler) WriteChunk(ctx context.Context, user auth.User, sessionID uuid.UUID, index int, data []byte) error {
	session, _, err := s.GetUploadSession(ctx, user, sessionID)
	if err != nil {
		return err
	}

	if session.Status != model.UploadSessionStatusOpen || !time.Now().Before(session.ExpiresAt) {
		return NewErrSessionExpired(sessionID)
	}

	expected := session.ExpectedChunks()
	if index < 0 || index >= expected {
		return NewErrChunkOutOfRange(index, expected)
	}

	if size := chunkSizeAt(session, index); int64(len(data)) != size {
		return NewErrValidation(fmt.Sprintf("chunk %d must be %d bytes, got %d", index, size, len(data)))
	}

	key := stagingKey(sessionID, index)
	if err := s.resolver.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); err != nil {
		return NewErrStorage(fmt.Sprintf("staging chunk %d", index), err)
	}

	if err := s.store.UploadSession().AddChunk(ctx, model.UploadChunk{
		SessionID:  sessionID,
		ChunkIndex: index,
		SizeBytes:  int64(len(data)),
	}); err != nil {
		return err
	}

	metrics.IncreaseUploadChunksMetric()
	return nil
}

// FinalizeUpload reassembles the staged chunks in index order, verifies the
// total byte length, writes the final object and closes the session. It fails
// with a missing-chunks conflict unless the received set covers the whole
// expected range.
func (s *ServiceHandler) FinalizeUpload(ctx context.Context, user auth.User, sessionID uuid.UUID) (string, error) {
	session, chunks, err := s.GetUploadSession(ctx, user, sessionID)
	if err != nil {
		return "", err
	}

	// a repeated finalize of an already finalized session is a no-op success
	if session.Status == model.UploadSessionStatusFinalized {
		return session.TargetKey, nil
	}
	if session.Status != model.UploadSessionStatusOpen || !time.Now().Before(session.ExpiresAt) {
		return "", NewErrSessionExpired(sessionID)
	}

	expected := session.ExpectedChunks()
	received := make(map[int]bool, len(chunks))
	var stagedSize int64
	for _, c := range chunks {
		received[c.ChunkIndex] = true
		stagedSize += c.SizeBytes
	}

	var missing []int
	for i := 0; i < expected; i++ {
		if !received[i] {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return "", NewErrMissingChunks(sessionID, missing)
	}

	if stagedSize != session.TotalSize {
		return "", NewErrValidation(fmt.Sprintf("staged bytes %d do not match declared total size %d", stagedSize, session.TotalSize))
	}

	readers := make([]io.Reader, 0, expected)
	closers := make([]io.Closer, 0, expected)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for i := 0; i < expected; i++ {
		reader, _, err := s.resolver.objects.Get(ctx, stagingKey(sessionID, i))
		if err != nil {
			return "", NewErrStorage(fmt.Sprintf("reading staged chunk %d", i), err)
		}
		readers = append(readers, reader)
		closers = append(closers, reader)
	}

	if err := s.resolver.objects.Put(ctx, session.TargetKey, io.MultiReader(readers...), session.TotalSize, "application/octet-stream"); err != nil {
		return "", NewErrStorage("writing final object", err)
	}

	won, err := s.store.UploadSession().Transition(ctx, sessionID, model.UploadSessionStatusOpen, model.UploadSessionStatusFinalized)
	if err != nil {
		return "", err
	}
	if !won {
		// lost against a concurrent finalize or the expiry sweep
		current, cerr := s.store.UploadSession().Get(ctx, sessionID)
		if cerr != nil {
			return "", cerr
		}
		if current.Status == model.UploadSessionStatusFinalized {
			return current.TargetKey, nil
		}
		return "", NewErrSessionExpired(sessionID)
	}

	s.cleanupStaging(ctx, session, expected)
	zap.S().Named("upload_service").Infow("upload finalized", "session_id", sessionID, "key", session.TargetKey)

	return session.TargetKey, nil
}

// SweepExpiredUploads expires every open session whose expiry has passed and
// removes its staged chunk data. Invoked by an external scheduler, never from
// request handling paths.
func (s *ServiceHandler) SweepExpiredUploads(ctx context.Context, now time.Time) (int, error) {
	sessions, err := s.store.UploadSession().ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, session := range sessions {
		won, err := s.store.UploadSession().Transition(ctx, session.ID, model.UploadSessionStatusOpen, model.UploadSessionStatusExpired)
		if err != nil {
			return swept, err
		}
		if !won {
			continue
		}

		s.cleanupStaging(ctx, &session, session.ExpectedChunks())
		swept++
	}

	if swept > 0 {
		metrics.AddUploadSessionsSweptMetric(swept)
		zap.S().Named("upload_service").Infow("expired upload sessions swept", "count", swept)
	}
	return swept, nil
}

// cleanupStaging drops the chunk rows and staged objects. Best-effort: the
// session is already closed, leftovers only cost storage.
func (s *ServiceHandler) cleanupStaging(ctx context.Context, session *model.UploadSession, expected int) {
	if err := s.store.UploadSession().DeleteChunks(ctx, session.ID); err != nil {
		zap.S().Named("upload_service").Warnw("failed to delete chunk records", "session_id", session.ID, "error", err)
	}
	for i := 0; i < expected; i++ {
		if err := s.resolver.objects.Remove(ctx, stagingKey(session.ID, i)); err != nil {
			zap.S().Named("upload_service").Warnw("failed to remove staged chunk", "session_id", session.ID, "index", i, "error", err)
		}
	}
}

func stagingKey(sessionID uuid.UUID, index int) string {
	return fmt.Sprintf("uploads/%s/%06d", sessionID, index)
}

func chunkSizeAt(session *model.UploadSession, index int) int64 {
	last := session.ExpectedChunks() - 1
	if index == last {
		return session.TotalSize - int64(last)*session.ChunkSize
	}
	return session.ChunkSize
}
