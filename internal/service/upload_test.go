package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/auth"
	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/service"
	"github.com/mediaforge/media-pipeline/internal/storage"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
)

var _ = Describe("upload service", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		user   auth.User
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())

		user = auth.User{Username: "admin", Organization: "org"}
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM upload_chunks;")
		gormdb.Exec("DELETE FROM upload_sessions;")
	})

	openSession := func(srv *service.ServiceHandler) *model.UploadSession {
		session, err := srv.OpenUploadSession(context.TODO(), user, api.UploadSessionCreate{
			TargetKey: "inputs/source.png",
			TotalSize: 300,
			ChunkSize: 100,
		})
		Expect(err).To(BeNil())
		return session
	}

	chunk := func(b byte) []byte {
		return bytes.Repeat([]byte{b}, 100)
	}

	Context("open", func() {
		It("opens a session with an expiry in the future", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			session := openSession(srv)
			Expect(session.Status).To(Equal(model.UploadSessionStatusOpen))
			Expect(session.ExpectedChunks()).To(Equal(3))
			Expect(session.ExpiresAt).To(BeTemporally(">", time.Now()))
		})

		It("rejects invalid size declarations", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			var verr *service.ErrValidation

			_, err := srv.OpenUploadSession(context.TODO(), user, api.UploadSessionCreate{
				TargetKey: "k", TotalSize: 0, ChunkSize: 100,
			})
			Expect(errors.As(err, &verr)).To(BeTrue())

			_, err = srv.OpenUploadSession(context.TODO(), user, api.UploadSessionCreate{
				TargetKey: "k", TotalSize: 300, ChunkSize: -1,
			})
			Expect(errors.As(err, &verr)).To(BeTrue())

			_, err = srv.OpenUploadSession(context.TODO(), user, api.UploadSessionCreate{
				TotalSize: 300, ChunkSize: 100,
			})
			Expect(errors.As(err, &verr)).To(BeTrue())
		})
	})

	Context("chunks", func() {
		It("rejects an out-of-range chunk index", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			err := srv.WriteChunk(context.TODO(), user, session.ID, 3, chunk('x'))

			var rerr *service.ErrChunkOutOfRange
			Expect(errors.As(err, &rerr)).To(BeTrue())
		})

		It("rejects a chunk of the wrong size", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			err := srv.WriteChunk(context.TODO(), user, session.ID, 0, []byte("short"))

			var verr *service.ErrValidation
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("denies chunk writes from another organization", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			stranger := auth.User{Username: "mallory", Organization: "other-org"}
			err := srv.WriteChunk(context.TODO(), stranger, session.ID, 0, chunk('x'))

			var ferr *service.ErrAccessForbidden
			Expect(errors.As(err, &ferr)).To(BeTrue())
		})

		It("accepts re-sent chunks without duplicating them", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 1, chunk('a'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 1, chunk('b'))).To(BeNil())

			_, chunks, err := srv.GetUploadSession(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())
			Expect(chunks).To(HaveLen(1))
		})
	})

	Context("finalize", func() {
		It("reports the missing chunk indices", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 0, chunk('a'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 2, chunk('c'))).To(BeNil())

			_, err := srv.FinalizeUpload(context.TODO(), user, session.ID)

			var merr *service.ErrMissingChunks
			Expect(errors.As(err, &merr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("[1]"))
		})

		It("reassembles the chunks in index order", func() {
			objects := storage.NewMemoryStore()
			srv, _ := newTestHandler(s, objects, newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			// out of order on purpose
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 2, chunk('c'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 0, chunk('a'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 1, chunk('b'))).To(BeNil())

			key, err := srv.FinalizeUpload(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())
			Expect(key).To(Equal("inputs/source.png"))

			reader, size, err := objects.Get(context.TODO(), key)
			Expect(err).To(BeNil())
			defer reader.Close()

			Expect(size).To(Equal(int64(300)))
			data, err := io.ReadAll(reader)
			Expect(err).To(BeNil())

			expected := append(append(chunk('a'), chunk('b')...), chunk('c')...)
			Expect(data).To(Equal(expected))

			got, _, err := srv.GetUploadSession(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.UploadSessionStatusFinalized))
		})

		It("treats a repeated finalize as a no-op", func() {
			objects := storage.NewMemoryStore()
			srv, _ := newTestHandler(s, objects, newTestWriter(), &fakeBackend{})
			session := openSession(srv)

			for i, b := range []byte{'a', 'b', 'c'} {
				Expect(srv.WriteChunk(context.TODO(), user, session.ID, i, chunk(b))).To(BeNil())
			}

			key, err := srv.FinalizeUpload(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())

			again, err := srv.FinalizeUpload(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())
			Expect(again).To(Equal(key))
		})

		It("handles a total size that is not a chunk multiple", func() {
			objects := storage.NewMemoryStore()
			srv, _ := newTestHandler(s, objects, newTestWriter(), &fakeBackend{})

			session, err := srv.OpenUploadSession(context.TODO(), user, api.UploadSessionCreate{
				TargetKey: "inputs/short.bin", TotalSize: 250, ChunkSize: 100,
			})
			Expect(err).To(BeNil())
			Expect(session.ExpectedChunks()).To(Equal(3))

			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 0, chunk('a'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 1, chunk('b'))).To(BeNil())
			Expect(srv.WriteChunk(context.TODO(), user, session.ID, 2, bytes.Repeat([]byte{'c'}, 50))).To(BeNil())

			key, err := srv.FinalizeUpload(context.TODO(), user, session.ID)
			Expect(err).To(BeNil())

			_, size, err := objects.Get(context.TODO(), key)
			Expect(err).To(BeNil())
			Expect(size).To(Equal(int64(250)))
		})
	})

	Context("expiry", func() {
		expiredSession := func() *model.UploadSession {
			session, err := s.UploadSession().Create(context.TODO(), model.UploadSession{
				ID: uuid.New(), OrgID: user.Organization, Username: user.Username,
				TargetKey: "inputs/stale.bin", TotalSize: 300, ChunkSize: 100,
				Status:    model.UploadSessionStatusOpen,
				ExpiresAt: time.Now().Add(-time.Minute),
			})
			Expect(err).To(BeNil())
			return session
		}

		It("rejects chunk writes after expiry", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := expiredSession()

			err := srv.WriteChunk(context.TODO(), user, session.ID, 0, chunk('a'))

			var eerr *service.ErrSessionExpired
			Expect(errors.As(err, &eerr)).To(BeTrue())
		})

		It("rejects finalize after expiry", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})
			session := expiredSession()

			_, err := srv.FinalizeUpload(context.TODO(), user, session.ID)

			var eerr *service.ErrSessionExpired
			Expect(errors.As(err, &eerr)).To(BeTrue())
		})

		It("sweeps expired sessions and drops their chunks", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			stale := expiredSession()
			Expect(s.UploadSession().AddChunk(context.TODO(), model.UploadChunk{
				SessionID: stale.ID, ChunkIndex: 0, SizeBytes: 100,
			})).To(BeNil())

			live := openSession(srv)

			swept, err := srv.SweepExpiredUploads(context.TODO(), time.Now())
			Expect(err).To(BeNil())
			Expect(swept).To(Equal(1))

			got, err := s.UploadSession().Get(context.TODO(), stale.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.UploadSessionStatusExpired))

			chunks, err := s.UploadSession().Chunks(context.TODO(), stale.ID)
			Expect(err).To(BeNil())
			Expect(chunks).To(HaveLen(0))

			untouched, err := s.UploadSession().Get(context.TODO(), live.ID)
			Expect(err).To(BeNil())
			Expect(untouched.Status).To(Equal(model.UploadSessionStatusOpen))

			// sweeping again finds nothing
			swept, err = srv.SweepExpiredUploads(context.TODO(), time.Now())
			Expect(err).To(BeNil())
			Expect(swept).To(Equal(0))
		})
	})
})
