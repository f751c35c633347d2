package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"

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

var _ = Describe("job service", Ordered, func() {
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
		gormdb.Exec("DELETE FROM generated_assets;")
		gormdb.Exec("DELETE FROM jobs;")
	})

	textToImage := func() api.JobCreate {
		params, _ := json.Marshal(api.TextToImageParams{
			Prompt: "a lighthouse at dusk",
			Width:  1024,
			Height: 1024,
		})
		return api.JobCreate{Type: api.JobTypeTextToImage, Params: params}
	}

	Context("create", func() {
		It("creates and dispatches a job", func() {
			backend := &fakeBackend{}
			srv, capability := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), backend)

			job, err := srv.CreateJob(context.TODO(), user, textToImage())
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
			Expect(job.ExternalID).ToNot(BeNil())

			Expect(backend.dispatched).To(HaveLen(1))
			req := backend.dispatched[0]
			Expect(req.JobID).To(Equal(job.ID.String()))
			Expect(req.WebhookURL).To(HaveSuffix("/api/v1alpha1/jobs"))
			Expect(capability.VerifyJobToken(req.WebhookToken, job.ID)).To(BeNil())
		})

		It("rejects an unknown job type", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			_, err := srv.CreateJob(context.TODO(), user, api.JobCreate{
				Type: "style-transfer", Params: []byte(`{}`),
			})

			var verr *service.ErrValidation
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("rejects params with unknown fields", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			_, err := srv.CreateJob(context.TODO(), user, api.JobCreate{
				Type:   api.JobTypeTextToImage,
				Params: []byte(`{"prompt":"x","width":512,"height":512,"model":"sdxl"}`),
			})

			var verr *service.ErrValidation
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("rejects params violating the field constraints", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			_, err := srv.CreateJob(context.TODO(), user, api.JobCreate{
				Type:   api.JobTypeTextToImage,
				Params: []byte(`{"prompt":"x","width":16,"height":512}`),
			})

			var verr *service.ErrValidation
			Expect(errors.As(err, &verr)).To(BeTrue())
		})

		It("fails the job when dispatch fails", func() {
			backend := &fakeBackend{err: errors.New("backend unavailable")}
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), backend)

			job, err := srv.CreateJob(context.TODO(), user, textToImage())
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(*job.Error).To(ContainSubstring("backend unavailable"))
		})

		It("returns the prior job for a repeated idempotency key", func() {
			backend := &fakeBackend{}
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), backend)

			key := "submit-1"
			form := textToImage()
			form.IdempotencyKey = &key

			first, err := srv.CreateJob(context.TODO(), user, form)
			Expect(err).To(BeNil())

			second, err := srv.CreateJob(context.TODO(), user, form)
			Expect(err).To(BeNil())
			Expect(second.ID).To(Equal(first.ID))
			Expect(backend.dispatched).To(HaveLen(1))
		})
	})

	Context("get", func() {
		It("denies access to another user's job", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			job, err := srv.CreateJob(context.TODO(), user, textToImage())
			Expect(err).To(BeNil())

			stranger := auth.User{Username: "mallory", Organization: "other-org"}
			_, err = srv.GetJob(context.TODO(), stranger, job.ID)

			var ferr *service.ErrAccessForbidden
			Expect(errors.As(err, &ferr)).To(BeTrue())
		})

		It("returns not found for an unknown job", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			_, err := srv.GetJob(context.TODO(), user, uuid.New())

			var nerr *service.ErrResourceNotFound
			Expect(errors.As(err, &nerr)).To(BeTrue())
		})
	})

	Context("asset content", func() {
		It("streams inline asset bytes", func() {
			srv, _ := newTestHandler(s, storage.NewMemoryStore(), newTestWriter(), &fakeBackend{})

			job, err := srv.CreateJob(context.TODO(), user, textToImage())
			Expect(err).To(BeNil())

			asset, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: job.ID, OrgID: user.Organization, Username: user.Username,
				FileName: "out.png", MimeType: "image/png", SizeBytes: 4,
				InlineData: []byte("PNG!"),
			})
			Expect(err).To(BeNil())

			reader, size, mimeType, err := srv.GetAssetContent(context.TODO(), user, asset.ID)
			Expect(err).To(BeNil())
			defer reader.Close()

			Expect(size).To(Equal(int64(4)))
			Expect(mimeType).To(Equal("image/png"))

			data, err := io.ReadAll(reader)
			Expect(err).To(BeNil())
			Expect(data).To(Equal([]byte("PNG!")))
		})
	})
})
