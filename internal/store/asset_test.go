package store_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
)

var _ = Describe("asset store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		jobID  uuid.UUID
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		job, err := s.Job().Create(context.TODO(), model.Job{
			ID: uuid.New(), OrgID: "org", Username: "admin",
			Type: "text-to-image", Status: model.JobStatusCompleted,
		})
		Expect(err).To(BeNil())
		jobID = job.ID
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM generated_assets;")
		gormdb.Exec("DELETE FROM jobs;")
	})

	Context("create", func() {
		It("stores an inline asset", func() {
			asset, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: jobID, OrgID: "org", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 3,
				InlineData: []byte{1, 2, 3},
			})
			Expect(err).To(BeNil())
			Expect(asset.InlineData).To(HaveLen(3))
		})

		It("rejects an asset with no locator", func() {
			_, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: jobID, OrgID: "org", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 3,
			})
			Expect(err).To(Equal(model.ErrAmbiguousLocator))
		})

		It("rejects an asset with two locators", func() {
			key := "assets/out.png"
			_, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: jobID, OrgID: "org", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 3,
				InlineData: []byte{1, 2, 3}, ObjectKey: &key,
			})
			Expect(err).To(Equal(model.ErrAmbiguousLocator))
		})

		It("accepts a locator-less asset carrying a storage error", func() {
			msg := "bucket unavailable"
			asset, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: jobID, OrgID: "org", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 3,
				StorageError: &msg,
			})
			Expect(err).To(BeNil())
			Expect(asset.StorageError).ToNot(BeNil())
		})
	})

	Context("list", func() {
		It("lists the assets of a job", func() {
			for _, name := range []string{"a.png", "b.png"} {
				_, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
					ID: uuid.New(), JobID: jobID, OrgID: "org", Username: "admin",
					FileName: name, MimeType: "image/png", SizeBytes: 1,
					InlineData: []byte{1},
				})
				Expect(err).To(BeNil())
			}

			assets, err := s.Asset().ListByJob(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(assets).To(HaveLen(2))

			assets, err = s.Asset().ListByJob(context.TODO(), uuid.New())
			Expect(err).To(BeNil())
			Expect(assets).To(HaveLen(0))
		})
	})
})
