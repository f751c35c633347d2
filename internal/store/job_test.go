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

var _ = Describe("job store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
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

	AfterEach(func() {
		gormdb.Exec("DELETE FROM generated_assets;")
		gormdb.Exec("DELETE FROM jobs;")
	})

	newJob := func(status string) *model.Job {
		job, err := s.Job().Create(context.TODO(), model.Job{
			ID:       uuid.New(),
			OrgID:    "org",
			Username: "admin",
			Type:     "text-to-image",
			Params:   []byte(`{"prompt":"a cat"}`),
			Status:   status,
		})
		Expect(err).To(BeNil())
		return job
	}

	Context("create and get", func() {
		It("successfully creates a job", func() {
			job := newJob(model.JobStatusPending)

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusPending))
			Expect(got.Progress).To(Equal(0))
		})

		It("returns not found for an unknown id", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})

		It("finds a job by its external id", func() {
			job := newJob(model.JobStatusPending)
			Expect(s.Job().SetExternalID(context.TODO(), job.ID, "run-42")).To(BeNil())

			got, err := s.Job().GetByExternalID(context.TODO(), "run-42")
			Expect(err).To(BeNil())
			Expect(got.ID).To(Equal(job.ID))

			_, err = s.Job().GetByExternalID(context.TODO(), "run-unknown")
			Expect(err).To(Equal(store.ErrRecordNotFound))
		})

		It("rejects a duplicate idempotency key within the same org", func() {
			key := "retry-1"
			org := "org"

			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: org, Username: "admin", Type: "upscale",
				Status: model.JobStatusPending, IdempotencyKey: &key, IdempotencyOrg: &org,
			})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: org, Username: "admin", Type: "upscale",
				Status: model.JobStatusPending, IdempotencyKey: &key, IdempotencyOrg: &org,
			})
			Expect(err).To(Equal(store.ErrDuplicateKey))

			got, err := s.Job().GetByIdempotencyKey(context.TODO(), org, key)
			Expect(err).To(BeNil())
			Expect(got.Type).To(Equal("upscale"))
		})

		It("allows the same idempotency key in different orgs", func() {
			key := "retry-1"
			orgA, orgB := "org-a", "org-b"

			_, err := s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: orgA, Username: "admin", Type: "upscale",
				Status: model.JobStatusPending, IdempotencyKey: &key, IdempotencyOrg: &orgA,
			})
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: orgB, Username: "admin", Type: "upscale",
				Status: model.JobStatusPending, IdempotencyKey: &key, IdempotencyOrg: &orgB,
			})
			Expect(err).To(BeNil())
		})
	})

	Context("progress", func() {
		It("raises progress and moves the job to processing", func() {
			job := newJob(model.JobStatusPending)

			updated, err := s.Job().UpdateProgress(context.TODO(), job.ID, 40)
			Expect(err).To(BeNil())
			Expect(updated).To(BeTrue())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusProcessing))
			Expect(got.Progress).To(Equal(40))
		})

		It("never regresses progress on a stale delivery", func() {
			job := newJob(model.JobStatusPending)

			_, err := s.Job().UpdateProgress(context.TODO(), job.ID, 40)
			Expect(err).To(BeNil())

			_, err = s.Job().UpdateProgress(context.TODO(), job.ID, 10)
			Expect(err).To(BeNil())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Progress).To(Equal(40))
		})

		It("drops progress for a terminal job", func() {
			job := newJob(model.JobStatusCompleted)

			updated, err := s.Job().UpdateProgress(context.TODO(), job.ID, 50)
			Expect(err).To(BeNil())
			Expect(updated).To(BeFalse())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusCompleted))
		})
	})

	Context("transition", func() {
		It("completes a processing job and forces progress to 100", func() {
			job := newJob(model.JobStatusProcessing)

			won, err := s.Job().Transition(context.TODO(), job.ID,
				[]string{model.JobStatusPending, model.JobStatusProcessing},
				model.JobStatusCompleted, nil)
			Expect(err).To(BeNil())
			Expect(won).To(BeTrue())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusCompleted))
			Expect(got.Progress).To(Equal(100))
			Expect(got.IsTerminal()).To(BeTrue())
		})

		It("keeps terminal states sticky", func() {
			job := newJob(model.JobStatusProcessing)

			won, err := s.Job().Transition(context.TODO(), job.ID,
				[]string{model.JobStatusPending, model.JobStatusProcessing},
				model.JobStatusCompleted, nil)
			Expect(err).To(BeNil())
			Expect(won).To(BeTrue())

			msg := "backend error"
			won, err = s.Job().Transition(context.TODO(), job.ID,
				[]string{model.JobStatusPending, model.JobStatusProcessing},
				model.JobStatusFailed, &msg)
			Expect(err).To(BeNil())
			Expect(won).To(BeFalse())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusCompleted))
			Expect(got.Error).To(BeNil())
		})

		It("records the error message on failure", func() {
			job := newJob(model.JobStatusPending)

			msg := "out of vram"
			won, err := s.Job().Transition(context.TODO(), job.ID,
				[]string{model.JobStatusPending, model.JobStatusProcessing},
				model.JobStatusFailed, &msg)
			Expect(err).To(BeNil())
			Expect(won).To(BeTrue())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusFailed))
			Expect(*got.Error).To(Equal("out of vram"))
		})
	})
})
