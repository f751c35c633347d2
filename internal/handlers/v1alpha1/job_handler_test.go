package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/mediaforge/media-pipeline/api/v1alpha1"
	"github.com/mediaforge/media-pipeline/internal/config"
	"github.com/mediaforge/media-pipeline/internal/storage"
	"github.com/mediaforge/media-pipeline/internal/store"
	"github.com/mediaforge/media-pipeline/internal/store/model"
)

var _ = Describe("job handler", Ordered, func() {
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

	createBody := func() *bytes.Buffer {
		body, _ := json.Marshal(map[string]any{
			"type": "text-to-image",
			"params": map[string]any{
				"prompt": "a fox",
				"width":  512,
				"height": 512,
			},
		})
		return bytes.NewBuffer(body)
	}

	Context("create", func() {
		It("returns 201 with the pending job", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1alpha1/jobs", createBody()))

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var job api.Job
			Expect(json.NewDecoder(rec.Body).Decode(&job)).To(BeNil())
			Expect(job.Status).To(Equal(api.JobStatusPending))
			Expect(job.Type).To(Equal(api.JobTypeTextToImage))
		})

		It("returns 400 for invalid params", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			body, _ := json.Marshal(map[string]any{
				"type":   "text-to-image",
				"params": map[string]any{"prompt": ""},
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1alpha1/jobs", bytes.NewBuffer(body)))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			var apiErr api.Error
			Expect(json.NewDecoder(rec.Body).Decode(&apiErr)).To(BeNil())
			Expect(apiErr.Message).To(ContainSubstring("bad request"))
		})

		It("returns 400 for a malformed body", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1alpha1/jobs", bytes.NewBufferString("{not json")))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("get", func() {
		It("returns 404 for an unknown job", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/jobs/"+uuid.NewString(), nil))

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed job id", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/jobs/not-a-uuid", nil))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 403 for another user's job", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			job, err := s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: "other-org", Username: "mallory",
				Type: "text-to-image", Status: model.JobStatusPending,
			})
			Expect(err).To(BeNil())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/jobs/"+job.ID.String(), nil))

			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("returns the job with its current progress", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1alpha1/jobs", createBody()))
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var created api.Job
			Expect(json.NewDecoder(rec.Body).Decode(&created)).To(BeNil())

			_, err := s.Job().UpdateProgress(context.TODO(), created.Id, 40)
			Expect(err).To(BeNil())

			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/jobs/"+created.Id.String(), nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got api.Job
			Expect(json.NewDecoder(rec.Body).Decode(&got)).To(BeNil())
			Expect(got.Status).To(Equal(api.JobStatusProcessing))
			Expect(got.Progress).To(Equal(40))
		})
	})

	Context("assets", func() {
		It("lists assets with resolved urls", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			job, err := s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: "internal", Username: "admin",
				Type: "text-to-image", Status: model.JobStatusCompleted,
			})
			Expect(err).To(BeNil())

			key := "assets/" + job.ID.String() + "/out.png"
			_, err = s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: job.ID, OrgID: "internal", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 3,
				ObjectKey: &key,
			})
			Expect(err).To(BeNil())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/jobs/"+job.ID.String()+"/assets", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var assets []api.GeneratedAsset
			Expect(json.NewDecoder(rec.Body).Decode(&assets)).To(BeNil())
			Expect(assets).To(HaveLen(1))
			Expect(assets[0].Url).To(ContainSubstring("/api/v1alpha1/assets/"))
		})

		It("streams inline asset content", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			job, err := s.Job().Create(context.TODO(), model.Job{
				ID: uuid.New(), OrgID: "internal", Username: "admin",
				Type: "text-to-image", Status: model.JobStatusCompleted,
			})
			Expect(err).To(BeNil())

			asset, err := s.Asset().Create(context.TODO(), model.GeneratedAsset{
				ID: uuid.New(), JobID: job.ID, OrgID: "internal", Username: "admin",
				FileName: "out.png", MimeType: "image/png", SizeBytes: 4,
				InlineData: []byte("PNG!"),
			})
			Expect(err).To(BeNil())

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/assets/"+asset.ID.String()+"/content", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("PNG!")))
		})
	})

	Context("health", func() {
		It("returns 200", func() {
			router, _ := newTestRouter(s, storage.NewMemoryStore(), &fakeBackend{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
