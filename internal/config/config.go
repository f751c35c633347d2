package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Storage  *storageConfig
	Events   *eventsConfig
	Upload   *uploadConfig
	Auth     Auth
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"mediaforge"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address        string `envconfig:"MEDIA_PIPELINE_ADDRESS" default:":3443"`
	MetricsAddress string `envconfig:"MEDIA_PIPELINE_METRICS_ADDRESS" default:":8080"`
	BaseUrl        string `envconfig:"MEDIA_PIPELINE_BASE_URL" default:"https://localhost:3443"`
	LogLevel       string `envconfig:"MEDIA_PIPELINE_LOG_LEVEL" default:"info"`

	ComputeBackendUrl   string `envconfig:"MEDIA_PIPELINE_COMPUTE_BACKEND_URL" default:"http://localhost:8188"`
	ComputeBackendToken string `envconfig:"MEDIA_PIPELINE_COMPUTE_BACKEND_TOKEN" default:""`
}

type storageConfig struct {
	Endpoint        string `envconfig:"MEDIA_PIPELINE_S3_ENDPOINT" default:"localhost:9000"`
	Bucket          string `envconfig:"MEDIA_PIPELINE_S3_BUCKET" default:"mediaforge"`
	AccessKey       string `envconfig:"MEDIA_PIPELINE_S3_ACCESS_KEY" default:""`
	SecretKey       string `envconfig:"MEDIA_PIPELINE_S3_SECRET_KEY" default:""`
	UseSSL          bool   `envconfig:"MEDIA_PIPELINE_S3_USE_SSL" default:"false"`
	InlineThreshold int64  `envconfig:"STORAGE_INLINE_THRESHOLD" default:"65536"`
	VolumeBasePath  string `envconfig:"MEDIA_PIPELINE_VOLUME_BASE_PATH" default:"/mnt/workspace"`
}

type eventsConfig struct {
	KafkaBrokers  []string `envconfig:"MEDIA_PIPELINE_KAFKA_BROKERS" default:""`
	KafkaTopic    string   `envconfig:"MEDIA_PIPELINE_KAFKA_TOPIC" default:""`
	KafkaClientID string   `envconfig:"MEDIA_PIPELINE_KAFKA_CLIENT_ID" default:"media-pipeline"`
}

type uploadConfig struct {
	SessionTTLMinutes int   `envconfig:"MEDIA_PIPELINE_UPLOAD_SESSION_TTL_MINUTES" default:"60"`
	MaxChunkSize      int64 `envconfig:"MEDIA_PIPELINE_UPLOAD_MAX_CHUNK_SIZE" default:"16777216"`
	MaxTotalSize      int64 `envconfig:"MEDIA_PIPELINE_UPLOAD_MAX_TOTAL_SIZE" default:"5368709120"`
}

type Auth struct {
	AuthenticationType string `envconfig:"MEDIA_PIPELINE_AUTH" default:""`
	JwkCertURL         string `envconfig:"MEDIA_PIPELINE_JWK_URL" default:""`
	SigningSecret      string `envconfig:"MEDIA_PIPELINE_SIGNING_SECRET" default:"dev-only-secret"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration backed by an in-memory sqlite database.
// Used by test suites. Each call yields its own database; the shared cache
// keeps every pooled connection on the same one.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		},
		Service: &svcConfig{
			Address:  ":3443",
			BaseUrl:  "https://localhost:3443",
			LogLevel: "info",
		},
		Storage: &storageConfig{
			Bucket:          "mediaforge",
			InlineThreshold: 65536,
			VolumeBasePath:  "/mnt/workspace",
		},
		Events: &eventsConfig{},
		Upload: &uploadConfig{
			SessionTTLMinutes: 60,
			MaxChunkSize:      16 << 20,
			MaxTotalSize:      5 << 30,
		},
		Auth: Auth{SigningSecret: "test-secret"},
	}
}
