// Package appconfig loads app settings from env and .env-file via wbf/config
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wb-go/wbf/config"
)

type Settings struct {
	AppPort  string
	GinMode  string
	LogLevel string

	Storage StorageSettings
	Vendors VendorSettings

	PostgresDSN    string
	MigrationsPath string

	KafkaBroker  string
	KafkaTopic   string
	KafkaGroupID string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DescCacheTTL  time.Duration
}

type StorageSettings struct {
	Type      string
	UploadDir string
	ResultDir string
	URLTTL    time.Duration

	DriveFolderID     string
	DriveClientSecret string
	DriveTokenFile    string
	DrivePoolSize     int

	GCSBucket          string
	GCSCredentialsFile string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	MinioEndpoint string
	MinioUser     string
	MinioPass     string
	MinioBucket   string
	MinioSecure   bool
}

type VendorSettings struct {
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiKey       string
	GeminiImgModel  string
	GeminiDescModel string

	PicsartKey     string
	PicsartURL     string
	UpscaleTimeout time.Duration

	PhotoRoomKey string
	PhotoRoomURL string

	Concurrency int
	HTTPRetries int
}

var defaults = map[string]any{
	"APP_PORT":              "8000",
	"GIN_MODE":              "release",
	"LOG_LEVEL":             "info",
	"STORAGE_TYPE":          "local",
	"UPLOAD_DIR":            "./uploads",
	"RESULT_DIR":            "./results",
	"SIGNED_URL_TTL":        time.Hour,
	"DRIVE_POOL_SIZE":       4,
	"MINIO_BUCKET":          "default",
	"OPENAI_MODEL":          "gpt-image-1",
	"GEMINI_IMG_MODEL":      "gemini-2.5-flash-image-preview",
	"GEMINI_DESC_MODEL":     "gemini-2.5-flash",
	"PICSART_UPSCALE_URL":   "https://api.picsart.io/tools/1.0/upscale",
	"UPSCALE_TIMEOUT":       90 * time.Second,
	"PHOTOROOM_URL":         "https://sdk.photoroom.com/v1/segment",
	"VENDOR_CONCURRENCY":    8,
	"VENDOR_HTTP_RETRIES":   0,
	"MIGRATIONS_PATH":       "./migrations",
	"KAFKA_TOPIC":           "image-operations",
	"KAFKA_GROUPID":         "operations-ledger",
	"DESCRIPTION_CACHE_TTL": 24 * time.Hour,
}

// New - конфиг с дефолтами, энвами и опциональным .env-файлом
func New(envFiles ...string) (*config.Config, error) {
	cfg := config.New()
	for k, v := range defaults {
		cfg.SetDefault(k, v)
	}
	cfg.EnableEnv("")

	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := cfg.LoadEnvFiles(f); err != nil {
			return nil, fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}
	return cfg, nil
}

func Load(cfg *config.Config) Settings {
	// старое имя ключа из первой версии сервиса
	photoRoomKey := cfg.GetString("PHOTOROOM_API_KEY")
	if photoRoomKey == "" {
		photoRoomKey = cfg.GetString("PHOTOTOOM_API_KEY")
	}

	return Settings{
		AppPort:  cfg.GetString("APP_PORT"),
		GinMode:  cfg.GetString("GIN_MODE"),
		LogLevel: cfg.GetString("LOG_LEVEL"),
		Storage: StorageSettings{
			Type:               cfg.GetString("STORAGE_TYPE"),
			UploadDir:          cfg.GetString("UPLOAD_DIR"),
			ResultDir:          cfg.GetString("RESULT_DIR"),
			URLTTL:             cfg.GetDuration("SIGNED_URL_TTL"),
			DriveFolderID:      cfg.GetString("GOOGLE_DRIVE_APP_FOLDER_ID"),
			DriveClientSecret:  cfg.GetString("GOOGLE_CLIENT_SECRET_FILE"),
			DriveTokenFile:     cfg.GetString("GOOGLE_TOKEN_FILE"),
			DrivePoolSize:      cfg.GetInt("DRIVE_POOL_SIZE"),
			GCSBucket:          cfg.GetString("GCS_BUCKET"),
			GCSCredentialsFile: cfg.GetString("GCS_CREDENTIALS_FILE"),
			S3Bucket:           cfg.GetString("S3_BUCKET"),
			S3Region:           cfg.GetString("S3_REGION"),
			S3Endpoint:         cfg.GetString("S3_ENDPOINT"),
			S3AccessKeyID:      cfg.GetString("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey:  cfg.GetString("S3_SECRET_ACCESS_KEY"),
			MinioEndpoint:      cfg.GetString("MINIO_ENDPOINT"),
			MinioUser:          cfg.GetString("MINIO_USER"),
			MinioPass:          cfg.GetString("MINIO_PASS"),
			MinioBucket:        cfg.GetString("MINIO_BUCKET"),
			MinioSecure:        cfg.GetBool("MINIO_SECURE"),
		},
		Vendors: VendorSettings{
			OpenAIKey:       cfg.GetString("OPENAI_API_KEY"),
			OpenAIModel:     cfg.GetString("OPENAI_MODEL"),
			OpenAIBaseURL:   cfg.GetString("OPENAI_BASE_URL"),
			GeminiKey:       cfg.GetString("GEMINI_API_KEY"),
			GeminiImgModel:  cfg.GetString("GEMINI_IMG_MODEL"),
			GeminiDescModel: cfg.GetString("GEMINI_DESC_MODEL"),
			PicsartKey:      cfg.GetString("PICSART_API_KEY"),
			PicsartURL:      cfg.GetString("PICSART_UPSCALE_URL"),
			UpscaleTimeout:  cfg.GetDuration("UPSCALE_TIMEOUT"),
			PhotoRoomKey:    photoRoomKey,
			PhotoRoomURL:    cfg.GetString("PHOTOROOM_URL"),
			Concurrency:     cfg.GetInt("VENDOR_CONCURRENCY"),
			HTTPRetries:     cfg.GetInt("VENDOR_HTTP_RETRIES"),
		},
		PostgresDSN:    cfg.GetString("POSTGRES_DSN"),
		MigrationsPath: cfg.GetString("MIGRATIONS_PATH"),
		KafkaBroker:    cfg.GetString("KAFKA_BROKER"),
		KafkaTopic:     cfg.GetString("KAFKA_TOPIC"),
		KafkaGroupID:   cfg.GetString("KAFKA_GROUPID"),
		RedisAddr:      cfg.GetString("REDIS_ADDR"),
		RedisPassword:  cfg.GetString("REDIS_PASSWORD"),
		RedisDB:        cfg.GetInt("REDIS_DB"),
		DescCacheTTL:   cfg.GetDuration("DESCRIPTION_CACHE_TTL"),
	}
}
