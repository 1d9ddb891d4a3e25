// Package storage provides the FileStorage contract, its factory and helpers shared by the variants
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/appconfig"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/gcsstorage"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/gdrivestorage"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/localstorage"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/miniostorage"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/s3storage"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// FileStorage - контракт хранилища загрузок и результатов
type FileStorage interface {
	SaveUpload(ctx context.Context, file model.Upload) (string, error)
	SaveResult(ctx context.Context, data []byte, ext string) (string, error)
	UploadContent(ctx context.Context, id string) ([]byte, error)
	ResultContent(ctx context.Context, id string) ([]byte, error)
	ResultURI(ctx context.Context, id string) (string, error)
}

type Kind string

const (
	KindLocal Kind = "local"
	KindDrive Kind = "gcp"
	KindGCS   Kind = "gcs"
	KindS3    Kind = "s3"
	KindMinio Kind = "minio"
)

var kinds = map[Kind]bool{
	KindLocal: true,
	KindDrive: true,
	KindGCS:   true,
	KindS3:    true,
	KindMinio: true,
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !kinds[k] {
		return "", fmt.Errorf("%w: %q", model.ErrUnsupportedStorage, s)
	}
	return k, nil
}

// New resolves the configured variant once per process
func New(ctx context.Context, cfg appconfig.StorageSettings) (FileStorage, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use one of local, gcp, gcs, s3, minio")
		return nil, err
	}

	zlog.Logger.Info().Str("type", string(kind)).Msg("Initializing storage")
	switch kind {
	case KindLocal:
		return localstorage.New(cfg.UploadDir, cfg.ResultDir)
	case KindDrive:
		return gdrivestorage.New(ctx, gdrivestorage.Options{
			FolderID:         cfg.DriveFolderID,
			ClientSecretFile: cfg.DriveClientSecret,
			TokenFile:        cfg.DriveTokenFile,
			PoolSize:         cfg.DrivePoolSize,
		})
	case KindGCS:
		return gcsstorage.New(ctx, gcsstorage.Options{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			URLTTL:          cfg.URLTTL,
		})
	case KindS3:
		return s3storage.New(ctx, s3storage.Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			URLTTL:          cfg.URLTTL,
		})
	case KindMinio:
		return miniostorage.New(ctx, miniostorage.Options{
			Endpoint: cfg.MinioEndpoint,
			User:     cfg.MinioUser,
			Pass:     cfg.MinioPass,
			Bucket:   cfg.MinioBucket,
			Secure:   cfg.MinioSecure,
			URLTTL:   cfg.URLTTL,
		})
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedStorage, cfg.Type)
}

// NewWithRetries повторяет подключение к сетевым хранилищам; ошибки конфигурации не ретраятся
func NewWithRetries(ctx context.Context, cfg appconfig.StorageSettings, strategy retry.Strategy) (FileStorage, error) {
	var strg FileStorage
	var cfgErr error

	err := retry.DoContext(ctx, strategy, func() error {
		s, err := New(ctx, cfg)
		switch {
		case err == nil:
			strg = s
			return nil
		case errors.Is(err, model.ErrUnsupportedStorage), errors.Is(err, model.ErrNotConfigured):
			cfgErr = err
			return nil
		}
		zlog.Logger.Warn().Err(err).Msg("Failed to init storage, retrying...")
		return err
	})
	if cfgErr != nil {
		return nil, cfgErr
	}
	if err != nil {
		return nil, err
	}
	return strg, nil
}

// Close releases clients of variants that hold them
func Close(s FileStorage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FindImage ищет сначала в результатах, потом в загрузках
func FindImage(ctx context.Context, s FileStorage, id string) ([]byte, model.Namespace, error) {
	data, err := s.ResultContent(ctx, id)
	if err == nil {
		return data, model.NamespaceResults, nil
	}
	if !errors.Is(err, model.ErrFileNotFound) {
		return nil, "", err
	}

	data, err = s.UploadContent(ctx, id)
	if err == nil {
		return data, model.NamespaceUploads, nil
	}
	return nil, "", err
}

// Static lists URL-path → directory mounts for variants that serve files from disk
func Static(s FileStorage) map[string]string {
	if l, ok := s.(*localstorage.Storage); ok {
		return map[string]string{
			"/uploads": l.UploadDir(),
			"/results": l.ResultDir(),
		}
	}
	return nil
}

// RetryStrategy for connecting to the network-backed variants at startup
var RetryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}
