// Package miniostorage provides storage of uploads and results in a MinIO bucket
package miniostorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/blob"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
)

type Options struct {
	Endpoint string
	User     string
	Pass     string
	Bucket   string
	Secure   bool
	URLTTL   time.Duration
}

// objectAPI - то, что нужно от *minio.Client
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error)
}

type MinioImageStorage struct {
	bucket string
	ttl    time.Duration
	client objectAPI
}

func New(ctx context.Context, opts Options) (*MinioImageStorage, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("%w: MINIO_ENDPOINT", model.ErrNotConfigured)
	}
	bucket := opts.Bucket
	if bucket == "" {
		bucket = "default"
		zlog.Logger.Warn().Str("bucket", bucket).Msg("Bucket name is empty. Using default value")
	}

	// подключаемся к минио - создаем клиента
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Pass, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, client, bucket); err != nil {
		return nil, fmt.Errorf("failed to create bucket in MinIO: %w", err)
	}

	return &MinioImageStorage{bucket: bucket, ttl: ttlOrDefault(opts.URLTTL), client: client}, nil
}

func (s *MinioImageStorage) SaveUpload(ctx context.Context, file model.Upload) (string, error) {
	data, err := blob.ReadUpload(file)
	if err != nil {
		return "", err
	}
	id := blob.UploadID(file.Filename)
	if err := s.put(ctx, key(model.NamespaceUploads, id), blob.ContentType(file), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MinioImageStorage) SaveResult(ctx context.Context, data []byte, ext string) (string, error) {
	id := blob.ResultID(ext)
	if err := s.put(ctx, key(model.NamespaceResults, id), model.ContentTypeFor(id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MinioImageStorage) UploadContent(ctx context.Context, id string) ([]byte, error) {
	return s.get(ctx, key(model.NamespaceUploads, id))
}

func (s *MinioImageStorage) ResultContent(ctx context.Context, id string) ([]byte, error) {
	return s.get(ctx, key(model.NamespaceResults, id))
}

// ResultURI - presigned GET, каждый вызов выдает новую ссылку
func (s *MinioImageStorage) ResultURI(ctx context.Context, id string) (string, error) {
	k := key(model.NamespaceResults, id)
	if _, err := s.client.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{}); err != nil {
		return "", mapErr(k, err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, k, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", k, err)
	}
	return u.String(), nil
}

func (s *MinioImageStorage) put(ctx context.Context, k, contentType string, data []byte) error {
	if _, err := s.client.PutObject(ctx, s.bucket, k, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to put %q to MinIO: %w", k, err)
	}
	return nil
}

func (s *MinioImageStorage) get(ctx context.Context, k string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, k, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapErr(k, err)
	}
	defer obj.Close()

	// GetObject ленивый - отсутствие объекта всплывает только на Stat/Read
	if _, err := obj.Stat(); err != nil {
		return nil, mapErr(k, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapErr(k, err)
	}
	return data, nil
}

func key(ns model.Namespace, id string) string {
	return string(ns) + "/" + id
}

func mapErr(k string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%q: %w", k, model.ErrFileNotFound)
	}
	return err
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func ttlOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
