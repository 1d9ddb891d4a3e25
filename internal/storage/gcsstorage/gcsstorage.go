// Package gcsstorage keeps uploads and results as objects in a Google Cloud Storage bucket
package gcsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/blob"
	"google.golang.org/api/option"
)

type Options struct {
	Bucket          string
	CredentialsFile string
	URLTTL          time.Duration
	// ClientOptions are appended after credentials, e.g. option.WithEndpoint for an emulator
	ClientOptions []option.ClientOption
}

type Storage struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: GCS_BUCKET", model.ErrNotConfigured)
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	// без файла ключа - Application Default Credentials
	clientOpts = append(clientOpts, opts.ClientOptions...)

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Storage{client: client, bucket: opts.Bucket, ttl: ttl}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) SaveUpload(ctx context.Context, file model.Upload) (string, error) {
	data, err := blob.ReadUpload(file)
	if err != nil {
		return "", err
	}
	id := blob.UploadID(file.Filename)
	if err := s.write(ctx, objectName(model.NamespaceUploads, id), blob.ContentType(file), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) SaveResult(ctx context.Context, data []byte, ext string) (string, error) {
	id := blob.ResultID(ext)
	if err := s.write(ctx, objectName(model.NamespaceResults, id), model.ContentTypeFor(id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) UploadContent(ctx context.Context, id string) ([]byte, error) {
	return s.read(ctx, objectName(model.NamespaceUploads, id))
}

func (s *Storage) ResultContent(ctx context.Context, id string) ([]byte, error) {
	return s.read(ctx, objectName(model.NamespaceResults, id))
}

// ResultURI returns a V4 signed GET url valid for the configured TTL
func (s *Storage) ResultURI(ctx context.Context, id string) (string, error) {
	name := objectName(model.NamespaceResults, id)
	if _, err := s.client.Bucket(s.bucket).Object(name).Attrs(ctx); err != nil {
		return "", mapErr(name, err)
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(name, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

func (s *Storage) write(ctx context.Context, name, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %q to GCS: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *Storage) read(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, mapErr(name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q from GCS: %w", name, err)
	}
	return data, nil
}

func objectName(ns model.Namespace, id string) string {
	return string(ns) + "/" + id
}

func mapErr(name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%q: %w", name, model.ErrFileNotFound)
	}
	return err
}
