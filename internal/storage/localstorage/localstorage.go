// Package localstorage keeps uploads and results in two directories on local disk
package localstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/blob"
)

type Storage struct {
	uploadDir string
	resultDir string
}

func New(uploadDir, resultDir string) (*Storage, error) {
	for _, dir := range []string{uploadDir, resultDir} {
		if dir == "" {
			return nil, fmt.Errorf("%w: UPLOAD_DIR/RESULT_DIR", model.ErrNotConfigured)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir %q: %w", dir, err)
		}
	}
	return &Storage{uploadDir: uploadDir, resultDir: resultDir}, nil
}

func (s *Storage) UploadDir() string { return s.uploadDir }
func (s *Storage) ResultDir() string { return s.resultDir }

func (s *Storage) SaveUpload(_ context.Context, file model.Upload) (string, error) {
	data, err := blob.ReadUpload(file)
	if err != nil {
		return "", err
	}

	id := blob.UploadID(file.Filename)
	if err := writeFile(filepath.Join(s.uploadDir, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) SaveResult(_ context.Context, data []byte, ext string) (string, error) {
	id := blob.ResultID(ext)
	if err := writeFile(filepath.Join(s.resultDir, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) UploadContent(_ context.Context, id string) ([]byte, error) {
	return readFile(s.uploadDir, id)
}

func (s *Storage) ResultContent(_ context.Context, id string) ([]byte, error) {
	return readFile(s.resultDir, id)
}

// ResultURI - путь под статическим маунтом /results
func (s *Storage) ResultURI(_ context.Context, id string) (string, error) {
	if !safeName(id) {
		return "", fmt.Errorf("result %q: %w", id, model.ErrFileNotFound)
	}
	return "/results/" + id, nil
}

func writeFile(path string, data []byte) error {
	// пишем во временный файл и переименовываем, чтобы читатели не видели недописанный файл
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

func readFile(dir, id string) ([]byte, error) {
	if !safeName(id) {
		return nil, fmt.Errorf("%q: %w", id, model.ErrFileNotFound)
	}
	data, err := os.ReadFile(filepath.Join(dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", id, model.ErrFileNotFound)
		}
		return nil, err
	}
	return data, nil
}

func safeName(id string) bool {
	return id != "" &&
		id != "." &&
		!strings.Contains(id, "..") &&
		!strings.ContainsAny(id, `/\`) &&
		!strings.HasPrefix(id, ".")
}
