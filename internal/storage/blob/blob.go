// Package blob holds identifier minting and upload size checks shared by the storage variants
package blob

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/google/uuid"
)

func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// UploadID - "<hex>.<ext>", ext is taken from the original filename
func UploadID(filename string) string {
	ext := model.FileExt(filename)
	if ext == "" {
		return token()
	}
	return token() + "." + ext
}

// ResultID - "generated_<hex>.<ext>"
func ResultID(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = model.DefaultResultExt
	}
	return model.ResultPrefix + token() + "." + ext
}

// ReadUpload reads the whole upload, failing with ErrFileTooLarge when either the declared
// size or the actual payload exceeds MaxUploadSize
func ReadUpload(u model.Upload) ([]byte, error) {
	if u.Size > model.MaxUploadSize {
		return nil, model.ErrFileTooLarge
	}
	if u.Body == nil {
		return nil, errors.New("nil reader passed to storage")
	}

	data, err := io.ReadAll(io.LimitReader(u.Body, model.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > model.MaxUploadSize {
		return nil, model.ErrFileTooLarge
	}
	return data, nil
}

// ContentType of the upload, falling back to its extension
func ContentType(u model.Upload) string {
	if u.ContentType != "" && u.ContentType != "application/octet-stream" {
		return u.ContentType
	}
	return model.ContentTypeFor(u.Filename)
}
