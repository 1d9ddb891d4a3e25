// Package bgremoval removes image backgrounds via the PhotoRoom segment API.
// It works on local files only and knows nothing about storage.
package bgremoval

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage/blob"
	"github.com/UnendingLoop/ImageGenAPI/internal/vendorhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const DefaultURL = "https://sdk.photoroom.com/v1/segment"

type Remover struct {
	client   *retryablehttp.Client
	endpoint string
}

func New(client *retryablehttp.Client, endpoint string) *Remover {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Remover{client: client, endpoint: endpoint}
}

// Remove sends inputPath to PhotoRoom and writes the cut-out next to it
// as <stem>_NO_BG_<8 hex>.png, returning the output path
func (r *Remover) Remove(ctx context.Context, inputPath, apiKey string) (string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	src, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read input image: %w", err)
	}

	body, contentType, err := multipartBody(filepath.Base(inputPath), src)
	if err != nil {
		return "", err
	}

	req, err := vendorhttp.NewRequest(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", apiKey)

	logger.Info().Str("input", inputPath).Msg("Calling PhotoRoom API for background removal")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: photoroom request failed: %v", model.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := vendorhttp.ReadAllWithLimit(resp.Body, vendorhttp.MaxResponseSize)
	if err != nil {
		return "", fmt.Errorf("%w: photoroom response: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Bytes("response", data).Msg("PhotoRoom background removal failed")
		return "", fmt.Errorf("%w: PhotoRoom API error: %d - %s", model.ErrUpstream, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	out := OutputPath(inputPath)
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write output image: %w", err)
	}
	logger.Info().Str("output", out).Msg("Background removed")
	return out, nil
}

func OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	suffix := blob.UploadID("")[:8]
	return filepath.Join(filepath.Dir(inputPath), stem+"_NO_BG_"+suffix+".png")
}

func multipartBody(filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename=%q`, filename))
	h.Set("Content-Type", model.ContentTypeFor(filename))

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
