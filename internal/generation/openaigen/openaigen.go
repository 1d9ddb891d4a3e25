// Package openaigen generates images with the OpenAI Images API
package openaigen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultModel = "gpt-image-1"

// imagesAPI - то, что нужно от openai.ImageService
type imagesAPI interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
	Edit(ctx context.Context, body openai.ImageEditParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type Generator struct {
	images imagesAPI
	model  openai.ImageModel
	apiKey string
	store  storage.FileStorage
}

func New(store storage.FileStorage, opts Options) *Generator {
	m := opts.Model
	if m == "" {
		m = DefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// ретраев на уровне оркестрации нет
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(reqOpts...)

	return &Generator{
		images: &client.Images,
		model:  openai.ImageModel(m),
		apiKey: opts.APIKey,
		store:  store,
	}
}

// GenerateImage: с uploadID - edit по загруженной картинке, без него (или если
// загрузка не найдена) - генерация только по промпту
func (g *Generator) GenerateImage(ctx context.Context, prompt, uploadID string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY", model.ErrNotConfigured)
	}
	logger := mwlogger.LoggerFromContext(ctx)

	var source []byte
	if uploadID != "" {
		data, err := g.store.UploadContent(ctx, uploadID)
		switch {
		case err == nil:
			source = data
		case errors.Is(err, model.ErrFileNotFound):
			logger.Warn().Str("upload_id", uploadID).Msg("Upload not found, falling back to prompt-only generation")
		default:
			return "", err
		}
	}

	var (
		resp *openai.ImagesResponse
		err  error
	)
	if source != nil {
		resp, err = g.images.Edit(ctx, openai.ImageEditParams{
			Image: openai.ImageEditParamsImageUnion{
				OfFileArray: []io.Reader{openai.File(bytes.NewReader(source), uploadID, model.ContentTypeFor(uploadID))},
			},
			Prompt:        prompt,
			Model:         g.model,
			InputFidelity: openai.ImageEditParamsInputFidelityHigh,
			Quality:       openai.ImageEditParamsQualityHigh,
		})
	} else {
		resp, err = g.images.Generate(ctx, openai.ImageGenerateParams{
			Prompt:  prompt,
			Model:   g.model,
			Quality: openai.ImageGenerateParamsQualityHigh,
		})
	}
	if err != nil {
		return "", vendorErr(err)
	}

	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("openai: %w", model.ErrEmptyVendorResult)
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("%w: openai returned malformed base64: %v", model.ErrUpstream, err)
	}

	return g.store.SaveResult(ctx, img, model.DefaultResultExt)
}

func vendorErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai error %d: %s", model.ErrUpstream, apiErr.StatusCode, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: openai: %v", model.ErrUpstream, err)
}
