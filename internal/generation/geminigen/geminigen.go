// Package geminigen generates and describes images with the Gemini API
package geminigen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/UnendingLoop/ImageGenAPI/internal/generation"
	"github.com/UnendingLoop/ImageGenAPI/internal/imageproc"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"google.golang.org/genai"
)

const (
	DefaultImageModel       = "gemini-2.5-flash-image-preview"
	DefaultDescriptionModel = "gemini-2.5-flash"

	describePrompt      = "Generate a detailed JSON description of the given image"
	describeInstruction = "You are an expert translator that converts images into detailed JSON descriptions for image generation models. " +
		"Make sure to identify patterns, text, objects, colors explicitly with all other tiny details. " +
		"# OUTPUT FORMAT: YOU Should return a JSON object only."
)

type contentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Options struct {
	APIKey           string
	ImageModel       string
	DescriptionModel string
	BaseURL          string
	HTTPClient       *http.Client
}

// Client реализует и generation.Service, и generation.Describer.
// genai-клиент создается при первом вызове, чтобы отсутствие ключа не мешало старту.
type Client struct {
	opts  Options
	store storage.FileStorage

	mu  sync.Mutex
	api contentAPI
}

var (
	_ generation.Service   = (*Client)(nil)
	_ generation.Describer = (*Client)(nil)
)

func New(store storage.FileStorage, opts Options) *Client {
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}
	if opts.DescriptionModel == "" {
		opts.DescriptionModel = DefaultDescriptionModel
	}
	return &Client{opts: opts, store: store}
}

func (c *Client) contents(ctx context.Context) (contentAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	if c.opts.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", model.ErrNotConfigured)
	}

	cfg := &genai.ClientConfig{
		APIKey:     c.opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.opts.HTTPClient,
	}
	if c.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", model.ErrUpstream, err)
	}
	c.api = client.Models
	return c.api, nil
}

func (c *Client) GenerateImage(ctx context.Context, prompt, uploadID string) (string, error) {
	api, err := c.contents(ctx)
	if err != nil {
		return "", err
	}
	logger := mwlogger.LoggerFromContext(ctx)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if uploadID != "" {
		data, err := c.store.UploadContent(ctx, uploadID)
		switch {
		case err == nil:
			parts = append(parts, genai.NewPartFromBytes(data, model.ContentTypeFor(uploadID)))
		case errors.Is(err, model.ErrFileNotFound):
			logger.Warn().Str("upload_id", uploadID).Msg("Upload not found, falling back to prompt-only generation")
		default:
			return "", err
		}
	}

	resp, err := api.GenerateContent(ctx, c.opts.ImageModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", vendorErr(err)
	}

	blob := firstInlineImage(resp)
	if blob == nil {
		return "", fmt.Errorf("gemini: %w", model.ErrEmptyVendorResult)
	}

	data, ext := blob.Data, model.GetFileExt[blob.MIMEType]
	if ext == "" || ext == "webp" {
		// результаты отдаем только как png/jpg
		if data, err = imageproc.ToPNG(blob.Data); err != nil {
			return "", fmt.Errorf("%w: gemini returned undecodable image: %v", model.ErrUpstream, err)
		}
		ext = model.DefaultResultExt
	}
	return c.store.SaveResult(ctx, data, ext)
}

// DescribeImage ищет картинку сначала в результатах, потом в загрузках
func (c *Client) DescribeImage(ctx context.Context, id string) (string, error) {
	data, _, err := storage.FindImage(ctx, c.store, id)
	if err != nil {
		if errors.Is(err, model.ErrFileNotFound) {
			return "", fmt.Errorf("%w: image %q not found", model.ErrImageRequired, id)
		}
		return "", err
	}

	api, err := c.contents(ctx)
	if err != nil {
		return "", err
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(describePrompt),
		genai.NewPartFromBytes(data, model.ContentTypeFor(id)),
	}, genai.RoleUser)

	resp, err := api.GenerateContent(ctx, c.opts.DescriptionModel, []*genai.Content{content}, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(describeInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", vendorErr(err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty description", model.ErrUpstream)
	}
	return generation.StripCodeFence(text), nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData
			}
		}
	}
	return nil
}

func vendorErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini error %d: %s", model.ErrUpstream, apiErr.Code, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: gemini: %v", model.ErrUpstream, err)
}
