// Package upscale enlarges stored images through the Picsart upscale API
package upscale

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/UnendingLoop/ImageGenAPI/internal/imageproc"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"github.com/UnendingLoop/ImageGenAPI/internal/vendorhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const DefaultURL = "https://api.picsart.io/tools/1.0/upscale"

type Service struct {
	client   *retryablehttp.Client
	endpoint string
	apiKey   string
	store    storage.FileStorage
}

func New(store storage.FileStorage, client *retryablehttp.Client, endpoint, apiKey string) *Service {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Service{client: client, endpoint: endpoint, apiKey: apiKey, store: store}
}

type picsartResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (s *Service) Upscale(ctx context.Context, id string, factor int) (model.UpscaleResult, error) {
	var res model.UpscaleResult
	logger := mwlogger.LoggerFromContext(ctx).With().Str("image_identifier", id).Int("upscale_factor", factor).Logger()

	// неизвестный id - 404 независимо от наличия ключа
	src, ns, err := storage.FindImage(ctx, s.store, id)
	if err != nil {
		if errors.Is(err, model.ErrFileNotFound) {
			return res, fmt.Errorf("image with identifier %s not found: %w", id, model.ErrFileNotFound)
		}
		return res, err
	}
	if s.apiKey == "" {
		return res, fmt.Errorf("%w: Picsart API key is not configured (PICSART_API_KEY)", model.ErrNotConfigured)
	}
	logger.Info().Str("namespace", string(ns)).Msg("Found image for upscaling")

	inRes, err := imageproc.Resolution(src)
	if err != nil {
		return res, fmt.Errorf("failed to read input image: %w", err)
	}

	resultURL, err := s.requestUpscale(ctx, id, src, factor)
	if err != nil {
		return res, err
	}
	logger.Info().Msg("Received upscaled image URL from Picsart")

	upscaled, err := s.download(ctx, resultURL)
	if err != nil {
		return res, err
	}
	outRes, err := imageproc.Resolution(upscaled)
	if err != nil {
		return res, fmt.Errorf("%w: upscaled image is not decodable: %v", model.ErrUpstream, err)
	}

	newID, err := s.store.SaveResult(ctx, upscaled, "png")
	if err != nil {
		return res, err
	}
	logger.Info().Str("result_identifier", newID).Str("input", inRes).Str("output", outRes).Msg("Upscaled image saved")

	return model.UpscaleResult{Identifier: newID, InputResolution: inRes, OutputResolution: outRes}, nil
}

func (s *Service) requestUpscale(ctx context.Context, id string, src []byte, factor int) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("upscale_factor", strconv.Itoa(factor)); err != nil {
		return "", err
	}
	if err := mw.WriteField("format", "PNG"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("image", id)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(src); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := vendorhttp.NewRequest(ctx, http.MethodPost, s.endpoint, body.Bytes())
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-Picsart-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: picsart request failed: %v", model.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := vendorhttp.ReadAllWithLimit(resp.Body, vendorhttp.MaxResponseSize)
	if err != nil {
		return "", fmt.Errorf("%w: picsart response: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: Picsart API error: %d - %s", model.ErrUpstream, resp.StatusCode, vendorDetail(raw))
	}

	var parsed picsartResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: picsart returned malformed JSON: %v", model.ErrUpstream, err)
	}
	if parsed.Data.URL == "" {
		return "", fmt.Errorf("picsart: %w", model.ErrEmptyVendorResult)
	}
	return parsed.Data.URL, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := vendorhttp.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad result url: %v", model.ErrUpstream, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download upscaled image: %v", model.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: failed to download upscaled image: status %d", model.ErrUpstream, resp.StatusCode)
	}
	data, err := vendorhttp.ReadAllWithLimit(resp.Body, vendorhttp.MaxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download upscaled image: %v", model.ErrUpstream, err)
	}
	return data, nil
}

func vendorDetail(raw []byte) string {
	var parsed picsartResponse
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
