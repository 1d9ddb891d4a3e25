// Package service provides business-logic for the app: validation, storage and vendor orchestration
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/cache"
	"github.com/UnendingLoop/ImageGenAPI/internal/events"
	"github.com/UnendingLoop/ImageGenAPI/internal/generation"
	"github.com/UnendingLoop/ImageGenAPI/internal/metrics"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/mwlogger"
	"github.com/UnendingLoop/ImageGenAPI/internal/pool"
	"github.com/UnendingLoop/ImageGenAPI/internal/repository"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"github.com/google/uuid"
)

// ModelRegistry - контракт реестра генераторов
type ModelRegistry interface {
	Get(name string) (generation.Service, error)
	Describer() generation.Describer
}

type Upscaler interface {
	Upscale(ctx context.Context, id string, factor int) (model.UpscaleResult, error)
}

type BackgroundRemover interface {
	Remove(ctx context.Context, inputPath, apiKey string) (string, error)
}

const (
	vendorPhotoRoom = "photoroom"
	vendorPicsart   = "picsart"
	vendorDescriber = "describer"
)

// таймаут записи в историю - запрос к этому моменту уже выполнен
const recordTimeout = 5 * time.Second

type Deps struct {
	Storage      storage.FileStorage
	StorageKind  string
	Registry     ModelRegistry
	Upscaler     Upscaler
	Remover      BackgroundRemover
	PhotoRoomKey string
	Limiter      *pool.Limiter
	Recorder     events.Recorder
	History      repository.OperationRepo
	Cache        cache.DescriptionCache
	Metrics      *metrics.Metrics
}

type ImageService struct {
	storage      storage.FileStorage
	storageKind  string
	registry     ModelRegistry
	upscaler     Upscaler
	remover      BackgroundRemover
	photoRoomKey string
	limiter      *pool.Limiter
	recorder     events.Recorder
	history      repository.OperationRepo
	cache        cache.DescriptionCache
	metrics      *metrics.Metrics
}

func NewImageService(d Deps) *ImageService {
	s := &ImageService{
		storage:      d.Storage,
		storageKind:  d.StorageKind,
		registry:     d.Registry,
		upscaler:     d.Upscaler,
		remover:      d.Remover,
		photoRoomKey: d.PhotoRoomKey,
		limiter:      d.Limiter,
		recorder:     d.Recorder,
		history:      d.History,
		cache:        d.Cache,
		metrics:      d.Metrics,
	}
	if s.recorder == nil {
		s.recorder = events.Noop{}
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	return s
}

func (s *ImageService) Generate(ctx context.Context, in *model.GenerateData) (*model.ResultResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, model.ErrEmptyPrompt
	}
	if in.File != nil {
		if !model.AllowedFile(in.File.Filename) {
			return nil, fmt.Errorf("%w: %q, allowed: png, jpg, jpeg", model.ErrFileTypeNotAllowed, in.File.Filename)
		}
		if in.File.Size > model.MaxUploadSize {
			return nil, model.ErrFileTooLarge
		}
	}

	// модель проверяем до сохранения загрузки, чтобы не копить сироты
	gen, err := s.registry.Get(in.Model)
	if err != nil {
		return nil, err
	}

	uploadID := ""
	if in.File != nil {
		if uploadID, err = s.storage.SaveUpload(ctx, *in.File); err != nil {
			logger.Error().Err(err).Msg("Failed to save upload")
			return nil, err
		}
		logger.Info().Str("upload_id", uploadID).Msg("Upload saved")
	}

	var resultID string
	err = s.callVendor(ctx, strings.ToLower(strings.TrimSpace(in.Model)), string(model.OpGenerate), func() error {
		var err error
		resultID, err = gen.GenerateImage(ctx, prompt, uploadID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("model", in.Model).Msg("Image generation failed")
		return nil, err
	}

	uri, err := s.storage.ResultURI(ctx, resultID)
	if err != nil {
		logger.Error().Err(err).Str("result_id", resultID).Msg("Failed to resolve result URI")
		return nil, err
	}

	s.record(ctx, model.OperationRecord{
		Operation:        model.OpGenerate,
		Model:            strings.ToLower(strings.TrimSpace(in.Model)),
		Prompt:           prompt,
		SourceIdentifier: uploadID,
		ResultIdentifier: resultID,
		ResultURI:        uri,
	})

	return &model.ResultResponse{
		Success:          true,
		Message:          model.MsgGenerated,
		ResultPath:       uri,
		ResultIdentifier: resultID,
	}, nil
}

// RemoveBackground вырезает фон у ранее сгенерированной картинки
func (s *ImageService) RemoveBackground(ctx context.Context, id string) (*model.ResultResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// ключ проверяем до любого обращения к хранилищу
	if s.photoRoomKey == "" {
		return nil, fmt.Errorf("%w: PHOTOROOM_API_KEY", model.ErrNotConfigured)
	}

	src, err := s.storage.ResultContent(ctx, id)
	if err != nil {
		logger.Error().Err(err).Str("file_identifier", id).Msg("Failed to fetch result for background removal")
		return nil, err
	}

	dir, err := os.MkdirTemp("", "bgremoval-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove temp dir")
		}
	}()

	input := filepath.Join(dir, tempInputName(id))
	if err := os.WriteFile(input, src, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	var output string
	err = s.callVendor(ctx, vendorPhotoRoom, string(model.OpRemoveBackground), func() error {
		var err error
		output, err = s.remover.Remove(ctx, input, s.photoRoomKey)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("Background removal failed")
		return nil, err
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("failed to read background removal output: %w", err)
	}
	resultID, err := s.storage.SaveResult(ctx, data, model.DefaultResultExt)
	if err != nil {
		return nil, err
	}
	uri, err := s.storage.ResultURI(ctx, resultID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, model.OperationRecord{
		Operation:        model.OpRemoveBackground,
		Model:            vendorPhotoRoom,
		SourceIdentifier: id,
		ResultIdentifier: resultID,
		ResultURI:        uri,
	})

	return &model.ResultResponse{
		Success:          true,
		Message:          model.MsgBackgroundRemove,
		ResultPath:       uri,
		ResultIdentifier: resultID,
	}, nil
}

func (s *ImageService) Describe(ctx context.Context, id string) (string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if cached, ok, err := s.cache.Get(ctx, id); err != nil {
		logger.Warn().Err(err).Msg("Description cache lookup failed")
	} else if ok {
		logger.Info().Str("file_identifier", id).Msg("Description served from cache")
		return cached, nil
	}

	var desc string
	err := s.callVendor(ctx, vendorDescriber, string(model.OpDescribe), func() error {
		var err error
		desc, err = s.registry.Describer().DescribeImage(ctx, id)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("file_identifier", id).Msg("Image description failed")
		return "", err
	}

	if err := s.cache.Set(ctx, id, desc); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache description")
	}

	s.record(ctx, model.OperationRecord{
		Operation:        model.OpDescribe,
		SourceIdentifier: id,
	})
	return desc, nil
}

func (s *ImageService) Upscale(ctx context.Context, id string, factor int) (*model.UpscaleResponse, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if !model.ValidUpscaleFactor(factor) {
		return nil, model.ErrInvalidUpscaleFactor
	}

	var res model.UpscaleResult
	err := s.callVendor(ctx, vendorPicsart, string(model.OpUpscale), func() error {
		var err error
		res, err = s.upscaler.Upscale(ctx, id, factor)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("image_identifier", id).Msg("Upscale failed")
		return nil, err
	}

	uri, err := s.storage.ResultURI(ctx, res.Identifier)
	if err != nil {
		return nil, err
	}

	s.record(ctx, model.OperationRecord{
		Operation:        model.OpUpscale,
		Model:            vendorPicsart,
		SourceIdentifier: id,
		ResultIdentifier: res.Identifier,
		ResultURI:        uri,
	})

	return &model.UpscaleResponse{
		ResultResponse: model.ResultResponse{
			Success:          true,
			Message:          model.MsgUpscaled,
			ResultPath:       uri,
			ResultIdentifier: res.Identifier,
		},
		InputResolution:    res.InputResolution,
		UpscaledResolution: res.OutputResolution,
	}, nil
}

func (s *ImageService) History(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error) {
	if s.history == nil {
		return nil, model.ErrHistoryDisabled
	}
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := s.history.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch operations list from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}

// callVendor - ограничение параллелизма и метрики вокруг вызова вендора
func (s *ImageService) callVendor(ctx context.Context, vendor, op string, fn func() error) error {
	return s.limiter.Do(ctx, func() error {
		start := time.Now()
		err := fn()
		s.metrics.ObserveVendor(vendor, op, time.Since(start), err)
		return err
	})
}

// record пишет операцию в историю; ошибка не ломает уже выполненный запрос
func (s *ImageService) record(ctx context.Context, rec model.OperationRecord) {
	rec.ID = uuid.New()
	rec.Storage = s.storageKind
	now := time.Now().UTC()
	rec.CreatedAt = &now

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.recorder.Record(rctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Err(err).Str("operation", string(rec.Operation)).Msg("Failed to record operation")
	}
}
