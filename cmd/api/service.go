package main

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/appconfig"
	"github.com/UnendingLoop/ImageGenAPI/internal/bgremoval"
	"github.com/UnendingLoop/ImageGenAPI/internal/cache"
	"github.com/UnendingLoop/ImageGenAPI/internal/events"
	"github.com/UnendingLoop/ImageGenAPI/internal/generation"
	"github.com/UnendingLoop/ImageGenAPI/internal/generation/geminigen"
	"github.com/UnendingLoop/ImageGenAPI/internal/generation/openaigen"
	"github.com/UnendingLoop/ImageGenAPI/internal/kafka"
	"github.com/UnendingLoop/ImageGenAPI/internal/metrics"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/pool"
	"github.com/UnendingLoop/ImageGenAPI/internal/repository"
	"github.com/UnendingLoop/ImageGenAPI/internal/service"
	"github.com/UnendingLoop/ImageGenAPI/internal/storage"
	"github.com/UnendingLoop/ImageGenAPI/internal/upscale"
	"github.com/UnendingLoop/ImageGenAPI/internal/vendorhttp"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"
)

// таймауты клиентов вендоров генерации - картинки генерируются долго
const (
	generationTimeout = 3 * time.Minute
	removalTimeout    = time.Minute
)

type ImageAPIService interface {
	Generate(ctx context.Context, in *model.GenerateData) (*model.ResultResponse, error)
	RemoveBackground(ctx context.Context, id string) (*model.ResultResponse, error)
	Describe(ctx context.Context, id string) (string, error)
	Upscale(ctx context.Context, id string, factor int) (*model.UpscaleResponse, error)
	History(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

// container держит все, что создано на старте и должно быть закрыто при остановке
type container struct {
	storage  storage.FileStorage
	db       *dbpg.DB
	producer *wbfkafka.Producer
	redis    *redis.Client
	metrics  *metrics.Metrics
	service  ImageAPIService
}

func buildContainer(ctx context.Context, st appconfig.Settings) (*container, error) {
	c := &container{}

	m, err := metrics.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	c.metrics = m

	// подключиться к хранилищу
	if c.storage, err = storage.NewWithRetries(ctx, st.Storage, storage.RetryStrategy); err != nil {
		return nil, fmt.Errorf("failed to init %q storage: %w", st.Storage.Type, err)
	}
	zlog.Logger.Info().Str("storage", st.Storage.Type).Msg("Storage initialized")

	// история операций - опционально, если задан DSN
	var history repository.OperationRepo
	if st.PostgresDSN != "" {
		if c.db, err = repository.ConnectWithRetries(ctx, st.PostgresDSN, repository.RetryStrategy); err != nil {
			return c, err
		}
		if err := repository.MigrateWithRetries(ctx, c.db.Master, st.MigrationsPath, repository.RetryStrategy); err != nil {
			return c, err
		}
		history = repository.NewPostgresOperationRepo(c.db)
	}

	recorder, err := c.buildRecorder(ctx, st, history)
	if err != nil {
		return c, err
	}

	var descCache cache.DescriptionCache = cache.Noop{}
	if st.RedisAddr != "" {
		c.redis = redis.New(st.RedisAddr, st.RedisPassword, st.RedisDB)
		if err := c.redis.Ping(ctx); err != nil {
			// кеш не обязателен - работаем без него
			zlog.Logger.Warn().Err(err).Msg("Redis is unreachable, description cache disabled")
		} else {
			descCache = cache.NewRedisCache(c.redis, st.Storage.Type, st.DescCacheTTL)
		}
	}

	v := st.Vendors
	genHTTP := vendorhttp.Standard(v.HTTPRetries, generationTimeout)

	gemini := geminigen.New(c.storage, geminigen.Options{
		APIKey:           v.GeminiKey,
		ImageModel:       v.GeminiImgModel,
		DescriptionModel: v.GeminiDescModel,
		HTTPClient:       genHTTP,
	})
	registry := generation.NewRegistry(map[string]generation.Service{
		generation.ModelOpenAI: openaigen.New(c.storage, openaigen.Options{
			APIKey:     v.OpenAIKey,
			Model:      v.OpenAIModel,
			BaseURL:    v.OpenAIBaseURL,
			HTTPClient: genHTTP,
		}),
		generation.ModelGemini: gemini,
	}, gemini)

	c.service = service.NewImageService(service.Deps{
		Storage:      c.storage,
		StorageKind:  st.Storage.Type,
		Registry:     registry,
		Upscaler:     upscale.New(c.storage, vendorhttp.New(v.HTTPRetries, v.UpscaleTimeout), v.PicsartURL, v.PicsartKey),
		Remover:      bgremoval.New(vendorhttp.New(v.HTTPRetries, removalTimeout), v.PhotoRoomURL),
		PhotoRoomKey: v.PhotoRoomKey,
		Limiter:      pool.NewLimiter(v.Concurrency),
		Recorder:     recorder,
		History:      history,
		Cache:        descCache,
		Metrics:      c.metrics,
	})

	zlog.Logger.Info().Strs("models", registry.Names()).Msg("Generation models registered")
	return c, nil
}

// buildRecorder: Kafka, если задан брокер (в базу пишет воркер), иначе прямо в базу, иначе никуда
func (c *container) buildRecorder(ctx context.Context, st appconfig.Settings, history repository.OperationRepo) (events.Recorder, error) {
	switch {
	case st.KafkaBroker != "":
		// ждем пока кафка раздуплится
		if err := kafka.WaitKafkaReady(ctx, st.KafkaBroker, 5*time.Second); err != nil {
			return nil, err
		}
		if err := kafka.InitKafkaTopics(ctx, st.KafkaBroker, 10*time.Second, st.KafkaTopic); err != nil {
			return nil, err
		}
		c.producer = wbfkafka.NewProducer([]string{st.KafkaBroker}, st.KafkaTopic)
		return events.NewKafkaRecorder(c.producer), nil
	case history != nil:
		return events.NewRepoRecorder(history), nil
	default:
		zlog.Logger.Info().Msg("Operation history is disabled")
		return events.Noop{}, nil
	}
}

func (c *container) shutdown() {
	zlog.Logger.Info().Msg("Starting shutdown sequence...")

	if c.storage != nil {
		if err := storage.Close(c.storage); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close storage clients")
		}
	}

	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-producer")
		} else {
			zlog.Logger.Info().Msg("Kafka-producer connection closed")
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close Redis client")
		}
	}

	if c.db != nil {
		if err := c.db.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
			return
		}
		zlog.Logger.Info().Msg("DBconn closed")
	}
}
