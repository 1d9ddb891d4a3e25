// Package main (in worker-subfolder) launches the consumer that writes operation events into the ledger
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/appconfig"
	"github.com/UnendingLoop/ImageGenAPI/internal/kafka"
	"github.com/UnendingLoop/ImageGenAPI/internal/repository"
	"github.com/UnendingLoop/ImageGenAPI/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := appconfig.New("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	settings := appconfig.Load(appConfig)

	zlog.InitConsole()
	if err := zlog.SetLevel(settings.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if settings.PostgresDSN == "" || settings.KafkaBroker == "" {
		zlog.Logger.Fatal().Msg("POSTGRES_DSN and KAFKA_BROKER are required for the worker")
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn, err := repository.ConnectWithRetries(ctx, settings.PostgresDSN, repository.RetryStrategy)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	if err := repository.MigrateWithRetries(ctx, dbConn.Master, settings.MigrationsPath, repository.RetryStrategy); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	repo := repository.NewPostgresOperationRepo(dbConn)

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, settings.KafkaBroker, 5*time.Second); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Kafka is not available")
	}
	if err := kafka.InitKafkaTopics(ctx, settings.KafkaBroker, 10*time.Second, settings.KafkaTopic); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to init Kafka topics")
	}

	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{settings.KafkaBroker}, settings.KafkaTopic, settings.KafkaGroupID)
	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(repo, queue, cons)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.StartWorker(ctx)
	}()
	zlog.Logger.Info().Str("topic", settings.KafkaTopic).Msg("Worker started")

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()
	<-done

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
	}
	zlog.Logger.Info().Msg("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		return
	}
	zlog.Logger.Info().Msg("DBconn closed")
}
