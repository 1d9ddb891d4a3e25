// Package kafka creates the operation-events topic and checks broker readiness
package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// InitKafkaTopics creates topics, retrying every delay until success or ctx is done
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) error {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}
	for _, t := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	for {
		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			zlog.Logger.Warn().Err(err).Dur("delay", delay).Msg("Failed to run topics creation request")
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		failed := 0
		for topic, terr := range resp.Errors {
			if terr == nil || errors.Is(terr, kafkago.TopicAlreadyExists) {
				continue
			}
			failed++
			zlog.Logger.Error().Err(terr).Str("topic", topic).Msg("Topic creation error")
		}
		if failed == 0 {
			zlog.Logger.Info().Strs("topics", topics).Msg("Kafka topics are ready")
			return nil
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// WaitKafkaReady blocks until the broker accepts TCP connections or ctx is done
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) error {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				zlog.Logger.Warn().Err(errConn).Msg("Failed to close connection after testing Kafka readiness")
			}
			zlog.Logger.Info().Str("broker", brokerAddr).Msg("Kafka is ready")
			return nil
		}
		zlog.Logger.Warn().Err(err).Dur("delay", delay).Msg("Kafka not ready, retrying...")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
