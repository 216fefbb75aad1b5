package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/limitlxx/kirito-sdk-sub003/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the redis stream audit records are published to when no
// explicit stream name is configured.
const DefaultStream = "membership_audit_stream"

// RedisSink publishes audit records to a redis stream so that external
// indexers can consume them without polling the engine. Records are
// append-only; trimming is left to the stream consumers' retention policy.
type RedisSink struct {
	client *redis.Client
	stream string
	ctx    context.Context
}

func NewRedisSink(redisURL string, stream string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 10 * time.Second
	opts.WriteTimeout = 10 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if stream == "" {
		stream = DefaultStream
	}

	logging.Logger().Info().
		Str("stream", stream).
		Str("redis_addr", client.Options().Addr).
		Msg("redis audit sink connected")

	return &RedisSink{client: client, stream: stream, ctx: context.Background()}, nil
}

func (s *RedisSink) Emit(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Logger().Error().Err(err).
			Str("event_id", event.ID).
			Msg("failed to marshal audit record")
		return
	}

	err = s.client.XAdd(s.ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type":    string(event.Type),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		logging.Logger().Error().Err(err).
			Str("event_id", event.ID).
			Str("stream", s.stream).
			Msg("failed to publish audit record")
	}
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
