// Package reconcile records compensating actions for writes that left the
// document store ahead of the relational store. The engine only enqueues;
// draining the queue is an operator or worker concern.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"attendsync/internal/platform/config"
	"attendsync/internal/platform/kafka"
	"attendsync/internal/platform/metrics"
	platformredis "attendsync/internal/platform/redis"
	"attendsync/pkg/platform/sentinel"
)

// Op names the write that needs compensating.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Action is one compensating action. For an upsert the document already
// carries Version; for a delete the document is already gone.
type Action struct {
	Op         Op        `json:"op"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Version    int64     `json:"version,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Queue accepts compensating actions.
type Queue interface {
	Enqueue(ctx context.Context, a Action) error
	Close() error
}

// Open builds the queue selected by cfg.Backend.
func Open(ctx context.Context, cfg config.ReconcileConfig, logger *slog.Logger, m *metrics.Metrics) (Queue, error) {
	switch cfg.Backend {
	case "", config.QueueLog:
		return NewLogQueue(logger, m), nil
	case config.QueueRedis:
		client, err := platformredis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis reconciliation queue: %w", err)
		}
		return NewRedisQueue(client, cfg.RedisKey, m), nil
	case config.QueueKafka:
		cl, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		if err := kafka.EnsureTopic(ctx, cl, cfg.KafkaTopic, 1, 1); err != nil {
			cl.Close()
			return nil, err
		}
		return NewKafkaQueue(cl, cfg.KafkaTopic, m), nil
	default:
		return nil, fmt.Errorf("reconciliation queue %q: %w", cfg.Backend, sentinel.ErrUnknownBackend)
	}
}

// LogQueue only logs actions. It is the default when no broker is set up.
type LogQueue struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewLogQueue(logger *slog.Logger, m *metrics.Metrics) *LogQueue {
	return &LogQueue{logger: logger, metrics: m}
}

func (q *LogQueue) Enqueue(ctx context.Context, a Action) error {
	q.logger.ErrorContext(ctx, "reconciliation required",
		"op", a.Op,
		"collection", a.Collection,
		"id", a.ID,
		"version", a.Version,
		"reason", a.Reason,
	)
	q.metrics.IncReconcile(config.QueueLog, metrics.OutcomeOK)
	return nil
}

func (q *LogQueue) Close() error { return nil }

// RedisQueue pushes JSON actions onto a Redis list.
type RedisQueue struct {
	client  *redis.Client
	key     string
	metrics *metrics.Metrics
}

func NewRedisQueue(client *redis.Client, key string, m *metrics.Metrics) *RedisQueue {
	return &RedisQueue{client: client, key: key, metrics: m}
}

func (q *RedisQueue) Enqueue(ctx context.Context, a Action) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal reconciliation action: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		q.metrics.IncReconcile(config.QueueRedis, metrics.OutcomeError)
		return fmt.Errorf("push reconciliation action: %w", err)
	}
	q.metrics.IncReconcile(config.QueueRedis, metrics.OutcomeOK)
	return nil
}

// Pending returns the number of queued actions.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count reconciliation actions: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// KafkaQueue produces JSON actions to a topic, keyed by collection/id so
// actions for one record stay ordered.
type KafkaQueue struct {
	client  *kgo.Client
	topic   string
	metrics *metrics.Metrics
}

func NewKafkaQueue(client *kgo.Client, topic string, m *metrics.Metrics) *KafkaQueue {
	return &KafkaQueue{client: client, topic: topic, metrics: m}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, a Action) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal reconciliation action: %w", err)
	}
	rec := &kgo.Record{
		Topic: q.topic,
		Key:   []byte(a.Collection + "/" + a.ID),
		Value: payload,
	}
	if err := q.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		q.metrics.IncReconcile(config.QueueKafka, metrics.OutcomeError)
		return fmt.Errorf("produce reconciliation action: %w", err)
	}
	q.metrics.IncReconcile(config.QueueKafka, metrics.OutcomeOK)
	return nil
}

func (q *KafkaQueue) Close() error {
	q.client.Close()
	return nil
}
