package repository

import (
	"context"

	"FinChat/internal/domain/models"
	"FinChat/internal/domain/repository"
	pkgkafka "FinChat/pkg/kafka"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher publishes parsed envelopes keyed by chat id so one chat's
// results stay ordered on a single partition.
type KafkaPublisher struct {
	producer batchProducer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, env *models.ParsedEnvelope) error {
	return p.PublishBatch(ctx, []*models.ParsedEnvelope{env})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, envs []*models.ParsedEnvelope) error {
	msgs := make([]pkgkafka.Message, 0, len(envs))
	for _, env := range envs {
		if env == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(env.ChatID),
			Value:   env,
			TraceID: env.ID,
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ repository.Publisher = (*KafkaPublisher)(nil)
