package events

import (
	"context"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/util/kafka"
)

// KafkaPublisher sends events as JSON keyed by the owner address, so one owner's events stay ordered.
type KafkaPublisher struct {
	producer kafka.KafkaProducerI
}

func NewKafkaPublisher(producer kafka.KafkaProducerI) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (k *KafkaPublisher) Publish(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return errors.NewContextCanceledError("[KafkaPublisher] not publishing %s", e.ID, err)
	}

	data, err := e.Bytes()
	if err != nil {
		return errors.NewProcessingError("[KafkaPublisher] failed to encode event %s", e.ID, err)
	}

	return k.producer.Send(e.Owner.Bytes(), data)
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
