package stream

import (
	"context"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// noopProducer discards messages. Used when the stream is disabled.
type noopProducer struct{}

// NewNoopProducer returns a producer that drops everything.
func NewNoopProducer() MessageProducer {
	return noopProducer{}
}

func (noopProducer) ProduceMessage(context.Context, *domain.Message) error { return nil }
func (noopProducer) Close() error                                          { return nil }
