package stream

import (
	"context"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// MessageProducer publishes persisted chat messages to the event stream for
// downstream archive and analytics consumers. Delivery is best effort; the
// relational store already holds the durable copy.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}
