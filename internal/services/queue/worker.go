package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// EventHandler receives decoded upload events. Returning an error requeues
// nothing; the delivery is dropped after logging.
type EventHandler func(ctx context.Context, event *UploadedEvent) error

// Consume delivers events to handle until ctx is done or the broker closes
// the delivery channel.
func (q *QueueService) Consume(ctx context.Context, consumer string, handle EventHandler) error {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		consumer,    // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("Consumer started", zap.String("consumer", consumer))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Consumer stopping", zap.String("consumer", consumer))
			return nil
		case msg, ok := <-msgs:
			if !ok {
				q.logger.Warn("Message channel closed", zap.String("consumer", consumer))
				return nil
			}
			q.processMessage(ctx, msg, handle)
		}
	}
}

func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, handle EventHandler) {
	var event UploadedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		q.logger.Error("Failed to unmarshal event", zap.Error(err))
		msg.Nack(false, false) // Don't requeue malformed messages
		return
	}

	if err := handle(ctx, &event); err != nil {
		q.logger.Error("Event handler failed", zap.String("event_id", event.ID), zap.Error(err))
		msg.Nack(false, false)
		return
	}

	if err := msg.Ack(false); err != nil {
		q.logger.Error("Failed to ack message", zap.String("event_id", event.ID), zap.Error(err))
	}
}
