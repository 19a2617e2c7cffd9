package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

// Sender часть amqp.Channel, нужная для публикации.
type Sender interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует уведомления реконсилятора в обменник.
type Publisher struct {
	mu       sync.Mutex
	ch       Sender
	exchange string
}

// NewPublisher создаёт Publisher поверх канала.
func NewPublisher(ch Sender, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// PublishStateChanged отправляет уведомление об изменённом состоянии подписки.
func (p *Publisher) PublishStateChanged(ctx context.Context, change billing.StateChange) error {
	return p.publish(ctx, RoutingStateChanged, change.EventID, change)
}

// PublishReconcileFailed отправляет уведомление о событии, которое не удалось применить.
func (p *Publisher) PublishReconcileFailed(ctx context.Context, failure billing.FailureNotice) error {
	return p.publish(ctx, RoutingReconcileFailed, failure.EventID, failure)
}

func (p *Publisher) publish(ctx context.Context, routingKey, messageID string, message any) error {
	const op = "rabbitmq.Publisher.publish"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
