package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Ключи маршрутизации уведомлений биллинга.
const (
	RoutingStateChanged    = "subscription.changed"
	RoutingReconcileFailed = "reconcile.failed"
)

// QueueConfig очередь и ключ, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Topology обменник и очереди уведомлений.
type Topology struct {
	Exchange string
	Queues   []QueueConfig
}

// BillingTopology возвращает топологию для очередей из конфига.
func BillingTopology(exchange, changedQueue, failedQueue string) Topology {
	return Topology{
		Exchange: exchange,
		Queues: []QueueConfig{
			{QueueName: changedQueue, RoutingKey: RoutingStateChanged},
			{QueueName: failedQueue, RoutingKey: RoutingReconcileFailed},
		},
	}
}

// Declarer часть amqp.Channel, нужная для объявления топологии.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare объявляет durable direct-обменник и привязанные к нему очереди.
func Declare(ch Declarer, topo Topology) error {
	const op = "rabbitmq.Declare"

	err := ch.ExchangeDeclare(topo.Exchange, amqp.ExchangeDirect, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range topo.Queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, topo.Exchange, false, nil); err != nil {
			return fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}

// SetupChannel открывает канал и объявляет на нём топологию.
func SetupChannel(conn *amqp.Connection, topo Topology) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}
	if err := Declare(ch, topo); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}
