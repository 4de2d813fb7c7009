package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the part of *amqp.Channel we use.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a connection and a channel on it.  closer tears down both.
type dialFunc func() (ch channel, closer func(), err error)

// AMQP publishes to RabbitMQ over one long-lived channel.  A failed publish
// drops the channel; the next Publish redials.
type AMQP struct {
	exchange string
	dial     dialFunc

	mu     sync.Mutex
	ch     channel
	closer func()
}

// NewAMQP returns a publisher for url.  The connection is opened lazily on
// the first Publish so the service can boot while the broker is down.
func NewAMQP(url, exchange string) *AMQP {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &AMQP{
		exchange: exchange,
		dial: func() (channel, func(), error) {
			conn, err := amqp.Dial(url)
			if err != nil {
				return nil, nil, errors.Wrap(err, "amqp dial")
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, errors.Wrap(err, "amqp channel")
			}
			return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
		},
	}
}

// Publish sends ev as a persistent JSON message.
func (p *AMQP) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		zap.L().Warn("amqp publish failed; dropping channel",
			zap.String("routing_key", ev.RoutingKey()), zap.Error(err))
		p.resetLocked()
		return errors.Wrap(err, "amqp publish")
	}
	return nil
}

// Close releases the connection, if any.
func (p *AMQP) Close() {
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()
}

func (p *AMQP) connectLocked() error {
	ch, closer, err := p.dial()
	if err != nil {
		return err
	}
	// Topic exchange, durable (survives broker restart).
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		closer()
		return errors.Wrapf(err, "declare exchange %s", p.exchange)
	}
	p.ch, p.closer = ch, closer
	return nil
}

func (p *AMQP) resetLocked() {
	if p.closer != nil {
		p.closer()
	}
	p.ch, p.closer = nil, nil
}
