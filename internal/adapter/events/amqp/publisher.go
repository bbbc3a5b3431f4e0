package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/convqueue/internal/infrastructure/logger"
	"github.com/bnema/convqueue/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "convqueue.events"
	publishTimeout  = 5 * time.Second
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards queue lifecycle events to a topic exchange. The routing
// key is "queue.<event type>".
type Publisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := NewPublisher(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{channel: ch, exchange: exchange}, nil
}

func RoutingKey(t service.EventType) string {
	return "queue." + string(t)
}

func (p *Publisher) Publish(ctx context.Context, event service.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(event.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Type:        string(event.Type),
			Timestamp:   event.At,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Run publishes every event received until ctx is done or events is closed.
// Publish failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, events <-chan service.Event) {
	log := logger.With("amqp")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := p.Publish(pubCtx, ev); err != nil {
				log.Warn().Err(err).Str("event", string(ev.Type)).Msg("event not forwarded")
			}
			cancel()
		}
	}
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
