package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/rabbitmq/amqp091-go"

	"tally/internal/core"
	"tally/internal/log"
)

// Config names the broker topology.
type Config struct {
	URL      string
	Exchange string
	Queue    string
	// DialAttempts bounds connection retries at startup.
	DialAttempts uint
}

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

type Client struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	queue    string
	logger   *log.Logger
}

// NewClient dials the broker, retrying with backoff, and declares a
// durable direct exchange with a durable queue bound under the queue name.
func NewClient(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewDefault()
	}
	logger = logger.WithComponent(log.ComponentAMQP)
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 5
	}

	var conn *amqp091.Connection
	err := retry.Do(
		func() error {
			var err error
			conn, err = amqp091.Dial(cfg.URL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(cfg.DialAttempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("AMQP dial failed, retrying", log.FieldAttempt, n+1, log.FieldError, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, cfg.Exchange, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return &Client{conn: conn, channel: ch, exchange: cfg.Exchange, queue: cfg.Queue, logger: logger}, nil
}

func declare(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on a direct exchange.
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishExpenseEvent sends ev as a persistent JSON message.
func (c *Client) PublishExpenseEvent(ctx context.Context, ev core.ExpenseEvent) error {
	body, err := EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange, // exchange
		c.queue,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.Timestamp,
			MessageId:    ev.ExpenseID + ":" + string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	c.logger.DebugContext(ctx, "Published expense event",
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldUserID, ev.UserID)
	return nil
}

// Handler processes one event. Returning an error requeues the message.
type Handler func(ctx context.Context, ev core.ExpenseEvent) error

// ConsumeExpenseEvents delivers events to handler with manual ack until
// ctx is cancelled or the broker closes the channel.
func (c *Client) ConsumeExpenseEvents(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming expense events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.process(ctx, d.Body, d, handler)
		}
	}
}

// acknowledger is satisfied by amqp091.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// process acks on success, drops malformed payloads and requeues on
// handler failure.
func (c *Client) process(ctx context.Context, body []byte, ack acknowledger, handler Handler) {
	ev, err := DecodeEvent(body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping malformed event", log.FieldError, err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(ctx, ev); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle event",
			log.FieldError, err,
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ExpenseID)
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
	c.logger.DebugContext(ctx, "Processed expense event",
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
