// Package amqp publishes and consumes purchase sync events over RabbitMQ.
// Publishing is guarded by a small circuit breaker so a broker outage slows
// the API down only once, not on every request.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 3
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
)

type Client struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	url          string
	exchangeName string
	queueName    string

	// circuit breaker
	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishPurchaseSync queues a ledger sync for one purchase.
func (c *Client) PublishPurchaseSync(ctx context.Context, id, version int64) error {
	body, err := wrap(TypePurchaseSync, NewPurchaseSyncMessage(id, version))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published purchase sync message",
		"purchase_id", id,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishPurchaseDelete queues removal of a purchase's ledger row.
func (c *Client) PublishPurchaseDelete(ctx context.Context, msg *PurchaseDeleteMessage) error {
	body, err := wrap(TypePurchaseDelete, msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published purchase delete message",
		"purchase_id", msg.ID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish message: circuit breaker is open")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// errDeliveryChannelClosed reports that the broker closed the delivery
// stream, usually because the connection dropped.
var errDeliveryChannelClosed = errors.New("delivery channel closed")

// ConsumeMessages delivers queued envelopes to the matching handler until the
// context is cancelled. Handler errors requeue the delivery; undecodable
// messages are dropped. Returns errDeliveryChannelClosed when the broker
// drops the connection mid-consume.
func (c *Client) ConsumeMessages(
	ctx context.Context,
	syncHandler func(context.Context, *PurchaseSyncMessage) error,
	deleteHandler func(context.Context, *PurchaseDeleteMessage) error,
) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming purchase sync messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveryChannelClosed
			}
			c.handleDelivery(ctx, delivery, syncHandler, deleteHandler)
		}
	}
}

// ConsumeWithReconnect runs the consume loop and survives broker restarts:
// when the connection drops it redials with capped exponential backoff and
// resumes consuming. Returns on context cancellation or a permanent error.
func (c *Client) ConsumeWithReconnect(
	ctx context.Context,
	syncHandler func(context.Context, *PurchaseSyncMessage) error,
	deleteHandler func(context.Context, *PurchaseDeleteMessage) error,
) error {
	consume := func(ctx context.Context) error {
		return c.ConsumeMessages(ctx, syncHandler, deleteHandler)
	}
	return runConsumeLoop(ctx, consume, c.Reconnect)
}

func runConsumeLoop(ctx context.Context, consume, reconnect func(context.Context) error) error {
	for {
		err := consume(ctx)
		if ctx.Err() != nil {
			return err
		}
		if !errors.Is(err, errDeliveryChannelClosed) && !isConnectionError(err) {
			return err
		}
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting", "error", err)
		if rerr := reconnect(ctx); rerr != nil {
			return rerr
		}
	}
}

func (c *Client) handleDelivery(
	ctx context.Context,
	delivery amqp091.Delivery,
	syncHandler func(context.Context, *PurchaseSyncMessage) error,
	deleteHandler func(context.Context, *PurchaseDeleteMessage) error,
) {
	env, err := unwrap(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal envelope", "error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}

	switch env.Type {
	case TypePurchaseSync:
		var msg PurchaseSyncMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal sync message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := syncHandler(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message",
				"error", err, "purchase_id", msg.ID, "version", msg.Version)
			delivery.Nack(false, true) // requeue
			return
		}
	case TypePurchaseDelete:
		var msg PurchaseDeleteMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal delete message", "error", err)
			delivery.Nack(false, false)
			return
		}
		if err := deleteHandler(ctx, &msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle delete message",
				"error", err, "purchase_id", msg.ID)
			delivery.Nack(false, true)
			return
		}
	default:
		slog.WarnContext(ctx, "Unknown message type", "type", env.Type)
		delivery.Nack(false, false)
		return
	}

	delivery.Ack(false)
}

// isCircuitOpen reports whether publishes should be rejected outright. An
// open circuit transitions to half-open once openTimeout has passed, letting
// the next publish probe the broker.
func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateClosed, StateHalfOpen:
		return false
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		if time.Since(c.lastFailure) > openTimeout {
			atomic.StoreInt32(&c.state, StateHalfOpen)
			return false
		}
		return true
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
		slog.Warn("AMQP circuit breaker opened",
			"failures", atomic.LoadInt64(&c.failureCount),
			"exchange", c.exchangeName)
	}
}

// exponentialBackoff returns the reconnect delay for the given attempt,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether an error looks like a broken broker
// connection worth a reconnect, as opposed to a permanent protocol error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Reconnect redials the broker with exponential backoff until the context is
// cancelled or the connection is reestablished.
func (c *Client) Reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		c.mu.Lock()
		c.closeLocked()
		err := c.connect()
		c.mu.Unlock()

		if err == nil {
			slog.InfoContext(ctx, "AMQP reconnected", "attempt", attempt+1)
			c.recordSuccess()
			return nil
		}
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "error", err)
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
