// Package queue publishes session-completed events to RabbitMQ for the
// caregiver summary workers. Publishing is a post-commit side channel: a
// publish failure is logged and dropped, never propagated back into the
// session commit.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SessionQueueName is the durable queue session-completed events land on.
const SessionQueueName = "brightwords.sessions"

// Events older than a day are useless to summary workers.
const sessionMessageTTL = int32(24 * 60 * 60 * 1000)

// Connection manages the RabbitMQ connection and channel, reconnecting
// with exponential backoff when the broker drops us.
type Connection struct {
	url     string
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Connect dials the broker and declares the session queue.
func Connect(amqpURL string) (*Connection, error) {
	c := &Connection{url: amqpURL}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		SessionQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": sessionMessageTTL},
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare session queue: %w", err)
	}

	c.conn = conn
	c.channel = ch
	go c.watchClose(conn)

	slog.Info("connected to rabbitmq", "host", hostOnly(c.url))
	return nil
}

// watchClose redials after an abnormal connection close.
func (c *Connection) watchClose(conn *amqp.Connection) {
	errc := conn.NotifyClose(make(chan *amqp.Error, 1))
	amqpErr := <-errc
	if amqpErr == nil {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	slog.Warn("rabbitmq connection lost, reconnecting", "error", amqpErr)

	backoff := time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}

		if err := c.dial(); err != nil {
			slog.Error("rabbitmq reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		slog.Info("rabbitmq reconnected", "attempts", attempt)
		return
	}

	slog.Error("giving up on rabbitmq after 10 reconnect attempts")
}

// Close shuts the connection down for good; no reconnect will follow.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// IsConnected reports whether the broker connection is live.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Connection) publishJSON(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("publish to %s: channel not open", queue)
	}

	return ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// hostOnly strips credentials from an AMQP URL for logging.
func hostOnly(amqpURL string) string {
	u, err := url.Parse(amqpURL)
	if err != nil {
		return "invalid-url"
	}
	return u.Host
}
