package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tally/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
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

	// Routing key matches the queue name on a direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishMagicLink queues a sign-in link for delivery.
func (c *Client) PublishMagicLink(ctx context.Context, msg MagicLinkMessage) error {
	body, err := newEnvelope(KindMagicLink, msg)
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published magic link message", "email", msg.Email, "queue", c.queueName)
	return nil
}

// PublishTransactionSync queues a transaction for backup mirroring.
func (c *Client) PublishTransactionSync(ctx context.Context, id int64) error {
	body, err := newEnvelope(KindTransactionSync, TransactionSyncMessage{ID: id})
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message", "transaction_id", id, "queue", c.queueName)
	return nil
}

// PublishTransactionDelete queues a deletion marker for the backup journal.
func (c *Client) PublishTransactionDelete(ctx context.Context, t core.Transaction) error {
	body, err := newEnvelope(KindTransactionDelete, TransactionDeleteMessage{
		ID:          t.ID,
		Owner:       t.Owner,
		Title:       t.Title,
		Category:    t.Category,
		AmountCents: t.Amount.Cents,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction delete message", "transaction_id", t.ID, "queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
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
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Handlers dispatches consumed envelopes by kind. Nil handlers cause the
// corresponding messages to be rejected without requeue.
type Handlers struct {
	MagicLink         func(ctx context.Context, msg MagicLinkMessage) error
	TransactionSync   func(ctx context.Context, msg TransactionSyncMessage) error
	TransactionDelete func(ctx context.Context, msg TransactionDeleteMessage) error
}

// Consume processes queued messages until the context is cancelled.
// Handler errors nack with requeue; undecodable messages are dropped.
func (c *Client) Consume(ctx context.Context, handlers Handlers) error {
	msgs, err := c.channel.Consume(
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

	slog.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := c.dispatch(ctx, delivery.Body, handlers); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message", "error", err)
				delivery.Nack(false, !isPermanent(err))
				continue
			}
			delivery.Ack(false)
		}
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}

func (c *Client) dispatch(ctx context.Context, body []byte, handlers Handlers) error {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return permanentError{err}
	}

	switch env.Kind {
	case KindMagicLink:
		if handlers.MagicLink == nil {
			return permanentError{fmt.Errorf("no handler for %s", env.Kind)}
		}
		var msg MagicLinkMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return permanentError{fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)}
		}
		return handlers.MagicLink(ctx, msg)
	case KindTransactionSync:
		if handlers.TransactionSync == nil {
			return permanentError{fmt.Errorf("no handler for %s", env.Kind)}
		}
		var msg TransactionSyncMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return permanentError{fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)}
		}
		return handlers.TransactionSync(ctx, msg)
	case KindTransactionDelete:
		if handlers.TransactionDelete == nil {
			return permanentError{fmt.Errorf("no handler for %s", env.Kind)}
		}
		var msg TransactionDeleteMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return permanentError{fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)}
		}
		return handlers.TransactionDelete(ctx, msg)
	default:
		return permanentError{fmt.Errorf("unknown message kind %q", env.Kind)}
	}
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
