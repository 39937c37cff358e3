package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"bilancio/internal/core"
)

const (
	RoutingKeyHabitToggled       = "habit.toggled"
	RoutingKeyTransactionCreated = "transaction.created"
	RoutingKeyHabitReminder      = "habit.reminder"
)

type Client struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	exchangeName  string
	reminderQueue string
}

func NewClient(url, exchangeName, reminderQueue string) (*Client, error) {
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
		conn:          conn,
		channel:       channel,
		exchangeName:  exchangeName,
		reminderQueue: reminderQueue,
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
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Only reminders get a queue owned by this service; toggled and
	// created events are for whoever binds to them.
	_, err = c.channel.QueueDeclare(
		c.reminderQueue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.reminderQueue,
		RoutingKeyHabitReminder,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
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

// PublishHabitToggled publishes a habit.toggled event.
func (c *Client) PublishHabitToggled(ctx context.Context, habitID uuid.UUID, date core.Date, status core.ToggleStatus) error {
	msg := NewHabitToggledMessage(habitID, date.String(), string(status))
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, RoutingKeyHabitToggled, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published habit toggled event",
		"habit_id", msg.HabitID,
		"date", msg.Date,
		"status", msg.Status)
	return nil
}

// PublishTransactionCreated publishes a transaction.created event.
func (c *Client) PublishTransactionCreated(ctx context.Context, t core.Transaction) error {
	msg := NewTransactionCreatedMessage(t.ID, t.Amount.Cents, t.OccurredAt.String())
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, RoutingKeyTransactionCreated, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published transaction created event",
		"transaction_id", msg.TransactionID,
		"amount_cents", msg.AmountCents)
	return nil
}

// PublishHabitReminder publishes a habit.reminder event.
func (c *Client) PublishHabitReminder(ctx context.Context, h core.Habit, date core.Date) error {
	msg := NewHabitReminderMessage(h.ID, h.Name, date.String())
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, RoutingKeyHabitReminder, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published habit reminder",
		"habit_id", msg.HabitID,
		"name", msg.Name,
		"date", msg.Date)
	return nil
}

// ConsumeHabitReminders delivers reminder messages to handler until ctx
// is cancelled. Handler errors requeue the message.
func (c *Client) ConsumeHabitReminders(ctx context.Context, handler func(*HabitReminderMessage) error) error {
	msgs, err := c.channel.Consume(
		c.reminderQueue, // queue
		"",              // consumer
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming habit reminders", "queue", c.reminderQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := HabitReminderMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle reminder",
					"error", err,
					"habit_id", msg.HabitID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
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
