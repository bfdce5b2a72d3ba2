package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trackbook/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Message is one user-facing notification. A zero RecipientID routes the
// message to the admin queue instead.
type Message struct {
	RecipientID int64     `json:"recipient_id,omitempty"`
	Kind        string    `json:"kind"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

const (
	KindBookingConfirmed = "booking_confirmed"
	KindPaymentReceived  = "payment_received"
	KindPromotionLive    = "promotion_live"
)

// Publisher writes notifications to RabbitMQ. Publishing is fire and
// forget: errors are logged and returned so callers can ignore them without
// failing the request that triggered the notification.
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	adminQueue string
	logger     *zerolog.Logger
}

func NewPublisher(cfg config.AMQPConfig, logger *zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Durable queues so messages survive broker restarts.
	for _, queue := range []string{cfg.Queue, cfg.AdminQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	logger.Info().Str("queue", cfg.Queue).Msg("notification publisher connected")
	return &Publisher{
		conn:       conn,
		channel:    ch,
		queue:      cfg.Queue,
		adminQueue: cfg.AdminQueue,
		logger:     logger,
	}, nil
}

// Publish enqueues one notification. Nil receiver is a disabled publisher
// and drops the message silently.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p == nil {
		return nil
	}

	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal notification")
		return err
	}

	queue := p.queue
	if msg.RecipientID == 0 {
		queue = p.adminQueue
	}

	err = p.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.SentAt,
		Body:         body,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("queue", queue).Msg("failed to publish notification")
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
