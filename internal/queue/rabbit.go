package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// RabbitQueue publishes notifications to a durable RabbitMQ queue and
// consumes them with manual acks.
type RabbitQueue struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitQueue dials the broker and declares the queue.
func NewRabbitQueue(url string) (*RabbitQueue, error) {
	q := &RabbitQueue{url: url}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RabbitQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	q.conn, q.ch = conn, ch
	return nil
}

// Dispatch publishes a persistent message, reconnecting once if the channel
// was closed underneath us.
func (q *RabbitQueue) Dispatch(ctx context.Context, n models.Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    n.Kind + ":" + n.Reference,
		Body:         body,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ch == nil || q.ch.IsClosed() {
		if err := q.connect(); err != nil {
			return err
		}
	}
	err = q.ch.PublishWithContext(ctx, "", NotificationQueue, false, false, pub)
	if errors.Is(err, amqp.ErrClosed) {
		if err = q.connect(); err == nil {
			err = q.ch.PublishWithContext(ctx, "", NotificationQueue, false, false, pub)
		}
	}
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Consume runs h for every delivery until ctx is done, reconnecting with
// backoff when the broker goes away. Failed messages are rejected without
// requeue.
func (q *RabbitQueue) Consume(ctx context.Context, prefetch int, h Handler) error {
	backoff := time.Second
	for {
		err := q.consumeOnce(ctx, prefetch, h)
		if ctx.Err() != nil {
			return nil
		}
		utils.Log().Warn("notification consumer interrupted", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (q *RabbitQueue) consumeOnce(ctx context.Context, prefetch int, h Handler) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			utils.Log().Warn("rabbitmq qos failed", zap.Error(err))
		}
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	for d := range msgs {
		n, err := decode(d.Body)
		if err == nil {
			err = h(ctx, n)
		}
		if err != nil {
			utils.Log().Error("notification rejected", zap.String("message_id", d.MessageId), zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
