// Package queue carries booking notifications from the request path to the
// delivery workers, over RabbitMQ or an in-process channel.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"busticket/internal/domain/models"
)

// NotificationQueue is the durable queue confirmed bookings are published to.
const NotificationQueue = "booking.notifications"

// ErrQueueFull is returned by the in-process queue when its buffer is full.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned when dispatching to a closed queue.
var ErrClosed = errors.New("notification queue closed")

// Handler delivers one notification. A non-nil error drops the message.
type Handler func(ctx context.Context, n models.Notification) error

func encode(n models.Notification) ([]byte, error) {
	return json.Marshal(n)
}

func decode(body []byte) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return models.Notification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	if n.Reference == "" || n.Kind == "" {
		return models.Notification{}, fmt.Errorf("notification without kind or reference")
	}
	return n, nil
}
