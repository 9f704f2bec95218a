package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// NotificationService delivers queued notifications with retries.
type NotificationService struct {
	Notifier Notifier
	Retrier  *utils.Retrier
}

func NewNotificationService(n Notifier) NotificationService {
	if n == nil {
		n = LogNotifier{}
	}
	return NotificationService{Notifier: n, Retrier: utils.NewRetrier(utils.DefaultRetryConfig())}
}

// Deliver is the queue handler. It returns the last error once retries are
// exhausted so the queue can drop the message.
func (s NotificationService) Deliver(ctx context.Context, n models.Notification) error {
	retrier := s.Retrier
	if retrier == nil {
		retrier = utils.NewRetrier(utils.DefaultRetryConfig())
	}
	attempts, err := retrier.Do(ctx, func(ctx context.Context) error {
		return s.Notifier.Notify(ctx, n)
	}, func(attempt int, err error, next time.Duration) {
		utils.Log().Warn("notification attempt failed",
			zap.String("reference", n.Reference),
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err),
		)
	})
	if err != nil {
		utils.Log().Error("notification delivery failed",
			zap.String("reference", n.Reference),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return err
	}
	utils.LogEvent("", "notify", "deliver", "reference="+n.Reference+" kind="+n.Kind)
	return nil
}
