package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// Notifier sends one customer message.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// WebhookNotifier posts notifications to SMS and email gateway webhooks.
// An empty URL skips that channel.
type WebhookNotifier struct {
	SMSURL   string
	EmailURL string
	Client   *http.Client
}

type webhookMessage struct {
	To        string `json:"to"`
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

func confirmationText(n models.Notification) string {
	return fmt.Sprintf("Booking %s confirmed. Total paid: %s (%s). Show this reference when boarding.",
		n.Reference, utils.FormatXAF(n.Total), n.Method)
}

func (w WebhookNotifier) Notify(ctx context.Context, n models.Notification) error {
	text := confirmationText(n)
	if w.SMSURL != "" && n.Phone != "" {
		if err := w.post(ctx, w.SMSURL, webhookMessage{To: n.Phone, Reference: n.Reference, Text: text}); err != nil {
			return fmt.Errorf("sms: %w", err)
		}
	}
	if w.EmailURL != "" && n.Email != "" {
		if err := w.post(ctx, w.EmailURL, webhookMessage{To: n.Email, Reference: n.Reference, Text: text}); err != nil {
			return fmt.Errorf("email: %w", err)
		}
	}
	return nil
}

func (w WebhookNotifier) post(ctx context.Context, url string, msg webhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return utils.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return utils.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return utils.Permanent(fmt.Errorf("webhook rejected message: http %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook unavailable: http %d", resp.StatusCode)
	}
}

// LogNotifier writes notifications to the log when no gateway is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n models.Notification) error {
	utils.Log().Info("notification",
		zap.String("kind", n.Kind),
		zap.String("reference", n.Reference),
		zap.String("phone", n.Phone),
		zap.String("email", n.Email),
		zap.String("text", confirmationText(n)),
	)
	return nil
}
