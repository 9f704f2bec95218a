package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

type PaymentConfig struct {
	PollInterval    time.Duration
	PollTimeout     time.Duration
	LoyaltyPerPoint int64
	// ExpiryCeiling is the booking age past which a stale booking is failed
	// even when the final provider check cannot be completed. Zero keeps
	// retrying on every scan.
	ExpiryCeiling   time.Duration
}

// PaymentService reconciles provider status into booking state. Every status
// change is a conditional update, so concurrent pollers, callbacks, watchers
// and the expiry worker can race safely: only the writer that moves the row
// runs the side effects.
type PaymentService struct {
	Bookings      BookingStore
	Providers     ProviderSource
	Cache         StatusCache
	Loyalty       LoyaltyStore
	Notifications Dispatcher
	Config        PaymentConfig

	mu       sync.Mutex
	base     context.Context
	watchers sync.WaitGroup
}

// Start sets the context background watchers derive from; cancelling it
// stops them.
func (s *PaymentService) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
}

// Wait blocks until every background watcher has returned.
func (s *PaymentService) Wait() {
	s.watchers.Wait()
}

func (s *PaymentService) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return context.Background()
	}
	return s.base
}

func (s *PaymentService) pollInterval() time.Duration {
	if s.Config.PollInterval > 0 {
		return s.Config.PollInterval
	}
	return 3 * time.Second
}

func (s *PaymentService) pollTimeout() time.Duration {
	if s.Config.PollTimeout > 0 {
		return s.Config.PollTimeout
	}
	return 2 * time.Minute
}

func checkResult(b models.Booking, status string) models.CheckResult {
	return models.CheckResult{
		Status:    status,
		PaymentID: b.PaymentID,
		Reference: b.Reference,
		BookingID: b.ID,
	}
}

// pollStatus maps a stored booking status onto what pollers see.
func pollStatus(s domain.BookingStatus) string {
	switch s {
	case domain.BookingPaid:
		return string(domain.ProviderSuccessful)
	case domain.BookingFailed, domain.BookingCancelled:
		return string(domain.ProviderFailed)
	default:
		return string(domain.ProviderPending)
	}
}

// Check reports the payment status for paymentID and finalizes the booking
// when the provider reached a terminal status. reference, when given, must
// belong to the same booking.
func (s *PaymentService) Check(ctx context.Context, paymentID, reference string) (models.CheckResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return models.CheckResult{}, domain.ValidationError{Field: "ref", Msg: "required"}
	}
	b, err := s.Bookings.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return models.CheckResult{}, err
	}
	if ref := strings.ToUpper(strings.TrimSpace(reference)); ref != "" && ref != b.Reference {
		return models.CheckResult{}, domain.ValidationError{Field: "reference", Msg: "does not match payment"}
	}
	if b.Status.Terminal() {
		return checkResult(b, pollStatus(b.Status)), nil
	}

	st, err := s.providerStatus(ctx, b)
	if err != nil {
		utils.Log().Warn("payment status check failed",
			zap.String("payment_id", paymentID),
			zap.String("reference", b.Reference),
			zap.Error(err),
		)
		res := checkResult(b, string(domain.ProviderPending))
		res.Retryable = true
		return res, nil
	}

	final, err := s.Finalize(ctx, b, st)
	if err != nil {
		return models.CheckResult{}, err
	}
	return checkResult(b, pollStatus(final)), nil
}

func (s *PaymentService) providerStatus(ctx context.Context, b models.Booking) (domain.ProviderStatus, error) {
	if s.Cache != nil {
		if st, ok, err := s.Cache.Get(ctx, b.PaymentID); err == nil && ok {
			return st, nil
		}
	}
	provider, err := s.Providers.Get(b.PaymentMethod)
	if err != nil {
		return "", err
	}
	st, err := provider.CheckStatus(ctx, b.PaymentID)
	if err != nil {
		return "", err
	}
	if s.Cache != nil && st == domain.ProviderPending {
		_ = s.Cache.Set(ctx, b.PaymentID, st)
	}
	return st, nil
}

// Finalize applies a provider status to a booking and returns the booking
// status afterwards. Side effects run only for the caller whose update
// changed the row.
func (s *PaymentService) Finalize(ctx context.Context, b models.Booking, st domain.ProviderStatus) (domain.BookingStatus, error) {
	var to domain.BookingStatus
	switch st {
	case domain.ProviderSuccessful:
		to = domain.BookingPaid
	case domain.ProviderFailed:
		to = domain.BookingFailed
	default:
		return b.Status, nil
	}
	if b.Status != domain.BookingPending {
		return b.Status, nil
	}

	changed, err := s.Bookings.Transition(ctx, b.ID, domain.BookingPending, to)
	if err != nil {
		return "", domain.InternalError{Msg: "finalize booking", Err: err}
	}
	if !changed {
		current, err := s.Bookings.GetByReference(ctx, b.Reference)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	}

	if s.Cache != nil {
		_ = s.Cache.Invalidate(ctx, b.PaymentID)
	}
	utils.LogEvent("", "payment", "finalize", "reference="+b.Reference+" status="+string(to))
	if to == domain.BookingPaid {
		b.Status = domain.BookingPaid
		s.AfterPaid(ctx, b)
	}
	return to, nil
}

// AfterPaid credits loyalty points and queues the confirmation. Failures are
// logged and never surface to the caller.
func (s *PaymentService) AfterPaid(ctx context.Context, b models.Booking) {
	ctx = context.WithoutCancel(ctx)

	if s.Loyalty != nil {
		if points := utils.LoyaltyPoints(b.TotalPrice, s.Config.LoyaltyPerPoint); points > 0 {
			credited, err := s.Loyalty.Credit(ctx, b.ID, b.ContactPhone, points)
			switch {
			case err != nil:
				utils.Log().Error("loyalty credit failed", zap.String("reference", b.Reference), zap.Error(err))
			case !credited:
				utils.Log().Info("loyalty already credited", zap.String("reference", b.Reference))
			}
		}
	}

	if s.Notifications != nil {
		n := models.Notification{
			Kind:      models.NotificationBookingConfirmed,
			BookingID: b.ID,
			Reference: b.Reference,
			Phone:     b.ContactPhone,
			Email:     b.ContactEmail,
			Total:     b.TotalPrice,
			Method:    string(b.PaymentMethod),
		}
		if err := s.Notifications.Dispatch(ctx, n); err != nil {
			utils.Log().Error("notification dispatch failed", zap.String("reference", b.Reference), zap.Error(err))
		}
	}
}

// Await polls until the payment is terminal, ctx is cancelled or the poll
// timeout elapses. On timeout the status is EXPIRED and the booking stays
// PENDING for the expiry worker.
func (s *PaymentService) Await(ctx context.Context, paymentID string) (models.CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout())
	defer cancel()

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	var last models.CheckResult
	for {
		res, err := s.Check(ctx, paymentID, "")
		if err != nil {
			if ctx.Err() == nil {
				return models.CheckResult{}, err
			}
		} else {
			last = res
			if res.Status != string(domain.ProviderPending) {
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				last.Status = domain.PollExpired
				last.PaymentID = paymentID
				last.Retryable = false
				return last, nil
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Watch settles an async booking in the background so it does not depend on
// the client polling.
func (s *PaymentService) Watch(b models.Booking) {
	if b.PaymentID == "" {
		return
	}
	ctx := s.baseContext()
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		res, err := s.Await(ctx, b.PaymentID)
		if err != nil && !errors.Is(err, context.Canceled) {
			utils.Log().Warn("settlement watcher stopped",
				zap.String("reference", b.Reference),
				zap.Error(err),
			)
			return
		}
		utils.Log().Debug("settlement watcher done",
			zap.String("reference", b.Reference),
			zap.String("status", res.Status),
		)
	}()
}

// HandleCallback treats a provider callback as a hint and re-checks with the
// provider. The payload itself is never trusted.
func (s *PaymentService) HandleCallback(ctx context.Context, provider, transactionID string) (models.CheckResult, error) {
	if _, ok := domain.ParsePaymentMethod(provider); !ok {
		return models.CheckResult{}, domain.ValidationError{Field: "provider", Msg: "unknown provider"}
	}
	return s.Check(ctx, transactionID, "")
}

// ExpireStale runs one last provider check for a booking left PENDING past
// its TTL. A definitive answer settles the booking; a failed check leaves it
// PENDING for the next scan until it is older than ExpiryCeiling.
func (s *PaymentService) ExpireStale(ctx context.Context, b models.Booking) (domain.BookingStatus, error) {
	if b.Status != domain.BookingPending {
		return b.Status, nil
	}
	if b.PaymentID != "" {
		if provider, err := s.Providers.Get(b.PaymentMethod); err == nil {
			st, err := provider.CheckStatus(ctx, b.PaymentID)
			switch {
			case err == nil && st == domain.ProviderSuccessful:
				return s.Finalize(ctx, b, st)
			case err != nil:
				if s.Config.ExpiryCeiling <= 0 || time.Since(b.CreatedAt) < s.Config.ExpiryCeiling {
					utils.Log().Warn("final status check failed, keeping booking pending",
						zap.String("reference", b.Reference), zap.String("payment_id", b.PaymentID), zap.Error(err))
					return b.Status, nil
				}
				utils.Log().Warn("final status check failed past expiry ceiling",
					zap.String("reference", b.Reference), zap.String("payment_id", b.PaymentID), zap.Error(err))
			}
		}
	}
	return s.Finalize(ctx, b, domain.ProviderFailed)
}
