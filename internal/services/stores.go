package services

import (
	"context"
	"time"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/payment"
	"busticket/internal/repositories"
)

// Storage seams. The repositories package satisfies them against MySQL and
// Redis; tests use in-memory fakes.

type TripStore interface {
	GetTrip(ctx context.Context, id int64) (models.Trip, error)
}

type SeatStore interface {
	OccupiedSeats(ctx context.Context, tripID int64) ([]int, error)
}

type BookingStore interface {
	Begin(ctx context.Context) (repositories.BookingWriter, error)
	GetByReference(ctx context.Context, reference string) (models.Booking, error)
	GetByPaymentID(ctx context.Context, paymentID string) (models.Booking, error)
	GetManifest(ctx context.Context, reference string) (models.Manifest, error)
	Transition(ctx context.Context, bookingID int64, from, to domain.BookingStatus) (bool, error)
	Cancel(ctx context.Context, bookingID int64) (bool, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	MarkBoarded(ctx context.Context, bookingID int64, at time.Time) (bool, error)
}

type LoyaltyStore interface {
	Credit(ctx context.Context, bookingID int64, phone string, points int64) (bool, error)
}

type StatusCache interface {
	Get(ctx context.Context, paymentID string) (domain.ProviderStatus, bool, error)
	Set(ctx context.Context, paymentID string, status domain.ProviderStatus) error
	Invalidate(ctx context.Context, paymentID string) error
}

// Dispatcher hands a notification to the delivery pipeline without waiting
// for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

type ProviderSource interface {
	Get(method domain.PaymentMethod) (payment.Provider, error)
}

type AgentStore interface {
	GetByEmail(ctx context.Context, email string) (models.Agent, error)
	Create(ctx context.Context, a models.Agent) (int64, error)
}

var (
	_ TripStore      = repositories.TripsRepository{}
	_ SeatStore      = repositories.BookingSeatRepository{}
	_ BookingStore   = repositories.BookingRepository{}
	_ LoyaltyStore   = repositories.LoyaltyRepository{}
	_ StatusCache    = repositories.PaymentStatusCache{}
	_ AgentStore     = repositories.AgentRepository{}
	_ ProviderSource = (*payment.Registry)(nil)
)
