package handlers

import (
	"context"
	"database/sql"

	"busticket/internal/services"
	"busticket/internal/worker"
)

// ExpiryStats exposes the expiry worker counters.
type ExpiryStats interface {
	Stats() worker.ExpiryWorkerStats
}

// LoyaltyLedger reads accumulated loyalty points.
type LoyaltyLedger interface {
	Balance(ctx context.Context, phone string) (int64, error)
}

// Handlers holds the services behind the HTTP surface.
type Handlers struct {
	Bookings     services.BookingService
	Payments     *services.PaymentService
	Verification services.VerificationService
	Tickets      services.TicketService
	Auth         services.AuthService
	Seats        services.SeatGuard
	Expiry       ExpiryStats
	Loyalty      LoyaltyLedger
	DB           *sql.DB
}
