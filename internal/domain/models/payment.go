package models

import (
	"time"

	"busticket/internal/domain"
)

// PaymentAttempt correlates a booking with its external transaction.
type PaymentAttempt struct {
	BookingID     int64
	Reference     string
	Method        domain.PaymentMethod
	TransactionID string
	LastStatus    domain.ProviderStatus
	CheckedAt     time.Time
}

// CheckResult is returned to pollers of a payment.
type CheckResult struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	Reference string `json:"reference,omitempty"`
	BookingID int64  `json:"bookingId,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Notification is a customer message emitted after a booking settles.
type Notification struct {
	Kind      string `json:"kind"`
	BookingID int64  `json:"bookingId"`
	Reference string `json:"reference"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Total     int64  `json:"total"`
	Method    string `json:"method"`
}

const NotificationBookingConfirmed = "BOOKING_CONFIRMED"

// Agent is a boarding or back-office user.
type Agent struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
