package domain

import "strings"

// ID is used across domain entities.
type ID int64

// BookingStatus is the payment state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingPaid      BookingStatus = "PAID"
	BookingFailed    BookingStatus = "FAILED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Active reports whether the booking still holds its seats.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingPaid
}

// Terminal reports whether no provider status can change the booking anymore.
func (s BookingStatus) Terminal() bool {
	return s == BookingPaid || s == BookingFailed || s == BookingCancelled
}

// CanTransition enforces PENDING->PAID, PENDING->FAILED and any->CANCELLED.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch to {
	case BookingCancelled:
		return s != BookingCancelled
	case BookingPaid, BookingFailed:
		return s == BookingPending
	default:
		return false
	}
}

type PassengerType string

const (
	PassengerAdult PassengerType = "ADULT"
	PassengerChild PassengerType = "CHILD"
)

// ParsePassengerType maps exactly "adult" (any case) to ADULT and everything
// else to CHILD.
func ParsePassengerType(raw string) PassengerType {
	if strings.EqualFold(strings.TrimSpace(raw), "adult") {
		return PassengerAdult
	}
	return PassengerChild
}

// PaymentMethod is the discriminant selecting the settlement rail.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentMTN    PaymentMethod = "MTN"
	PaymentAirtel PaymentMethod = "AIRTEL"
)

// ParsePaymentMethod accepts the labels used by the booking form.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash", "especes", "espèces", "agency":
		return PaymentCash, true
	case "mtn", "mtn_momo", "momo", "mtn-momo":
		return PaymentMTN, true
	case "airtel", "airtel_money", "airtel-money":
		return PaymentAirtel, true
	default:
		return "", false
	}
}

// Async reports whether settlement is confirmed later by a mobile-money provider.
func (m PaymentMethod) Async() bool {
	return m == PaymentMTN || m == PaymentAirtel
}

// ProviderStatus is what a payment provider reports for a transaction.
type ProviderStatus string

const (
	ProviderSuccessful ProviderStatus = "SUCCESSFUL"
	ProviderFailed     ProviderStatus = "FAILED"
	ProviderPending    ProviderStatus = "PENDING"
)

// PollExpired is the caller-visible outcome when polling times out.
const PollExpired = "EXPIRED"

const TripScheduled = "SCHEDULED"

// RequestContext carries authenticated agent info when available.
type RequestContext struct {
	AgentID ID     `json:"agentId"`
	Role    string `json:"role"`
}
