package models

import (
	"time"

	"busticket/internal/domain"
)

// Booking is a reservation of one or more seats on a trip.
type Booking struct {
	ID            int64
	Reference     string
	TripID        int64
	BasePrice     int64
	Fee           int64
	TotalPrice    int64
	Status        domain.BookingStatus
	PaymentMethod domain.PaymentMethod
	PaymentID     string
	ContactPhone  string
	ContactEmail  string
	BoardedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Passenger struct {
	ID         int64
	BookingID  int64
	FullName   string
	Type       domain.PassengerType
	SeatNumber int
}

// PassengerInput is a validated passenger line of a booking request.
type PassengerInput struct {
	FullName   string
	Type       domain.PassengerType
	SeatNumber int
}

// BookingRequest is the normalized input of the orchestrator.
type BookingRequest struct {
	TripID        int64
	Passengers    []PassengerInput
	TotalPrice    int64
	PaymentMethod domain.PaymentMethod
	Phone         string
	Email         string
}

// Seats lists the requested seat numbers in request order.
func (r BookingRequest) Seats() []int {
	out := make([]int, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		out = append(out, p.SeatNumber)
	}
	return out
}

type BookingResult struct {
	BookingID  int64                `json:"bookingId"`
	Reference  string               `json:"reference"`
	Status     domain.BookingStatus `json:"status"`
	PaymentID  string               `json:"paymentId,omitempty"`
	TotalPrice int64                `json:"totalPrice"`
	Fee        int64                `json:"fee"`
}

// Manifest is a booking with everything printed on a ticket.
type Manifest struct {
	Booking    Booking
	Trip       Trip
	Passengers []Passenger
}
