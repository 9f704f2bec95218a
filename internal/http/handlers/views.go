package handlers

import (
	"time"

	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

type passengerView struct {
	FullName string `json:"fullName"`
	Type     string `json:"type"`
	Seat     int    `json:"seat"`
}

type bookingView struct {
	BookingID     int64           `json:"bookingId"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentID     string          `json:"paymentId,omitempty"`
	BasePrice     int64           `json:"basePrice"`
	Fee           int64           `json:"fee"`
	TotalPrice    int64           `json:"totalPrice"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	BoardedAt     *time.Time      `json:"boardedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Trip          tripView        `json:"trip"`
	Passengers    []passengerView `json:"passengers"`
}

type tripView struct {
	ID            int64  `json:"id"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departureDate"`
	DepartureTime string `json:"departureTime"`
	BusName       string `json:"busName"`
	PlateNumber   string `json:"plateNumber"`
	Capacity      int    `json:"capacity"`
	Status        string `json:"status"`
}

func toBookingView(m models.Manifest) bookingView {
	b := m.Booking
	out := bookingView{
		BookingID:     b.ID,
		Reference:     b.Reference,
		Status:        string(b.Status),
		PaymentMethod: string(b.PaymentMethod),
		PaymentID:     b.PaymentID,
		BasePrice:     b.BasePrice,
		Fee:           b.Fee,
		TotalPrice:    b.TotalPrice,
		Phone:         b.ContactPhone,
		Email:         b.ContactEmail,
		BoardedAt:     b.BoardedAt,
		CreatedAt:     b.CreatedAt,
		Trip: tripView{
			ID:            m.Trip.ID,
			Origin:        m.Trip.Route.Origin,
			Destination:   m.Trip.Route.Destination,
			DepartureDate: utils.FormatDate(m.Trip.DepartureAt),
			DepartureTime: utils.FormatClock(m.Trip.DepartureAt),
			BusName:       m.Trip.Bus.Name,
			PlateNumber:   m.Trip.Bus.PlateNumber,
			Capacity:      m.Trip.Bus.Capacity,
			Status:        string(m.Trip.Status),
		},
		Passengers: make([]passengerView, 0, len(m.Passengers)),
	}
	for _, p := range m.Passengers {
		out.Passengers = append(out.Passengers, passengerView{FullName: p.FullName, Type: string(p.Type), Seat: p.SeatNumber})
	}
	return out
}
