package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/phpdave11/gofpdf"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

type TicketRoute struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type TicketVehicle struct {
	Name  string `json:"name"`
	Plate string `json:"plate"`
}

type TicketPassenger struct {
	FullName string `json:"fullName"`
	Type     string `json:"type"`
	Seat     int    `json:"seat"`
}

// TicketPayload is the QR content of a ticket. Field order and passenger
// order are fixed so the same booking always encodes to the same bytes.
type TicketPayload struct {
	Reference     string            `json:"reference"`
	Route         TicketRoute       `json:"route"`
	DepartureDate string            `json:"departureDate"`
	DepartureTime string            `json:"departureTime"`
	Vehicle       TicketVehicle     `json:"vehicle"`
	Passengers    []TicketPassenger `json:"passengers"`
	TotalPrice    int64             `json:"totalPrice"`
	PaymentMethod string            `json:"paymentMethod"`
}

type TicketService struct{}

func (TicketService) Payload(m models.Manifest) TicketPayload {
	ps := make([]TicketPassenger, 0, len(m.Passengers))
	for _, p := range m.Passengers {
		ps = append(ps, TicketPassenger{FullName: p.FullName, Type: string(p.Type), Seat: p.SeatNumber})
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Seat < ps[j].Seat })

	return TicketPayload{
		Reference:     m.Booking.Reference,
		Route:         TicketRoute{Origin: m.Trip.Route.Origin, Destination: m.Trip.Route.Destination},
		DepartureDate: utils.FormatDate(m.Trip.DepartureAt),
		DepartureTime: utils.FormatClock(m.Trip.DepartureAt),
		Vehicle:       TicketVehicle{Name: m.Trip.Bus.Name, Plate: m.Trip.Bus.PlateNumber},
		Passengers:    ps,
		TotalPrice:    m.Booking.TotalPrice,
		PaymentMethod: string(m.Booking.PaymentMethod),
	}
}

// Encode serializes the payload for the QR code.
func (s TicketService) Encode(m models.Manifest) ([]byte, error) {
	return json.Marshal(s.Payload(m))
}

// RenderPDF draws a printable ticket. Only PAID bookings get one.
func (s TicketService) RenderPDF(m models.Manifest) ([]byte, string, error) {
	if m.Booking.Status != domain.BookingPaid {
		return nil, "", domain.ConflictError{Resource: "ticket", Msg: "booking is not paid"}
	}
	p := s.Payload(m)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+p.Reference, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET")
	pdf.Ln(12)

	pdf.SetFont("Courier", "B", 16)
	pdf.Cell(0, 9, p.Reference)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Route       : %s -> %s", safe(p.Route.Origin, "-"), safe(p.Route.Destination, "-")),
		fmt.Sprintf("Departure   : %s %s", p.DepartureDate, p.DepartureTime),
		fmt.Sprintf("Bus         : %s (%s)", safe(p.Vehicle.Name, "-"), safe(p.Vehicle.Plate, "-")),
		fmt.Sprintf("Payment     : %s", p.PaymentMethod),
		fmt.Sprintf("Total       : %s", utils.FormatXAF(p.TotalPrice)),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Passengers")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, ps := range p.Passengers {
		pdf.Cell(0, 6, fmt.Sprintf("Seat %-3d  %s (%s)", ps.Seat, ps.FullName, strings.ToLower(ps.Type)))
		pdf.Ln(6)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Show this ticket to the agent before boarding. One scan per booking.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), "ticket-" + p.Reference + ".pdf", nil
}

func safe(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
