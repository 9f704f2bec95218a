package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"busticket/internal/http/middleware"
	"busticket/internal/services"
)

type passengerRequest struct {
	FullName string     `json:"fullName"`
	Type     string     `json:"type"`
	SeatID   flexString `json:"seatId"`
}

type contactInfo struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type createBookingRequest struct {
	TripID        flexInt            `json:"tripId"`
	Passengers    []passengerRequest `json:"passengers"`
	TotalPrice    flexInt            `json:"totalPrice"`
	PaymentMethod string             `json:"paymentMethod"`
	ContactInfo   contactInfo        `json:"contactInfo"`
}

func (r createBookingRequest) draft() services.BookingDraft {
	d := services.BookingDraft{
		TripID:        int64(r.TripID),
		TotalPrice:    int64(r.TotalPrice),
		PaymentMethod: r.PaymentMethod,
		Phone:         r.ContactInfo.Phone,
		Email:         r.ContactInfo.Email,
	}
	for _, p := range r.Passengers {
		d.Passengers = append(d.Passengers, services.PassengerDraft{
			FullName: p.FullName,
			Type:     p.Type,
			SeatID:   string(p.SeatID),
		})
	}
	return d
}

// CreateBooking handles POST /bookings.
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	svc := h.Bookings
	svc.RequestID = middleware.GetRequestID(c)
	res, err := svc.CreateBooking(c.Request.Context(), req.draft())
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"bookingId":  res.BookingID,
		"reference":  res.Reference,
		"status":     res.Status,
		"paymentId":  res.PaymentID,
		"totalPrice": res.TotalPrice,
		"fee":        res.Fee,
	})
}

// GetBooking handles GET /bookings/:reference.
func (h *Handlers) GetBooking(c *gin.Context) {
	m, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": toBookingView(m)})
}

// TicketPayload handles GET /bookings/:reference/ticket.
func (h *Handlers) TicketPayload(c *gin.Context) {
	m, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	body, err := h.Tickets.Encode(m)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// TicketPDF handles GET /bookings/:reference/ticket.pdf.
func (h *Handlers) TicketPDF(c *gin.Context) {
	m, err := h.Bookings.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	body, name, err := h.Tickets.RenderPDF(m)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
