package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"busticket/internal/domain"
	"busticket/internal/http/middleware"
	"busticket/internal/utils"
)

type verifyTicketRequest struct {
	Reference string `json:"reference"`
	Scanned   string `json:"scanned"`
	Board     bool   `json:"board"`
}

// VerifyTicket handles POST /admin/verify-ticket.
func (h *Handlers) VerifyTicket(c *gin.Context) {
	var req verifyTicketRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	input := req.Reference
	if strings.TrimSpace(input) == "" {
		input = req.Scanned
	}

	svc := h.Verification
	svc.RequestID = middleware.GetRequestID(c)
	v, err := svc.Verify(c.Request.Context(), input, req.Board)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if v.Boarded {
		rc := middleware.GetRequestContext(c)
		utils.LogEvent(svc.RequestID, "boarding", "board", "reference="+v.Manifest.Booking.Reference+" agent="+strconv.FormatInt(int64(rc.AgentID), 10))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"booking":        toBookingView(v.Manifest),
		"boarded":        v.Boarded,
		"alreadyBoarded": v.AlreadyBoarded,
	})
}

// CancelBooking handles POST /admin/bookings/:reference/cancel.
func (h *Handlers) CancelBooking(c *gin.Context) {
	svc := h.Bookings
	svc.RequestID = middleware.GetRequestID(c)
	b, err := svc.CancelBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reference": b.Reference, "status": b.Status})
}

// ExpiryWorkerStats handles GET /admin/workers/expiry.
func (h *Handlers) ExpiryWorkerStats(c *gin.Context) {
	if h.Expiry == nil {
		RespondDomainError(c, domain.NotFoundError{Resource: "expiry worker"})
		return
	}
	c.JSON(http.StatusOK, h.Expiry.Stats())
}

// LoyaltyBalance handles GET /admin/loyalty/:phone.
func (h *Handlers) LoyaltyBalance(c *gin.Context) {
	phone := utils.NormalizePhone(c.Param("phone"))
	if phone == "" {
		RespondDomainError(c, domain.ValidationError{Field: "phone", Msg: "required"})
		return
	}
	if h.Loyalty == nil {
		RespondDomainError(c, domain.NotFoundError{Resource: "loyalty ledger"})
		return
	}
	points, err := h.Loyalty.Balance(c.Request.Context(), phone)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone": phone, "points": points})
}
