package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TripSeats handles GET /trips/:id/seats. The list is advisory; the booking
// insert is what actually holds a seat.
func (h *Handlers) TripSeats(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	seats, err := h.Seats.Occupied(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tripId": id, "occupied": seats})
}
