package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"busticket/internal/domain"
	"busticket/internal/http/middleware"
	"busticket/internal/utils"
)

// CheckPayment handles GET /payment/check?ref=<paymentId>&reference=<bookingRef>.
func (h *Handlers) CheckPayment(c *gin.Context) {
	res, err := h.Payments.Check(c.Request.Context(), c.Query("ref"), c.Query("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AwaitPayment handles GET /payment/await?ref=. It holds the request until
// the payment settles, the poll timeout elapses or the client goes away.
func (h *Handlers) AwaitPayment(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		RespondDomainError(c, domain.ValidationError{Field: "ref", Msg: "required"})
		return
	}
	res, err := h.Payments.Await(c.Request.Context(), ref)
	if err != nil {
		if c.Request.Context().Err() != nil {
			c.Abort()
			return
		}
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// callbackBody covers the MTN and Airtel callback shapes.
type callbackBody struct {
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	Transaction   struct {
		ID string `json:"id"`
	} `json:"transaction"`
}

func (b callbackBody) id() string {
	for _, v := range []string{b.TransactionID, b.ReferenceID, b.Transaction.ID} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// PaymentCallback handles POST /payment/callback/:provider. The body only
// tells us which transaction to re-check.
func (h *Handlers) PaymentCallback(c *gin.Context) {
	provider := c.Param("provider")
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "body", Msg: "unreadable"})
		return
	}
	var body callbackBody
	if err := json.Unmarshal(raw, &body); err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "body", Msg: "invalid payload", Err: err})
		return
	}
	txID := body.id()
	if txID == "" {
		txID = strings.TrimSpace(c.Query("ref"))
	}
	if txID == "" {
		RespondDomainError(c, domain.ValidationError{Field: "transactionId", Msg: "required"})
		return
	}

	utils.Log().Info("payment callback",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("provider", provider),
		zap.String("payment_id", txID),
	)
	res, err := h.Payments.HandleCallback(c.Request.Context(), provider, txID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
