package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intconfig "busticket/internal/config"
	h "busticket/internal/http/handlers"
	"busticket/internal/http/middleware"
	"busticket/internal/services"
	"busticket/internal/utils"
)

func NewRouter(env intconfig.Env, handlers *h.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Log().Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"success": false,
			"error":   "route not found",
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	})

	r.GET("/health", h.Health)
	r.GET("/db-check", handlers.DBCheck)
	r.GET("/routes", h.Routes)

	bookings := r.Group("/bookings")
	bookings.POST("", handlers.CreateBooking)
	bookings.GET("/:reference", handlers.GetBooking)
	bookings.GET("/:reference/ticket", handlers.TicketPayload)
	bookings.GET("/:reference/ticket.pdf", handlers.TicketPDF)

	payment := r.Group("/payment")
	payment.GET("/check", handlers.CheckPayment)
	payment.GET("/await", handlers.AwaitPayment)
	payment.POST("/callback/:provider", handlers.PaymentCallback)

	r.GET("/trips/:id/seats", handlers.TripSeats)

	r.POST("/auth/login", handlers.Login)

	admin := r.Group("/admin", middleware.RequireAuth(handlers.Auth), middleware.RequireRoles(services.RoleAgent, services.RoleAdmin))
	admin.POST("/verify-ticket", handlers.VerifyTicket)
	admin.POST("/bookings/:reference/cancel", handlers.CancelBooking)
	admin.GET("/workers/expiry", handlers.ExpiryWorkerStats)
	admin.GET("/loyalty/:phone", handlers.LoyaltyBalance)
	admin.POST("/agents", middleware.RequireRoles(services.RoleAdmin), handlers.CreateAgent)

	h.SetRouter(r)
	return r
}
