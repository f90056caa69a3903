// README: API surface; registers HTTP routes and delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"

	"serene/internal/http/middleware"
	"serene/internal/infra"
	"serene/internal/modules/availability"
	"serene/internal/modules/booking"
	"serene/internal/modules/commission"
	"serene/internal/modules/locationverify"
)

type ServerDeps struct {
	Booking      *booking.Service
	Location     *locationverify.Service
	Availability *availability.Service
	Commission   *commission.Service
	Verifier     infra.TokenVerifier

	AdminShare   float64
	PromoterRate float64
}

type Server struct {
	booking      *booking.Service
	location     *locationverify.Service
	availability *availability.Service
	commission   *commission.Service
	verifier     infra.TokenVerifier

	adminShare   float64
	promoterRate float64
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		booking:      deps.Booking,
		location:     deps.Location,
		availability: deps.Availability,
		commission:   deps.Commission,
		verifier:     deps.Verifier,
		adminShare:   deps.AdminShare,
		promoterRate: deps.PromoterRate,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.verifier))

	api.POST("/bookings", s.handleCreateBooking)
	api.GET("/bookings/:id", s.handleGetBooking)
	api.POST("/bookings/:id/accept", s.handleAcceptBooking)
	api.POST("/bookings/:id/decline", s.handleDeclineBooking)
	api.POST("/bookings/:id/confirm", s.handleConfirmBooking)
	api.POST("/bookings/:id/complete", s.handleCompleteBooking)
	api.POST("/bookings/:id/cancel", s.handleCancelBooking)

	api.POST("/bookings/:id/location", s.handleShareLocation)
	api.POST("/bookings/:id/location/deny", s.handleDenyLocation)
	api.POST("/bookings/:id/location/reject", s.handleRejectLocation)

	api.GET("/providers/:id/score", s.handleProviderScore)
	api.GET("/providers/:id/settlement", s.handleProviderSettlement)

	return r
}
