// README: Booking lifecycle handlers.
package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serene/internal/modules/availability"
	"serene/internal/modules/booking"
	"serene/internal/types"
)

type createBookingRequest struct {
	CustomerID   string `json:"customerId"`
	ProviderID   string `json:"providerId" binding:"required"`
	ProviderType string `json:"providerType" binding:"required"`
	ChatID       string `json:"chatId"`
	TotalPrice   int64  `json:"totalPrice" binding:"required"`
	Currency     string `json:"currency"`
	ServiceType  string `json:"serviceType"`
	DurationMin  int    `json:"durationMin"`
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cmd := booking.CreateCommand{
		ProviderID:   types.ID(req.ProviderID),
		ProviderType: req.ProviderType,
		ChatID:       types.ID(req.ChatID),
		TotalPrice:   types.Money{Amount: req.TotalPrice, Currency: req.Currency},
		ServiceType:  req.ServiceType,
		DurationMin:  req.DurationMin,
	}
	if req.CustomerID != "" {
		cid := types.ID(req.CustomerID)
		cmd.CustomerID = &cid
	}

	id, err := s.booking.Create(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	// Tell the scoring engine a dispatch is now awaiting the provider.
	if err := s.availability.RecordDispatch(c.Request.Context(), id, cmd.ProviderID); err != nil {
		log.Printf("record dispatch for booking %s: %v", id, err)
	}

	c.JSON(http.StatusCreated, gin.H{"bookingId": string(id), "status": string(booking.StatusPending)})
}

func (s *Server) handleGetBooking(c *gin.Context) {
	b, err := s.booking.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingView(b))
}

type providerActionRequest struct {
	ProviderID string `json:"providerId" binding:"required"`
	Reason     string `json:"reason"`
}

func (s *Server) handleAcceptBooking(c *gin.Context) {
	var req providerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	bookingID := types.ID(c.Param("id"))
	providerID := types.ID(req.ProviderID)

	rec, err := s.booking.Accept(ctx, booking.AcceptCommand{BookingID: bookingID, ProviderID: providerID})
	if err != nil {
		respondError(c, err)
		return
	}

	b, err := s.booking.Get(ctx, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Report the response to the scoring engine; scoring failures must
	// not undo an accepted booking.
	if _, err := s.availability.RecordResponse(ctx, bookingID, providerID, availability.ActionAccept, responseTime(b)); err != nil {
		log.Printf("record accept response for booking %s: %v", bookingID, err)
	}

	// Home visits require the customer to share a live location before
	// the session proceeds.
	if b.ProviderType == booking.ProviderTypeTherapist {
		s.location.ScheduleTimeout(bookingID, b.ChatID, nil, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingId":        string(bookingID),
		"status":           string(booking.StatusAccepted),
		"commissionAmount": rec.CommissionAmount,
		"providerPayout":   rec.ProviderPayout,
	})
}

func (s *Server) handleDeclineBooking(c *gin.Context) {
	var req providerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	bookingID := types.ID(c.Param("id"))
	providerID := types.ID(req.ProviderID)

	b, err := s.booking.Get(ctx, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.booking.Reject(ctx, bookingID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	if _, err := s.availability.RecordResponse(ctx, bookingID, providerID, availability.ActionDecline, responseTime(b)); err != nil {
		log.Printf("record decline response for booking %s: %v", bookingID, err)
	}

	c.JSON(http.StatusOK, gin.H{"bookingId": string(bookingID), "status": string(booking.StatusRejected)})
}

func (s *Server) handleConfirmBooking(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if err := s.booking.Confirm(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingId": string(id), "status": string(booking.StatusConfirmed)})
}

func (s *Server) handleCompleteBooking(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if err := s.booking.Complete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingId": string(id), "status": string(booking.StatusCompleted)})
}

type cancelBookingRequest struct {
	Reason   string `json:"reason"`
	CausedBy string `json:"causedBy"`
}

func (s *Server) handleCancelBooking(c *gin.Context) {
	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)
	if req.CausedBy == "" {
		req.CausedBy = "customer"
	}

	id := types.ID(c.Param("id"))
	err := s.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		To:        booking.StatusCancelledOther,
		Reason:    req.Reason,
		CausedBy:  req.CausedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.location.CancelTimeout(id)
	c.JSON(http.StatusOK, gin.H{"bookingId": string(id), "status": string(booking.StatusCancelledOther)})
}

func responseTime(b *booking.Booking) time.Duration {
	return time.Since(b.CreatedAt)
}

func bookingView(b *booking.Booking) gin.H {
	view := gin.H{
		"bookingId":      string(b.ID),
		"providerId":     string(b.ProviderID),
		"providerType":   b.ProviderType,
		"status":         string(b.Status),
		"totalPrice":     b.TotalPrice.Amount,
		"currency":       b.TotalPrice.Currency,
		"serviceType":    b.ServiceType,
		"durationMin":    b.DurationMin,
		"locationShared": b.LocationShared,
		"createdAt":      b.CreatedAt,
	}
	if b.CustomerID != nil {
		view["customerId"] = string(*b.CustomerID)
	}
	if b.CancelReason != nil {
		view["cancelReason"] = *b.CancelReason
	}
	return view
}
