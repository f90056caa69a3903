// README: Location sharing handlers for home-visit bookings.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serene/internal/modules/booking"
	"serene/internal/modules/locationverify"
	"serene/internal/types"
)

type shareLocationRequest struct {
	Latitude   float64 `json:"latitude" binding:"required"`
	Longitude  float64 `json:"longitude" binding:"required"`
	Accuracy   float64 `json:"accuracy" binding:"required"`
	CapturedAt int64   `json:"capturedAt" binding:"required"` // unix millis
}

func (s *Server) handleShareLocation(c *gin.Context) {
	var req shareLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	bookingID := types.ID(c.Param("id"))

	b, err := s.booking.Get(ctx, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	rec, err := s.location.ShareLocation(ctx, bookingID, b.ChatID, locationverify.Capture{
		Lat:        req.Latitude,
		Lng:        req.Longitude,
		Accuracy:   req.Accuracy,
		CapturedAt: time.UnixMilli(req.CapturedAt),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookingId": string(bookingID),
		"recordId":  string(rec.ID),
		"accuracy":  rec.Accuracy,
		"quality":   locationverify.ClassifyAccuracy(rec.Accuracy),
		"address":   rec.Address,
	})
}

func (s *Server) handleDenyLocation(c *gin.Context) {
	ctx := c.Request.Context()
	bookingID := types.ID(c.Param("id"))

	b, err := s.booking.Get(ctx, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.location.CancelForDenial(ctx, bookingID, b.ChatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookingId": string(bookingID),
		"status":    string(booking.StatusCancelledLocationDenied),
	})
}

type rejectLocationRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectLocation(c *gin.Context) {
	var req rejectLocationRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	bookingID := types.ID(c.Param("id"))

	b, err := s.booking.Get(ctx, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.location.RejectByProvider(ctx, bookingID, b.ChatID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookingId": string(bookingID),
		"status":    string(booking.StatusRejectedLocation),
	})
}
