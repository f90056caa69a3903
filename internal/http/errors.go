// README: HTTP error mapping for engine errors.
package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"serene/internal/modules/booking"
	"serene/internal/modules/locationverify"
)

// respondError maps engine errors onto HTTP responses. Authorization
// denials surface their reason verbatim (the strings are written to be
// display-safe); datastore and consistency failures surface a generic
// message with the cause kept to the logs.
func respondError(c *gin.Context, err error) {
	var authz *booking.AuthzError
	if errors.As(err, &authz) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":    authz.Decision.Reason,
			"severity": string(authz.Decision.Severity),
		})
		return
	}

	switch {
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrBadRequest),
		errors.Is(err, locationverify.ErrStaleCapture),
		errors.Is(err, locationverify.ErrBadCoordinates),
		errors.Is(err, locationverify.ErrBadAccuracy):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
	}
}
