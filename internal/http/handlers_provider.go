// README: Provider-facing read endpoints: availability score and settlement.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serene/internal/modules/commission"
	"serene/internal/types"
)

func (s *Server) handleProviderScore(c *gin.Context) {
	sc, err := s.availability.GetScore(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"therapistId":          string(sc.TherapistID),
		"score":                sc.Score,
		"totalRequests":        sc.TotalRequests,
		"accepted":             sc.Accepted,
		"declined":             sc.Declined,
		"missed":               sc.Missed,
		"avgResponseSec":       sc.AvgResponseSec,
		"penalties":            sc.Penalties,
		"badges":               sc.Badges,
		"visibilityMultiplier": sc.Multiplier,
	})
}

func (s *Server) handleProviderSettlement(c *gin.Context) {
	providerID := types.ID(c.Param("id"))
	records, err := s.commission.ListByProvider(c.Request.Context(), providerID)
	if err != nil {
		respondError(c, err)
		return
	}

	st := commission.Settle(records, s.adminShare, s.promoterRate)
	divergent := make([]string, 0, len(st.Divergent))
	for _, id := range st.Divergent {
		divergent = append(divergent, string(id))
	}

	c.JSON(http.StatusOK, gin.H{
		"providerId":  string(providerID),
		"records":     len(records),
		"volume":      st.Volume,
		"gross":       st.Gross,
		"adminFee":    st.AdminFee,
		"promoterNet": st.PromoterNet,
		"divergent":   divergent,
	})
}
