// README: Availability score aggregate; deltas, badges, and the visibility multiplier are pure functions.
package availability

import (
	"time"

	"serene/internal/types"
)

// SeedScore is the score a provider starts from on their first response
// event.
const SeedScore = 80

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
	ActionMissed  Action = "missed"
)

const (
	BadgeNew              = "new"
	BadgeHighlyResponsive = "highly-responsive"
	BadgeResponsive       = "responsive"
	BadgeLightningFast    = "lightning-fast"
	BadgeQuickResponder   = "quick-responder"
	BadgeReliable         = "reliable"
	BadgeNeedsImprovement = "needs-improvement"
	BadgePenaltyActive    = "penalty-active"
)

// Score is the per-provider responsiveness record. One record per
// provider, created lazily, never deleted. The score only moves on
// explicit response events; there is no decay over time.
type Score struct {
	TherapistID    types.ID
	Score          int // clamped to [0,100]
	TotalRequests  int
	Accepted       int
	Declined       int
	Missed         int
	AvgResponseSec float64
	Penalties      int // consecutive misses
	Badges         []string
	Multiplier     float64
	UpdatedAt      time.Time
}

// NewScore seeds a fresh record for a provider's first response event.
func NewScore(therapistID types.ID) *Score {
	return &Score{
		TherapistID: therapistID,
		Score:       SeedScore,
		Badges:      []string{BadgeNew},
		Multiplier:  VisibilityMultiplier(SeedScore),
	}
}

// Apply folds one response event into the score. Point deltas:
// accept within 60s +7, within 300s +5, later +2; decline 0 (and one
// penalty point forgiven); missed -10, or -20 once three consecutive
// misses have accumulated.
func Apply(sc *Score, action Action, responseTime time.Duration, at time.Time) {
	delta := 0
	switch action {
	case ActionAccept:
		switch {
		case responseTime <= 60*time.Second:
			delta = 7
		case responseTime <= 300*time.Second:
			delta = 5
		default:
			delta = 2
		}
		sc.Accepted++
		sc.Penalties = 0
	case ActionDecline:
		// Declining with a reason is explicitly not punished.
		sc.Declined++
		if sc.Penalties > 0 {
			sc.Penalties--
		}
	case ActionMissed:
		delta = -10
		if sc.Penalties >= 3 {
			delta = -20
		}
		sc.Missed++
		sc.Penalties++
	}

	sc.TotalRequests++
	n := float64(sc.TotalRequests)
	sc.AvgResponseSec = (sc.AvgResponseSec*(n-1) + responseTime.Seconds()) / n

	sc.Score = clamp(sc.Score + delta)
	sc.Badges = ComputeBadges(*sc)
	sc.Multiplier = VisibilityMultiplier(sc.Score)
	sc.UpdatedAt = at
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeBadges derives the badge set from the numeric fields. Badges are
// never stored independently of the fields they summarise.
func ComputeBadges(sc Score) []string {
	if sc.TotalRequests == 0 {
		return []string{BadgeNew}
	}

	var badges []string
	switch {
	case sc.Score >= 90:
		badges = append(badges, BadgeHighlyResponsive)
	case sc.Score >= 80:
		badges = append(badges, BadgeResponsive)
	}
	if sc.AvgResponseSec > 0 {
		switch {
		case sc.AvgResponseSec <= 60:
			badges = append(badges, BadgeLightningFast)
		case sc.AvgResponseSec <= 180:
			badges = append(badges, BadgeQuickResponder)
		}
	}
	if sc.TotalRequests >= 20 {
		rate := float64(sc.Accepted) / float64(sc.TotalRequests)
		if rate >= 0.8 {
			badges = append(badges, BadgeReliable)
		}
	}
	if sc.Score < 40 {
		badges = append(badges, BadgeNeedsImprovement)
	}
	if sc.Penalties >= 3 {
		badges = append(badges, BadgePenaltyActive)
	}
	return badges
}

// VisibilityMultiplier maps a score to the search-ranking multiplier.
// Monotone non-decreasing in the score; this is the sole mechanism by
// which responsiveness affects marketplace visibility.
func VisibilityMultiplier(score int) float64 {
	switch {
	case score >= 90:
		return 1.5
	case score >= 80:
		return 1.2
	case score >= 60:
		return 1.0
	case score >= 40:
		return 0.6
	default:
		return 0.3
	}
}
