// README: Commission record aggregate and the revenue-split rule.
package commission

import (
	"math"
	"time"

	"serene/internal/types"
)

// DefaultRate is the platform share of a booking's price: 30% platform,
// 70% provider.
const DefaultRate = 0.30

const StatusAccepted = "accepted"

// Record is an immutable ledger entry. At most one record exists per
// booking id; it is never updated after creation.
type Record struct {
	ID               types.ID
	BookingID        types.ID
	ProviderID       types.ID
	ServiceAmount    int64
	CommissionRate   float64
	CommissionAmount int64 // admin share
	ProviderPayout   int64
	Status           string
	CreatedAt        time.Time
}

// Split divides a service amount between platform and provider. Rounding
// lands on the admin share; the remainder goes to the payout, so the two
// always sum back to the service amount.
func Split(serviceAmount int64, rate float64) (adminCommission, providerPayout int64) {
	adminCommission = int64(math.Round(float64(serviceAmount) * rate))
	providerPayout = serviceAmount - adminCommission
	return adminCommission, providerPayout
}
