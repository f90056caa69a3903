// README: Promoter settlement; a pure fold over commission records.
package commission

import (
	"math"

	"serene/internal/types"
)

// Settlement is the promoter-side aggregation of a set of commission
// records. It is stateless and safe to recompute on every read.
type Settlement struct {
	Volume      int64 // total service amount across records
	Gross       int64 // total commission collected
	AdminFee    int64
	PromoterNet int64
	// Divergent lists bookings whose persisted commission amount does not
	// match the amount recomputed from the persisted rate. The persisted
	// value stays authoritative; divergence is flagged for audit, never
	// silently averaged.
	Divergent []types.ID
}

// Settle folds records into promoter totals. A missing or zero
// commissionAmount falls back to round(serviceAmount * promoterRate) to
// tolerate partially populated records.
func Settle(records []Record, adminShare, promoterRate float64) Settlement {
	var out Settlement
	for _, r := range records {
		out.Volume += r.ServiceAmount

		amount := r.CommissionAmount
		if amount == 0 {
			amount = int64(math.Round(float64(r.ServiceAmount) * promoterRate))
		} else if r.CommissionRate > 0 {
			recomputed := int64(math.Round(float64(r.ServiceAmount) * r.CommissionRate))
			if recomputed != amount {
				out.Divergent = append(out.Divergent, r.BookingID)
			}
		}
		out.Gross += amount
	}

	out.AdminFee = int64(math.Round(float64(out.Gross) * adminShare))
	out.PromoterNet = out.Gross - out.AdminFee
	return out
}
