package pricing

import "github.com/shopspring/decimal"

// Commission computes the courier payout for a delivery. The base portion is
// proportional to distance; the vendor bonus is added on top unchanged, so a
// zero-distance assignment still pays out the bonus.
func Commission(distanceKM, ratePerKM, bonus decimal.Decimal) decimal.Decimal {
	return distanceKM.Mul(ratePerKM).Add(bonus).Round(2)
}
