// Package fees implements the exchange fee schedule.
//
// Taker fee = ceil(0.07   * C * P * (1 - P)) dollars, rounded up per cent.
// Maker fee = ceil(0.0175 * C * P * (1 - P)) dollars (25% of taker).
//
// C is the contract count and P the contract price on the [0, 1] dollar
// scale. There is no settlement or membership fee.
package fees

import "math"

// TakerFee returns the fee in dollars for count contracts taken at price.
// Degenerate inputs (count <= 0, price outside (0, 1)) cost nothing.
func TakerFee(count int, price float64) float64 {
	if count <= 0 || price <= 0 || price >= 1 {
		return 0
	}
	// Work in cents so the ceiling lands on a whole cent. The round to 8
	// decimals suppresses float drift like 1.7500000000000002.
	rawCents := 7 * float64(count) * price * (1 - price)
	return math.Ceil(roundTo8(rawCents)) / 100
}

// MakerFee returns the resting-order fee in dollars.
func MakerFee(count int, price float64) float64 {
	if count <= 0 || price <= 0 || price >= 1 {
		return 0
	}
	rawCents := 1.75 * float64(count) * price * (1 - price)
	return math.Ceil(roundTo8(rawCents)) / 100
}

// TotalPartitionFees sums the taker fees for trading every leg of a
// partition at the given prices with the same contract count.
func TotalPartitionFees(count int, prices []float64) float64 {
	total := 0.0
	for _, p := range prices {
		total += TakerFee(count, p)
	}
	return total
}

// IsProfitable reports whether a mispricing of the given magnitude (dollars
// per contract) survives worst-case taker fees across all legs, scaled by
// the safety multiplier.
func IsProfitable(magnitude float64, count int, legPrices []float64, safety float64) bool {
	feePerContract := 0.0
	if count > 0 {
		feePerContract = TotalPartitionFees(count, legPrices) / float64(count)
	}
	return magnitude > feePerContract*safety
}

func roundTo8(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}
