// Package staking sizes positions with fractional Kelly.
package staking

import "math"

// QuarterKelly scales the full Kelly fraction down for risk reduction
const QuarterKelly = 0.25

// KellyFraction returns the full Kelly fraction for a bet whose expected value
// is edgePercent at the given decimal odds.
//
// Kelly Criterion: f = (bp - q) / b
// where b = decimal odds - 1
//
//	p = implied win probability, recovered from EV = p*odds - 1
//	q = 1 - p
func KellyFraction(edgePercent, odds float64) float64 {
	b := odds - 1.0
	p := (edgePercent/100 + 1) / odds
	q := 1.0 - p
	return (b*p - q) / b
}

// ComputeStake returns the quarter-Kelly stake for availableCash, truncated to
// cents. Non-actionable inputs (zero edge, zero odds, odds <= 1, negative
// edge, numeric degeneracy) yield 0. The result is always finite and >= 0.
func ComputeStake(edgePercent, odds, availableCash float64) float64 {
	if edgePercent == 0 || odds == 0 || odds <= 1 {
		return 0
	}
	if math.IsNaN(edgePercent) || math.IsNaN(odds) || math.IsNaN(availableCash) {
		return 0
	}

	kelly := math.Max(0, KellyFraction(edgePercent, odds)*QuarterKelly)
	stake := math.Floor(availableCash*kelly*100) / 100

	if math.IsNaN(stake) || math.IsInf(stake, 0) || stake <= 0 {
		return 0
	}
	return stake
}
