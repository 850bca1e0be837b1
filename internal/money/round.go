// Package money provides currency rounding helpers.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Cents rounds v to two decimal places.
func Cents(v float64) float64 {
	return Round(v, 2)
}

// Ptr rounds v and returns a pointer to it, or nil when v is not finite.
func Ptr(v float64, places int32) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := Round(v, places)
	return &r
}
