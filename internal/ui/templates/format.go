// Package templates holds the server-rendered dashboard views.
package templates

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// SummaryElementID is the element datastar patches with Summary output.
const SummaryElementID = "analytics-summary"

// money formats a currency amount to cents, rounding half away from zero.
func money(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "-"
	}
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

func count(n int) string {
	return strconv.Itoa(n)
}

func itemLabel(item string) string {
	if item == "" {
		return "-"
	}
	return item
}
