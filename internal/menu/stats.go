package menu

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PriceStats summarizes the parseable prices in a snapshot.
type PriceStats struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

var priceValue = regexp.MustCompile(`\d{1,3}(?:[.,]\d{1,2})?`)

// ParsePrice extracts the numeric amount from raw currency text such as
// "CHF 12.50" or "12,50". The boolean is false when no amount is present.
func ParsePrice(raw string) (float64, bool) {
	match := priceValue.FindString(raw)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Stats computes price statistics across items with parseable prices. The
// boolean is false when no item carries a usable price.
func Stats(items []Item) (PriceStats, bool) {
	var stats PriceStats
	var sum float64
	for _, item := range items {
		value, ok := ParsePrice(item.Price)
		if !ok {
			continue
		}
		if stats.Count == 0 || value < stats.Min {
			stats.Min = value
		}
		if value > stats.Max {
			stats.Max = value
		}
		sum += value
		stats.Count++
	}
	if stats.Count == 0 {
		return PriceStats{}, false
	}
	stats.Average = math.Round(sum/float64(stats.Count)*100) / 100
	return stats, true
}
