package format

import "math"

// Trend is the direction of a metric between two reporting periods.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// FlatBand is the growth, in percent, below which a change is reported as flat.
const FlatBand = 1.0

// CalculatePercentage returns value as a percentage of total, or 0 when total is 0.
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return value / total * 100
}

// CalculateGrowth returns the percentage change from previous to current,
// or 0 when previous is 0.
func CalculateGrowth(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// TrendIndicator classifies the change from previous to current. Growth
// strictly inside ±FlatBand is flat. NaN growth classifies as down.
func TrendIndicator(current, previous float64) Trend {
	growth := CalculateGrowth(current, previous)
	if math.Abs(growth) < FlatBand {
		return TrendFlat
	}
	if growth > 0 {
		return TrendUp
	}
	return TrendDown
}

// TrendColor maps a trend to the dashboard's text colour class.
func TrendColor(t Trend) string {
	switch t {
	case TrendUp:
		return "text-green-600"
	case TrendDown:
		return "text-red-600"
	default:
		return "text-gray-600"
	}
}

// Arrow is the glyph shown next to a trend.
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	default:
		return "→"
	}
}
