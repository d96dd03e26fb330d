// Package core holds the scheme's domain types and the arithmetic shared by
// ingestion and the dashboard.
//
// This file parses rupee amounts and counts as published by data.gov.in,
// where numbers arrive as strings in either Indian (1,23,456.78) or Western
// (123,456.78) grouping, and sums amounts without float drift.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a published numeric string to a float.
//
// Grouping commas are ignored, surrounding whitespace and a leading rupee
// sign are trimmed, and empty values, "NA" and "-" count as zero.
//
// Examples:
//
//	ParseAmount("1,23,456.78") -> 123456.78, nil
//	ParseAmount("₹ 5,000")     -> 5000, nil
//	ParseAmount("")            -> 0, nil
//	ParseAmount("12a")         -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseCount is ParseAmount for whole-number counts; fractions are truncated.
func ParseCount(s string) (int64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "-":
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// SumAmounts adds rupee amounts exactly to the paisa.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// Utilization returns utilized as a share of available funds in percent,
// rounded to two decimals. Zero funds yield zero.
func Utilization(utilized, available float64) float64 {
	if available == 0 {
		return 0
	}
	pct := decimal.NewFromFloat(utilized).
		Div(decimal.NewFromFloat(available)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := pct.Float64()
	return f
}

// LakhsToRupees converts an amount in lakh rupees to rupees, rounded to the
// paisa.
func LakhsToRupees(lakhs float64) float64 {
	f, _ := decimal.NewFromFloat(lakhs).Mul(decimal.NewFromInt(100000)).Round(2).Float64()
	return f
}
