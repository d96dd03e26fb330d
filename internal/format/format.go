package format

import (
	"math"
	"strings"
	"time"
)

const (
	Thousand = 1_000
	Lakh     = 100_000
	Crore    = 10_000_000

	// DefaultPercentDecimals is the precision used by the dashboard for rates.
	DefaultPercentDecimals = 1
)

// Formatter renders values for one locale. The zero value is not usable; use New.
type Formatter struct {
	loc Locale
}

// New returns a Formatter bound to loc.
func New(loc Locale) *Formatter {
	return &Formatter{loc: loc}
}

// Locale returns the locale the formatter renders for.
func (f *Formatter) Locale() Locale { return f.loc }

// IndianNumber abbreviates n with the Indian magnitude units:
//
//	IndianNumber(1500)     -> "1.50 K"
//	IndianNumber(250000)   -> "2.50 L"
//	IndianNumber(15000000) -> "1.50 Cr"
//	IndianNumber(999)      -> "999"
//
// Scaled values keep their sign and are rounded to two decimals without
// grouping. Values below one thousand are rendered as-is.
func (f *Formatter) IndianNumber(n float64) string {
	a := math.Abs(n)
	switch {
	case a >= Crore:
		return toFixed(n/Crore, 2) + " Cr"
	case a >= Lakh:
		return toFixed(n/Lakh, 2) + " L"
	case a >= Thousand:
		return toFixed(n/Thousand, 2) + " K"
	}
	return numberString(n)
}

// Currency renders a whole-rupee amount with the locale's symbol and grouping,
// e.g. "₹12,34,567". Fractions are rounded to the nearest rupee.
func (f *Formatter) Currency(amount float64) string {
	sym := f.loc.CurrencySymbol
	switch {
	case math.IsNaN(amount):
		return sym + "NaN"
	case math.IsInf(amount, 1):
		return sym + "∞"
	case math.IsInf(amount, -1):
		return "-" + sym + "∞"
	}

	s := sym + f.loc.Grouping.group(roundedDigits(amount))
	if amount < 0 || math.Signbit(amount) {
		return "-" + s
	}
	return s
}

// LargeCurrency uses crore and lakh shorthand from one lakh upwards
// ("₹2.50 L", "₹1.50 Cr") and the full grouped Currency form below that.
func (f *Formatter) LargeCurrency(amount float64) string {
	sym := f.loc.CurrencySymbol
	a := math.Abs(amount)
	switch {
	case a >= Crore:
		return sym + toFixed(amount/Crore, 2) + " Cr"
	case a >= Lakh:
		return sym + toFixed(amount/Lakh, 2) + " L"
	}
	return f.Currency(amount)
}

// Percentage renders value with the given number of decimals and a "%" suffix.
// Values outside [0, 100] are legitimate growth rates and are not clamped.
func (f *Formatter) Percentage(value float64, decimals int) string {
	return toFixed(value, decimals) + "%"
}

// Date renders t as "January 15, 2024". The zero time renders as "".
func (f *Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return f.localize(t.Format(f.loc.DateLayout), t.Month())
}

// DateString parses an ISO date ("2024-01-15") or RFC 3339 timestamp and
// renders it like Date. Empty or unparsable input renders as "".
func (f *Formatter) DateString(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return f.Date(t)
		}
	}
	return ""
}

// MonthYear renders the first day of the given 1-indexed month as
// "January 2024". Out-of-range months roll over into adjacent years.
func (f *Formatter) MonthYear(year, month int) string {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return f.localize(t.Format(f.loc.MonthYearLayout), t.Month())
}

// MonthName returns the locale's name for a 1-indexed month, or "" when
// month is outside 1..12.
func (f *Formatter) MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return f.loc.MonthNames[month-1]
}

// localize swaps Go's English month name for the locale's own.
func (f *Formatter) localize(s string, m time.Month) string {
	en := englishMonths[m-1]
	local := f.loc.MonthNames[m-1]
	if en == local || local == "" {
		return s
	}
	return strings.Replace(s, en, local, 1)
}
