package format

import "time"

// Default is the en-IN formatter behind the package-level functions.
var Default = New(EnIN)

func IndianNumber(n float64) string { return Default.IndianNumber(n) }

// IndianNumberOpt is IndianNumber for a value that may be absent; nil renders as "0".
func IndianNumberOpt(n *float64) string {
	if n == nil {
		return "0"
	}
	return Default.IndianNumber(*n)
}

func Currency(amount float64) string { return Default.Currency(amount) }

// CurrencyOpt renders nil as "₹0".
func CurrencyOpt(amount *float64) string {
	if amount == nil {
		return "₹0"
	}
	return Default.Currency(*amount)
}

func LargeCurrency(amount float64) string { return Default.LargeCurrency(amount) }

// LargeCurrencyOpt renders nil as "₹0".
func LargeCurrencyOpt(amount *float64) string {
	if amount == nil {
		return "₹0"
	}
	return Default.LargeCurrency(*amount)
}

func Percentage(value float64, decimals int) string { return Default.Percentage(value, decimals) }

// PercentageOpt renders nil as "0%".
func PercentageOpt(value *float64, decimals int) string {
	if value == nil {
		return "0%"
	}
	return Default.Percentage(*value, decimals)
}

func Date(t time.Time) string { return Default.Date(t) }

func DateString(s string) string { return Default.DateString(s) }

func MonthYear(year, month int) string { return Default.MonthYear(year, month) }

func MonthName(month int) string { return Default.MonthName(month) }
