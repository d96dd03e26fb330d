package format

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Published screenshots, exports and announcement text depend on the exact
// strings the dashboard has always shown. These helpers pin that
// number-to-string behaviour.

// toFixed renders x with exactly digits fractional digits. Rounding is done on
// the exact binary value with ties away from zero, so 1.005 (stored as
// 1.00499999...) becomes "1.00" and 0.125 becomes "0.13".
func toFixed(x float64, digits int) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	}
	if digits < 0 {
		digits = 0
	}
	if math.Abs(x) >= 1e21 {
		return numberString(x)
	}
	return new(big.Rat).SetFloat64(x).FloatString(digits)
}

// numberString renders x with shortest round-trip digits: positional for
// exponents in [-7, 21), scientific ("1e-7", "1.5e+21") outside that range.
func numberString(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		return "0"
	}

	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}

	// d.ddddde±XX
	sci := strconv.FormatFloat(x, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)
	k := len(digits)
	n := exp + 1

	switch {
	case k <= n && n <= 21:
		return sign + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return sign + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return sign + "0." + strings.Repeat("0", -n) + digits
	}

	e := n - 1
	expSign := "+"
	if e < 0 {
		expSign = "-"
		e = -e
	}
	m := digits[:1]
	if k > 1 {
		m += "." + digits[1:]
	}
	return sign + m + "e" + expSign + strconv.Itoa(e)
}

// roundedDigits returns the absolute value of x rounded to a whole number,
// ties away from zero, as a plain digit string.
func roundedDigits(x float64) string {
	return new(big.Rat).SetFloat64(math.Abs(x)).FloatString(0)
}
