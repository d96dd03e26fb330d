package format

import "strings"

// Truncate returns text unchanged when it fits in maxLength characters,
// otherwise its first maxLength characters followed by "...".
func Truncate(text string, maxLength int) string {
	r := []rune(text)
	if len(r) <= maxLength {
		return text
	}
	if maxLength < 0 {
		maxLength = 0
	}
	return string(r[:maxLength]) + "..."
}

var (
	onesWords = [...]string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}
	teenWords = [...]string{"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tensWords = [...]string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// NumberToWords spells n in English using the Indian scale:
//
//	100000   -> "One Lakh"
//	10000000 -> "One Crore"
//	1234567  -> "Twelve Lakh Thirty Four Thousand Five Hundred Sixty Seven"
//
// Zero remainders are omitted. Counts of a thousand crore or more are spelled
// recursively ("One Thousand Crore"); negative numbers get a "Minus" prefix.
func NumberToWords(n int64) string {
	if n == 0 {
		return "Zero"
	}
	if n < 0 {
		// Computed in uint64 so MinInt64 does not overflow.
		return "Minus " + strings.Join(indianWords(uint64(-(n+1))+1), " ")
	}
	return strings.Join(indianWords(uint64(n)), " ")
}

func indianWords(n uint64) []string {
	var parts []string
	switch {
	case n >= Crore:
		parts = append(parts, indianWords(n/Crore)...)
		parts = append(parts, "Crore")
		if r := n % Crore; r != 0 {
			parts = append(parts, indianWords(r)...)
		}
	case n >= Lakh:
		parts = append(parts, underThousand(n/Lakh)...)
		parts = append(parts, "Lakh")
		if r := n % Lakh; r != 0 {
			parts = append(parts, indianWords(r)...)
		}
	case n >= Thousand:
		parts = append(parts, underThousand(n/Thousand)...)
		parts = append(parts, "Thousand")
		if r := n % Thousand; r != 0 {
			parts = append(parts, underThousand(r)...)
		}
	default:
		parts = underThousand(n)
	}
	return parts
}

func underThousand(n uint64) []string {
	switch {
	case n == 0:
		return nil
	case n < 10:
		return []string{onesWords[n]}
	case n < 20:
		return []string{teenWords[n-10]}
	case n < 100:
		out := []string{tensWords[n/10]}
		if n%10 != 0 {
			out = append(out, onesWords[n%10])
		}
		return out
	}
	out := []string{onesWords[n/100], "Hundred"}
	return append(out, underThousand(n%100)...)
}
