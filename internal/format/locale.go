// Package format renders scheme metrics for display: Indian lakh/crore
// shorthand, rupee amounts, percentages, reporting periods, growth and
// trend classification, and a few text helpers used by the dashboard.
//
// Locale-dependent output (digit grouping, currency symbol, month names and
// date layout) comes from an explicit Locale bound into a Formatter. The
// package-level functions use the en-IN formatter.
package format

// Grouping describes how integer digits are separated. Primary is the size of
// the rightmost group, Secondary the size of every group to its left.
type Grouping struct {
	Primary   int
	Secondary int
	Separator string
}

// Locale carries everything the formatter needs to know about a display locale.
type Locale struct {
	Tag            string
	CurrencySymbol string
	Grouping       Grouping
	MonthNames     [12]string
	// DateLayout and MonthYearLayout are Go reference layouts.
	DateLayout      string
	MonthYearLayout string
}

var englishMonths = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// EnIN is the Indian English locale: ₹, 12,34,567 grouping.
var EnIN = Locale{
	Tag:             "en-IN",
	CurrencySymbol:  "₹",
	Grouping:        Grouping{Primary: 3, Secondary: 2, Separator: ","},
	MonthNames:      englishMonths,
	DateLayout:      "January 2, 2006",
	MonthYearLayout: "January 2006",
}

// EnUS renders rupees with Western 3-digit grouping, for output read by
// tools that do not know lakh grouping.
var EnUS = Locale{
	Tag:             "en-US",
	CurrencySymbol:  "₹",
	Grouping:        Grouping{Primary: 3, Secondary: 3, Separator: ","},
	MonthNames:      englishMonths,
	DateLayout:      "January 2, 2006",
	MonthYearLayout: "January 2006",
}

// LookupLocale returns the built-in locale with the given tag.
func LookupLocale(tag string) (Locale, bool) {
	switch tag {
	case EnIN.Tag:
		return EnIN, true
	case EnUS.Tag:
		return EnUS, true
	}
	return Locale{}, false
}

// group inserts separators into a string of plain digits.
func (g Grouping) group(digits string) string {
	if g.Primary <= 0 || len(digits) <= g.Primary {
		return digits
	}
	secondary := g.Secondary
	if secondary <= 0 {
		secondary = g.Primary
	}

	head := digits[:len(digits)-g.Primary]
	tail := digits[len(digits)-g.Primary:]

	var parts []string
	for len(head) > secondary {
		parts = append([]string{head[len(head)-secondary:]}, parts...)
		head = head[:len(head)-secondary]
	}
	parts = append([]string{head}, parts...)

	out := ""
	for _, p := range parts {
		out += p + g.Separator
	}
	return out + tail
}
