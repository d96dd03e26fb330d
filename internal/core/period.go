package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies a reporting month. Month is 1-12.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 2005 || p.Year > 9999 {
		// The scheme started in 2005-06; anything earlier is bad data.
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// AddMonths returns the period n months later (earlier when n is negative).
func (p Period) AddMonths(n int) Period {
	idx := p.Year*12 + (p.Month - 1) + n
	return Period{Year: idx / 12, Month: idx%12 + 1}
}

// Prev returns the previous month.
func (p Period) Prev() Period { return p.AddMonths(-1) }

func (p Period) Before(o Period) bool {
	return p.Key() < o.Key()
}

// Key orders periods as year*100+month.
func (p Period) Key() int { return p.Year*100 + p.Month }

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

var shortMonths = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// PeriodFromFinYear maps a financial year ("2024-2025") and a month name or
// number to a calendar period. April to December fall in the first year,
// January to March in the second.
func PeriodFromFinYear(finYear, month string) (Period, error) {
	first, _, ok := strings.Cut(strings.TrimSpace(finYear), "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: financial year %q", ErrInvalidPeriod, finYear)
	}
	year, err := strconv.Atoi(first)
	if err != nil {
		return Period{}, fmt.Errorf("%w: financial year %q", ErrInvalidPeriod, finYear)
	}

	m, err := parseMonth(month)
	if err != nil {
		return Period{}, err
	}
	if m <= 3 {
		year++
	}
	p := Period{Year: year, Month: m}
	return p, p.Validate()
}

func parseMonth(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
		}
		return n, nil
	}
	if len(s) >= 3 {
		if n, ok := shortMonths[s[:3]]; ok {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
}
