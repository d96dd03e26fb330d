package core

// HistoryPoint is one month of a district's trend series.
type HistoryPoint struct {
	Period         Period
	Households     int64
	PersonDays     int64
	WorksCompleted int64
	FundsUtilized  float64
}

// Comparison is one district's row in a side-by-side comparison.
type Comparison struct {
	DistrictID      int64
	DistrictName    string
	Period          Period
	Households      int64
	PersonDays      int64
	CompletedWorks  int64
	FundsUtilized   float64
	WageExpenditure float64
}

// Detection is the result of locating the district nearest to a point.
type Detection struct {
	District   District
	State      State
	DistanceKm float64
	Confidence float64
}

// DistrictWithState pairs a district with its state, as needed for detection.
type DistrictWithState struct {
	District District
	State    State
}

// HistoryFrom returns the first period of a window of years ending at latest.
func HistoryFrom(latest Period, years int) Period {
	return latest.AddMonths(-12 * years)
}

func (m MonthlyMetric) HistoryPoint() HistoryPoint {
	return HistoryPoint{
		Period:         m.Period,
		Households:     m.Households.Total,
		PersonDays:     m.PersonDays.Total,
		WorksCompleted: m.Works.Completed,
		FundsUtilized:  m.Finances.FundsUtilized,
	}
}
