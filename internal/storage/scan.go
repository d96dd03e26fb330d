package storage

import (
	"database/sql"
	"fmt"

	"mgnrega/internal/core"
)

const (
	stateColumns    = `id, name, code, created_at, updated_at`
	districtColumns = `id, name, code, state_id, centroid_lat, centroid_lon, created_at, updated_at`
	metricColumns   = `id, district_id, state_id, year, month,
		total_households, sc_households, st_households, women_households,
		total_works, completed_works, in_progress_works,
		total_funds, funds_utilized, wage_expenditure, material_expenditure,
		total_person_days, sc_person_days, st_person_days, women_person_days,
		is_latest, source_url, updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (core.State, error) {
	var (
		s                core.State
		created, updated string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Code, &created, &updated); err != nil {
		return core.State{}, err
	}
	s.CreatedAt, s.UpdatedAt = parseTime(created), parseTime(updated)
	return s, nil
}

func scanDistrict(row scanner) (core.District, error) {
	var (
		d                core.District
		lat, lon         sql.NullFloat64
		created, updated string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Code, &d.StateID, &lat, &lon, &created, &updated); err != nil {
		return core.District{}, err
	}
	d.Centroid = centroid(lat, lon)
	d.CreatedAt, d.UpdatedAt = parseTime(created), parseTime(updated)
	return d, nil
}

func scanMetric(row scanner) (core.MonthlyMetric, error) {
	var (
		m       core.MonthlyMetric
		latest  int64
		updated string
	)
	err := row.Scan(&m.ID, &m.DistrictID, &m.StateID, &m.Period.Year, &m.Period.Month,
		&m.Households.Total, &m.Households.SC, &m.Households.ST, &m.Households.Women,
		&m.Works.Total, &m.Works.Completed, &m.Works.InProgress,
		&m.Finances.TotalFunds, &m.Finances.FundsUtilized, &m.Finances.WageExpenditure, &m.Finances.MaterialExpenditure,
		&m.PersonDays.Total, &m.PersonDays.SC, &m.PersonDays.ST, &m.PersonDays.Women,
		&latest, &m.SourceURL, &updated)
	if err != nil {
		return core.MonthlyMetric{}, err
	}
	m.IsLatest = latest != 0
	m.UpdatedAt = parseTime(updated)
	return m, nil
}

func collectMetrics(rows *sql.Rows) ([]core.MonthlyMetric, error) {
	out := []core.MonthlyMetric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// centroid treats a missing coordinate as no centroid at all.
func centroid(lat, lon sql.NullFloat64) *core.LatLon {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &core.LatLon{Lat: lat.Float64, Lon: lon.Float64}
}
