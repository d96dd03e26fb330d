package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mgnrega/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// MetricFilter narrows metric lookups to a year and/or month. Nil fields are
// unconstrained.
type MetricFilter struct {
	Year  *int
	Month *int
}

func (f MetricFilter) IsZero() bool { return f.Year == nil && f.Month == nil }

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps concurrent state syncs from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

// UpsertState inserts a state or updates the name of the one with the same
// code, returning the stored row.
func (r *SQLiteRepository) UpsertState(ctx context.Context, s core.State) (core.State, error) {
	if err := s.Validate(); err != nil {
		return core.State{}, err
	}
	now := r.stamp()
	code := strings.ToUpper(strings.TrimSpace(s.Code))
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO states (name, code, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		strings.TrimSpace(s.Name), code, now, now)
	if err != nil {
		return core.State{}, fmt.Errorf("upsert state %s: %w", code, err)
	}
	return r.GetStateByCode(ctx, code)
}

func (r *SQLiteRepository) GetState(ctx context.Context, id int64) (core.State, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM states WHERE id = ?`, id)
	s, err := scanState(row)
	if err != nil {
		return core.State{}, notFound(err, "state %d", id)
	}
	return s, nil
}

func (r *SQLiteRepository) GetStateByCode(ctx context.Context, code string) (core.State, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	row := r.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM states WHERE code = ?`, code)
	s, err := scanState(row)
	if err != nil {
		return core.State{}, notFound(err, "state %s", code)
	}
	return s, nil
}

func (r *SQLiteRepository) ListStates(ctx context.Context, skip, limit int) ([]core.State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM states ORDER BY id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	states := []core.State{}
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

func (r *SQLiteRepository) CountStates(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM states`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count states: %w", err)
	}
	return n, nil
}

// UpsertDistrict inserts a district or updates the one with the same name in
// the same state. A nil centroid never erases a stored one.
func (r *SQLiteRepository) UpsertDistrict(ctx context.Context, d core.District) (core.District, error) {
	if err := d.Validate(); err != nil {
		return core.District{}, err
	}
	var lat, lon sql.NullFloat64
	if d.Centroid != nil {
		lat = sql.NullFloat64{Float64: d.Centroid.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: d.Centroid.Lon, Valid: true}
	}
	now := r.stamp()
	name := strings.TrimSpace(d.Name)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO districts (name, code, state_id, centroid_lat, centroid_lon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(state_id, name) DO UPDATE SET
			code = CASE WHEN excluded.code = '' THEN districts.code ELSE excluded.code END,
			centroid_lat = COALESCE(excluded.centroid_lat, districts.centroid_lat),
			centroid_lon = COALESCE(excluded.centroid_lon, districts.centroid_lon),
			updated_at = excluded.updated_at`,
		name, d.Code, d.StateID, lat, lon, now, now)
	if err != nil {
		return core.District{}, fmt.Errorf("upsert district %s: %w", name, err)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+districtColumns+` FROM districts WHERE state_id = ? AND name = ?`, d.StateID, name)
	stored, err := scanDistrict(row)
	if err != nil {
		return core.District{}, fmt.Errorf("read district %s: %w", name, err)
	}
	return stored, nil
}

func (r *SQLiteRepository) GetDistrict(ctx context.Context, id int64) (core.District, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+districtColumns+` FROM districts WHERE id = ?`, id)
	d, err := scanDistrict(row)
	if err != nil {
		return core.District{}, notFound(err, "district %d", id)
	}
	return d, nil
}

func (r *SQLiteRepository) ListDistricts(ctx context.Context, stateID int64, skip, limit int) ([]core.District, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+districtColumns+` FROM districts WHERE state_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		stateID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list districts for state %d: %w", stateID, err)
	}
	defer rows.Close()

	districts := []core.District{}
	for rows.Next() {
		d, err := scanDistrict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

// DistrictsWithCentroids returns every district that has coordinates, paired
// with its state.
func (r *SQLiteRepository) DistrictsWithCentroids(ctx context.Context) ([]core.DistrictWithState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.code, d.state_id, d.centroid_lat, d.centroid_lon, d.created_at, d.updated_at,
		       s.id, s.name, s.code, s.created_at, s.updated_at
		FROM districts d JOIN states s ON s.id = d.state_id
		WHERE d.centroid_lat IS NOT NULL AND d.centroid_lon IS NOT NULL
		ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("list districts with centroids: %w", err)
	}
	defer rows.Close()

	var out []core.DistrictWithState
	for rows.Next() {
		var (
			d              core.District
			s              core.State
			lat, lon       sql.NullFloat64
			dc, du, sc, su string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.StateID, &lat, &lon, &dc, &du,
			&s.ID, &s.Name, &s.Code, &sc, &su); err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		d.Centroid = centroid(lat, lon)
		d.CreatedAt, d.UpdatedAt = parseTime(dc), parseTime(du)
		s.CreatedAt, s.UpdatedAt = parseTime(sc), parseTime(su)
		out = append(out, core.DistrictWithState{District: d, State: s})
	}
	return out, rows.Err()
}

// UpsertMetric stores a district's figures for a period, replacing any
// previous figures for the same district and period. The latest flag is left
// alone; see MarkLatest.
func (r *SQLiteRepository) UpsertMetric(ctx context.Context, m core.MonthlyMetric) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_metrics (
			district_id, state_id, year, month,
			total_households, sc_households, st_households, women_households,
			total_works, completed_works, in_progress_works,
			total_funds, funds_utilized, wage_expenditure, material_expenditure,
			total_person_days, sc_person_days, st_person_days, women_person_days,
			source_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(district_id, year, month) DO UPDATE SET
			state_id = excluded.state_id,
			total_households = excluded.total_households,
			sc_households = excluded.sc_households,
			st_households = excluded.st_households,
			women_households = excluded.women_households,
			total_works = excluded.total_works,
			completed_works = excluded.completed_works,
			in_progress_works = excluded.in_progress_works,
			total_funds = excluded.total_funds,
			funds_utilized = excluded.funds_utilized,
			wage_expenditure = excluded.wage_expenditure,
			material_expenditure = excluded.material_expenditure,
			total_person_days = excluded.total_person_days,
			sc_person_days = excluded.sc_person_days,
			st_person_days = excluded.st_person_days,
			women_person_days = excluded.women_person_days,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`,
		m.DistrictID, m.StateID, m.Period.Year, m.Period.Month,
		m.Households.Total, m.Households.SC, m.Households.ST, m.Households.Women,
		m.Works.Total, m.Works.Completed, m.Works.InProgress,
		m.Finances.TotalFunds, m.Finances.FundsUtilized, m.Finances.WageExpenditure, m.Finances.MaterialExpenditure,
		m.PersonDays.Total, m.PersonDays.SC, m.PersonDays.ST, m.PersonDays.Women,
		m.SourceURL, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert metric district=%d period=%s: %w", m.DistrictID, m.Period, err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM monthly_metrics WHERE district_id = ? AND year = ? AND month = ?`,
		m.DistrictID, m.Period.Year, m.Period.Month).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read metric id: %w", err)
	}
	return id, nil
}

// MarkLatest flags the most recent period of a district as latest and clears
// the flag everywhere else for that district.
func (r *SQLiteRepository) MarkLatest(ctx context.Context, districtID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE monthly_metrics SET is_latest = 0 WHERE district_id = ? AND is_latest = 1`, districtID); err != nil {
		return fmt.Errorf("clear latest for district %d: %w", districtID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE monthly_metrics SET is_latest = 1
		WHERE id = (
			SELECT id FROM monthly_metrics WHERE district_id = ?
			ORDER BY year DESC, month DESC LIMIT 1
		)`, districtID); err != nil {
		return fmt.Errorf("mark latest for district %d: %w", districtID, err)
	}
	return tx.Commit()
}

// LatestMetric returns the most recent metric of a district matching f.
func (r *SQLiteRepository) LatestMetric(ctx context.Context, districtID int64, f MetricFilter) (core.MonthlyMetric, error) {
	where, args := filterClause("district_id = ?", []any{districtID}, f)
	row := r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM monthly_metrics WHERE `+where+` ORDER BY year DESC, month DESC LIMIT 1`,
		args...)
	m, err := scanMetric(row)
	if err != nil {
		return core.MonthlyMetric{}, notFound(err, "metrics for district %d", districtID)
	}
	return m, nil
}

// MetricsVersion identifies the stored state of a district's metrics. It
// changes whenever a row of the district is inserted or rewritten, by this
// process or another one sharing the database.
func (r *SQLiteRepository) MetricsVersion(ctx context.Context, districtID int64) (string, error) {
	var (
		n      int64
		latest sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(updated_at) FROM monthly_metrics WHERE district_id = ?`, districtID).
		Scan(&n, &latest)
	if err != nil {
		return "", fmt.Errorf("metrics version for district %d: %w", districtID, err)
	}
	return strconv.FormatInt(n, 10) + "@" + latest.String, nil
}

func (r *SQLiteRepository) MetricAt(ctx context.Context, districtID int64, p core.Period) (core.MonthlyMetric, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM monthly_metrics WHERE district_id = ? AND year = ? AND month = ?`,
		districtID, p.Year, p.Month)
	m, err := scanMetric(row)
	if err != nil {
		return core.MonthlyMetric{}, notFound(err, "metrics for district %d at %s", districtID, p)
	}
	return m, nil
}

// MetricHistory returns a district's metrics from the given period onwards,
// oldest first.
func (r *SQLiteRepository) MetricHistory(ctx context.Context, districtID int64, from core.Period) ([]core.MonthlyMetric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM monthly_metrics
		WHERE district_id = ? AND (year * 100 + month) >= ?
		ORDER BY year ASC, month ASC`, districtID, from.Key())
	if err != nil {
		return nil, fmt.Errorf("metric history for district %d: %w", districtID, err)
	}
	defer rows.Close()
	return collectMetrics(rows)
}

// Compare lists comparison rows for the districts. Without a filter each
// district contributes its latest period; with one, every matching period.
func (r *SQLiteRepository) Compare(ctx context.Context, districtIDs []int64, f MetricFilter) ([]core.Comparison, error) {
	if len(districtIDs) == 0 {
		return []core.Comparison{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(districtIDs)), ",")
	args := make([]any, 0, len(districtIDs)+2)
	for _, id := range districtIDs {
		args = append(args, id)
	}

	var query string
	if f.IsZero() {
		query = `
			SELECT m.district_id, d.name, m.year, m.month, m.total_households, m.total_person_days,
			       m.completed_works, m.funds_utilized, m.wage_expenditure
			FROM monthly_metrics m
			JOIN districts d ON d.id = m.district_id
			JOIN (
				SELECT district_id, MAX(year * 100 + month) AS max_period
				FROM monthly_metrics WHERE district_id IN (` + placeholders + `)
				GROUP BY district_id
			) latest ON latest.district_id = m.district_id AND (m.year * 100 + m.month) = latest.max_period
			ORDER BY m.district_id`
	} else {
		var where string
		where, args = filterClause("m.district_id IN ("+placeholders+")", args, f)
		query = `
			SELECT m.district_id, d.name, m.year, m.month, m.total_households, m.total_person_days,
			       m.completed_works, m.funds_utilized, m.wage_expenditure
			FROM monthly_metrics m
			JOIN districts d ON d.id = m.district_id
			WHERE ` + where + `
			ORDER BY m.district_id, m.year, m.month`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compare districts: %w", err)
	}
	defer rows.Close()

	out := []core.Comparison{}
	for rows.Next() {
		var c core.Comparison
		if err := rows.Scan(&c.DistrictID, &c.DistrictName, &c.Period.Year, &c.Period.Month,
			&c.Households, &c.PersonDays, &c.CompletedWorks, &c.FundsUtilized, &c.WageExpenditure); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func filterClause(base string, args []any, f MetricFilter) (string, []any) {
	where := base
	if f.Year != nil {
		where += " AND year = ?"
		args = append(args, *f.Year)
	}
	if f.Month != nil {
		where += " AND month = ?"
		args = append(args, *f.Month)
	}
	return where, args
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: "+format, append([]any{core.ErrNotFound}, args...)...)
	}
	return fmt.Errorf("read "+format+": %w", append(args, err)...)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
