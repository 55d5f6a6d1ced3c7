package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinsight/clinsight/internal/mart"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

// factFrom joins the fact table to every dimension the sections group by.
const factFrom = `
	FROM fact_appointment f
	JOIN dim_date dd ON dd.date_key = f.date_key
	JOIN dim_doctor doc ON doc.doctor_key = f.doctor_key
	JOIN dim_patient pat ON pat.patient_key = f.patient_key
	JOIN dim_specialty sp ON sp.specialty_key = f.specialty_key
	JOIN dim_status st ON st.status_key = f.status_key`

// Facts compiles the scope and filters into a single WHERE fragment that
// every section query of the returned set reuses.
func (s *storePG) Facts(scope Scope, filters Filters) FactSet {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !scope.AllTenants {
		conds = append(conds, "f.tenant_id = "+arg(scope.TenantID))
	}
	if filters.StartDate != nil && filters.EndDate != nil {
		conds = append(conds, "dd.calendar_date BETWEEN "+arg(*filters.StartDate)+" AND "+arg(*filters.EndDate))
	}
	if filters.Specialty != "" {
		conds = append(conds, "sp.name ILIKE "+arg("%"+filters.Specialty+"%"))
	}
	if filters.DoctorName != "" {
		conds = append(conds, "doc.full_name ILIKE "+arg("%"+filters.DoctorName+"%"))
	}
	if filters.DoctorGender != "" {
		conds = append(conds, "doc.gender = "+arg(filters.DoctorGender))
	}

	where := " WHERE 1=1"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}

	return &factSetPG{pool: s.pool, where: where, args: args}
}

// factSetPG holds the precompiled restriction of one scoped subset.
type factSetPG struct {
	pool  *pgxpool.Pool
	where string
	args  []interface{}
}

// query appends the subset restriction and any trailing clauses to a
// SELECT head, passing extra positional args after the subset's own.
func (fs *factSetPG) query(ctx context.Context, head, tail string, extra ...interface{}) (pgx.Rows, error) {
	sql := head + factFrom + fs.where + tail
	args := append(append([]interface{}{}, fs.args...), extra...)
	return fs.pool.Query(ctx, sql, args...)
}

func (fs *factSetPG) Totals(ctx context.Context) (Totals, error) {
	sql := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE st.code = $` + fmt.Sprint(len(fs.args)+1) + `),
		COUNT(*) FILTER (WHERE st.is_cancellation),
		COALESCE(AVG(f.duration_minutes) FILTER (WHERE st.code = $` + fmt.Sprint(len(fs.args)+1) + `), 0)` +
		factFrom + fs.where
	args := append(append([]interface{}{}, fs.args...), mart.StatusCompleted)

	var t Totals
	err := fs.pool.QueryRow(ctx, sql, args...).
		Scan(&t.Total, &t.Completed, &t.Cancelled, &t.AvgDurationCompleted)
	return t, err
}

func (fs *factSetPG) MonthlyTrend(ctx context.Context) ([]MonthCount, error) {
	rows, err := fs.query(ctx,
		`SELECT dd.month, dd.month_name, COUNT(*)`,
		` GROUP BY dd.month, dd.month_name ORDER BY dd.month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trend := []MonthCount{}
	for rows.Next() {
		var m MonthCount
		if err := rows.Scan(&m.Month, &m.MonthName, &m.Total); err != nil {
			return nil, err
		}
		trend = append(trend, m)
	}
	return trend, rows.Err()
}

func (fs *factSetPG) TopDoctors(ctx context.Context, limit int) ([]DoctorCount, error) {
	n := len(fs.args)
	rows, err := fs.query(ctx,
		`SELECT doc.full_name, COUNT(*)`,
		` AND st.code = $`+fmt.Sprint(n+1)+
			` GROUP BY doc.full_name ORDER BY COUNT(*) DESC, doc.full_name LIMIT $`+fmt.Sprint(n+2),
		mart.StatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := []DoctorCount{}
	for rows.Next() {
		var d DoctorCount
		if err := rows.Scan(&d.DoctorName, &d.Completed); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (fs *factSetPG) ByAgeGroup(ctx context.Context) ([]GroupCount, error) {
	return fs.groupCounts(ctx,
		`SELECT pat.age_group, COUNT(*)`,
		` GROUP BY pat.age_group ORDER BY COUNT(*) DESC, pat.age_group`)
}

func (fs *factSetPG) ByGender(ctx context.Context) ([]GroupCount, error) {
	return fs.groupCounts(ctx,
		`SELECT pat.gender, COUNT(*)`,
		` GROUP BY pat.gender ORDER BY COUNT(*) DESC, pat.gender`)
}

func (fs *factSetPG) Heatmap(ctx context.Context) ([]HeatmapCell, error) {
	rows, err := fs.query(ctx,
		`SELECT dd.weekday_name, dd.weekday, EXTRACT(HOUR FROM f.start_time)::int AS hour, COUNT(*)`,
		` AND f.start_time IS NOT NULL
		 GROUP BY dd.weekday_name, dd.weekday, hour
		 ORDER BY dd.weekday, hour`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := []HeatmapCell{}
	for rows.Next() {
		var c HeatmapCell
		if err := rows.Scan(&c.WeekdayName, &c.Weekday, &c.Hour, &c.Total); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func (fs *factSetPG) AvgDurationBySpecialty(ctx context.Context) ([]SpecialtyAvg, error) {
	rows, err := fs.query(ctx,
		`SELECT sp.name, AVG(f.duration_minutes)`,
		` AND st.code = $`+fmt.Sprint(len(fs.args)+1)+
			` GROUP BY sp.name ORDER BY AVG(f.duration_minutes) DESC, sp.name`,
		mart.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	avgs := []SpecialtyAvg{}
	for rows.Next() {
		var a SpecialtyAvg
		if err := rows.Scan(&a.Specialty, &a.AvgDurationMinutes); err != nil {
			return nil, err
		}
		a.AvgDurationMinutes = Round1(a.AvgDurationMinutes)
		avgs = append(avgs, a)
	}
	return avgs, rows.Err()
}

func (fs *factSetPG) CancellationsByReason(ctx context.Context) ([]GroupCount, error) {
	return fs.groupCounts(ctx,
		`SELECT st.description, COUNT(*)`,
		` AND st.is_cancellation GROUP BY st.description ORDER BY COUNT(*) DESC, st.description`)
}

func (fs *factSetPG) CancellationsBySpecialty(ctx context.Context, limit int) ([]GroupCount, error) {
	return fs.groupCounts(ctx,
		`SELECT sp.name, COUNT(*)`,
		` AND st.is_cancellation GROUP BY sp.name ORDER BY COUNT(*) DESC, sp.name LIMIT $`+fmt.Sprint(len(fs.args)+1),
		limit)
}

func (fs *factSetPG) groupCounts(ctx context.Context, head, tail string, extra ...interface{}) ([]GroupCount, error) {
	rows, err := fs.query(ctx, head, tail, extra...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []GroupCount{}
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Label, &g.Total); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
