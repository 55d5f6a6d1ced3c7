package mart

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinsight/clinsight/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type dimensionRepoPG struct{ pool *pgxpool.Pool }

func NewDimensionRepoPG(pool *pgxpool.Pool) DimensionRepository {
	return &dimensionRepoPG{pool: pool}
}

func (r *dimensionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *dimensionRepoPG) DateKeys(ctx context.Context) (map[int]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT date_key FROM dim_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[int]bool)
	for rows.Next() {
		var k int
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (r *dimensionRepoPG) InsertDates(ctx context.Context, dates []DimDate) error {
	if len(dates) == 0 {
		return nil
	}
	_, err := r.conn(ctx).CopyFrom(ctx,
		pgx.Identifier{"dim_date"},
		[]string{"date_key", "calendar_date", "year", "half_year", "quarter",
			"month", "month_name", "day", "weekday", "weekday_name", "is_weekend"},
		pgx.CopyFromSlice(len(dates), func(i int) ([]interface{}, error) {
			d := dates[i]
			return []interface{}{d.DateKey, d.CalendarDate, d.Year, d.HalfYear, d.Quarter,
				d.Month, d.MonthName, d.Day, d.Weekday, d.WeekdayName, d.IsWeekend}, nil
		}),
	)
	return err
}

func (r *dimensionRepoPG) UpsertDoctor(ctx context.Context, d DimDoctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dim_doctor SET tenant_id=$2, full_name=$3, license_number=$4, gender=$5, registered_at=$6
		WHERE source_doctor_id = $1`,
		d.SourceDoctorID, d.TenantID, d.FullName, d.LicenseNumber, d.Gender, d.RegisteredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO dim_doctor (source_doctor_id, tenant_id, full_name, license_number, gender, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.SourceDoctorID, d.TenantID, d.FullName, d.LicenseNumber, d.Gender, d.RegisteredAt)
	return err
}

func (r *dimensionRepoPG) DoctorKeys(ctx context.Context) (map[int64]DoctorRef, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT source_doctor_id, doctor_key, tenant_id FROM dim_doctor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[int64]DoctorRef)
	for rows.Next() {
		var sourceID int64
		var ref DoctorRef
		if err := rows.Scan(&sourceID, &ref.Key, &ref.TenantID); err != nil {
			return nil, err
		}
		refs[sourceID] = ref
	}
	return refs, rows.Err()
}

func (r *dimensionRepoPG) UpsertSpecialty(ctx context.Context, s DimSpecialty) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE dim_specialty SET name=$2 WHERE source_specialty_id = $1`,
		s.SourceSpecialtyID, s.Name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.conn(ctx).Exec(ctx,
		`INSERT INTO dim_specialty (source_specialty_id, name) VALUES ($1,$2)`,
		s.SourceSpecialtyID, s.Name)
	return err
}

func (r *dimensionRepoPG) SpecialtyKeys(ctx context.Context) (map[int64]int64, error) {
	return r.int64KeyMap(ctx, `SELECT source_specialty_id, specialty_key FROM dim_specialty`)
}

func (r *dimensionRepoPG) EnsureGeneralSpecialty(ctx context.Context) (int64, error) {
	var key int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT specialty_key FROM dim_specialty WHERE source_specialty_id = $1`,
		GeneralSpecialtySourceID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dim_specialty (source_specialty_id, name)
		VALUES ($1,$2) RETURNING specialty_key`,
		GeneralSpecialtySourceID, GeneralSpecialtyName).Scan(&key)
	return key, err
}

func (r *dimensionRepoPG) UpsertPatient(ctx context.Context, p DimPatient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dim_patient SET record_number=$2, full_name=$3, gender=$4, birth_date=$5, age_group=$6
		WHERE source_patient_id = $1`,
		p.SourcePatientID, p.RecordNumber, p.FullName, p.Gender, p.BirthDate, p.AgeGroup)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO dim_patient (source_patient_id, record_number, full_name, gender, birth_date, age_group)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.SourcePatientID, p.RecordNumber, p.FullName, p.Gender, p.BirthDate, p.AgeGroup)
	return err
}

func (r *dimensionRepoPG) PatientKeys(ctx context.Context) (map[int64]int64, error) {
	return r.int64KeyMap(ctx, `SELECT source_patient_id, patient_key FROM dim_patient`)
}

func (r *dimensionRepoPG) UpsertStatus(ctx context.Context, s DimStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dim_status SET description=$2, is_cancellation=$3, is_attended=$4
		WHERE code = $1`,
		s.Code, s.Description, s.IsCancellation, s.IsAttended)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO dim_status (code, description, is_cancellation, is_attended)
		VALUES ($1,$2,$3,$4)`,
		s.Code, s.Description, s.IsCancellation, s.IsAttended)
	return err
}

func (r *dimensionRepoPG) StatusKeys(ctx context.Context) (map[string]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT code, status_key FROM dim_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var code string
		var key int64
		if err := rows.Scan(&code, &key); err != nil {
			return nil, err
		}
		keys[code] = key
	}
	return keys, rows.Err()
}

func (r *dimensionRepoPG) int64KeyMap(ctx context.Context, sql string) (map[int64]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[int64]int64)
	for rows.Next() {
		var id, key int64
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		keys[id] = key
	}
	return keys, rows.Err()
}

type factRepoPG struct{ pool *pgxpool.Pool }

func NewFactRepoPG(pool *pgxpool.Pool) FactRepository {
	return &factRepoPG{pool: pool}
}

func (r *factRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *factRepoPG) ExistingSourceIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT source_appointment_id FROM fact_appointment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (r *factRepoPG) InsertFacts(ctx context.Context, facts []FactAppointment) error {
	if len(facts) == 0 {
		return nil
	}
	_, err := r.conn(ctx).CopyFrom(ctx,
		pgx.Identifier{"fact_appointment"},
		[]string{"tenant_id", "date_key", "doctor_key", "patient_key", "specialty_key",
			"status_key", "source_appointment_id", "schedule_group_id", "start_time",
			"occurrence_count", "duration_minutes", "lead_time_days"},
		pgx.CopyFromSlice(len(facts), func(i int) ([]interface{}, error) {
			f := facts[i]
			return []interface{}{f.TenantID, f.DateKey, f.DoctorKey, f.PatientKey, f.SpecialtyKey,
				f.StatusKey, f.SourceAppointmentID, f.ScheduleGroupID, clockTime(f.StartTime),
				f.OccurrenceCount, f.DurationMinutes, f.LeadTimeDays}, nil
		}),
	)
	return err
}

// clockTime converts a wall-clock time to pgtype.Time for TIME columns.
func clockTime(t *time.Time) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	micros := int64(t.Hour())*3600*1e6 + int64(t.Minute())*60*1e6 + int64(t.Second())*1e6
	return pgtype.Time{Microseconds: micros, Valid: true}
}
