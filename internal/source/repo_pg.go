package source

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type readerPG struct{ pool *pgxpool.Pool }

// NewReaderPG reads from the transactional tables. All queries are
// SELECT-only.
func NewReaderPG(pool *pgxpool.Pool) Reader {
	return &readerPG{pool: pool}
}

func (r *readerPG) conn(ctx context.Context) queryable { return r.pool }

func (r *readerPG) DistinctDates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT date FROM appointment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *readerPG) Doctors(ctx context.Context) ([]DoctorRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, tenant_id, full_name, license_number, gender, registered_at
		FROM doctor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []DoctorRow
	for rows.Next() {
		var d DoctorRow
		if err := rows.Scan(&d.ID, &d.TenantID, &d.FullName, &d.LicenseNumber, &d.Gender, &d.RegisteredAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *readerPG) Specialties(ctx context.Context) ([]SpecialtyRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM specialty`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specialties []SpecialtyRow
	for rows.Next() {
		var s SpecialtyRow
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		specialties = append(specialties, s)
	}
	return specialties, rows.Err()
}

func (r *readerPG) Patients(ctx context.Context) ([]PatientRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_number, full_name, gender, birth_date
		FROM patient`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []PatientRow
	for rows.Next() {
		var p PatientRow
		if err := rows.Scan(&p.ID, &p.RecordNumber, &p.FullName, &p.Gender, &p.BirthDate); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *readerPG) AppointmentsAfter(ctx context.Context, afterID int64, limit int) ([]AppointmentRow, error) {
	// The doctor's first specialty is resolved here so the derivation
	// engine never re-queries per row.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, d.tenant_id, a.date, a.start_time, a.end_time, a.status_code,
			a.created_at, a.group_id, b.doctor_id, a.patient_id,
			(SELECT ds.specialty_id FROM doctor_specialty ds
				WHERE ds.doctor_id = b.doctor_id
				ORDER BY ds.position, ds.specialty_id LIMIT 1) AS specialty_id
		FROM appointment a
		LEFT JOIN schedule_block b ON b.id = a.schedule_block_id
		LEFT JOIN doctor d ON d.id = b.doctor_id
		WHERE a.id > $1
		ORDER BY a.id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []AppointmentRow
	for rows.Next() {
		var a AppointmentRow
		var tenantID *int64
		var start, end pgtype.Time
		if err := rows.Scan(&a.ID, &tenantID, &a.Date, &start, &end, &a.StatusCode,
			&a.CreatedAt, &a.GroupID, &a.DoctorID, &a.PatientID, &a.DoctorSpecialtyID); err != nil {
			return nil, err
		}
		if tenantID != nil {
			a.TenantID = *tenantID
		}
		a.StartTime = fromClockTime(start)
		a.EndTime = fromClockTime(end)
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// fromClockTime converts a TIME column value back to a wall-clock time.
func fromClockTime(t pgtype.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	secs := t.Microseconds / 1e6
	clock := time.Date(0, 1, 1, int(secs/3600), int(secs/60%60), int(secs%60), 0, time.UTC)
	return &clock
}
