package source

import (
	"context"
	"time"
)

// Reader is the pure read dependency on the transactional system. The ETL
// never mutates source records.
type Reader interface {
	// DistinctDates returns every distinct appointment date in the source.
	DistinctDates(ctx context.Context) ([]time.Time, error)
	Doctors(ctx context.Context) ([]DoctorRow, error)
	Specialties(ctx context.Context) ([]SpecialtyRow, error)
	Patients(ctx context.Context) ([]PatientRow, error)
	// AppointmentsAfter pages appointments by ascending id, returning at
	// most limit rows with id greater than afterID.
	AppointmentsAfter(ctx context.Context, afterID int64, limit int) ([]AppointmentRow, error)
}
