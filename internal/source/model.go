package source

import "time"

// AppointmentRow is one appointment as read from the transactional system.
// Optional fields are pointers; the derivation engine decides how each gap
// is handled.
type AppointmentRow struct {
	ID                int64
	TenantID          int64
	Date              time.Time
	StartTime         *time.Time // clock time
	EndTime           *time.Time // clock time
	StatusCode        *string
	CreatedAt         *time.Time
	GroupID           *int64
	DoctorID          *int64
	PatientID         *int64
	DoctorSpecialtyID *int64 // doctor's first assigned specialty, if any
}

// DoctorRow is a doctor identity as read from the transactional system.
type DoctorRow struct {
	ID            int64
	TenantID      int64
	FullName      string
	LicenseNumber *string
	Gender        *string
	RegisteredAt  *time.Time
}

type SpecialtyRow struct {
	ID   int64
	Name string
}

type PatientRow struct {
	ID           int64
	RecordNumber string
	FullName     string
	Gender       *string
	BirthDate    *time.Time
}
