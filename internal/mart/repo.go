package mart

import "context"

// DimensionRepository persists and resolves star-schema dimension rows.
type DimensionRepository interface {
	// DateKeys returns every date key already present in dim_date.
	DateKeys(ctx context.Context) (map[int]bool, error)
	// InsertDates bulk-inserts new date rows. Dates are never updated.
	InsertDates(ctx context.Context, dates []DimDate) error

	// UpsertDoctor inserts or refreshes a doctor row keyed on its source id.
	UpsertDoctor(ctx context.Context, d DimDoctor) error
	// DoctorKeys maps source doctor ids to their dimension row references.
	DoctorKeys(ctx context.Context) (map[int64]DoctorRef, error)

	UpsertSpecialty(ctx context.Context, s DimSpecialty) error
	SpecialtyKeys(ctx context.Context) (map[int64]int64, error)
	// EnsureGeneralSpecialty creates the sentinel fallback row if absent and
	// returns its surrogate key.
	EnsureGeneralSpecialty(ctx context.Context) (int64, error)

	UpsertPatient(ctx context.Context, p DimPatient) error
	PatientKeys(ctx context.Context) (map[int64]int64, error)

	UpsertStatus(ctx context.Context, s DimStatus) error
	StatusKeys(ctx context.Context) (map[string]int64, error)
}

// FactRepository persists fact rows.
type FactRepository interface {
	// ExistingSourceIDs returns the source appointment ids already loaded.
	ExistingSourceIDs(ctx context.Context) (map[int64]bool, error)
	// InsertFacts bulk-inserts a batch of new fact rows.
	InsertFacts(ctx context.Context, facts []FactAppointment) error
}
