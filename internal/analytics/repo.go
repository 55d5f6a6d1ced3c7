package analytics

import "context"

// Totals are the section-independent counters of a fact subset.
type Totals struct {
	Total                int
	Completed            int
	Cancelled            int
	AvgDurationCompleted float64
}

// Store hands out fact subsets scoped to a tenant visibility and filter
// set.
type Store interface {
	Facts(scope Scope, filters Filters) FactSet
}

// FactSet is one scoped, filtered subset of the fact table. Every section
// query runs against the same subset; implementations build the restriction
// once and reuse it.
type FactSet interface {
	Totals(ctx context.Context) (Totals, error)
	MonthlyTrend(ctx context.Context) ([]MonthCount, error)
	TopDoctors(ctx context.Context, limit int) ([]DoctorCount, error)
	ByAgeGroup(ctx context.Context) ([]GroupCount, error)
	ByGender(ctx context.Context) ([]GroupCount, error)
	Heatmap(ctx context.Context) ([]HeatmapCell, error)
	AvgDurationBySpecialty(ctx context.Context) ([]SpecialtyAvg, error)
	CancellationsByReason(ctx context.Context) ([]GroupCount, error)
	CancellationsBySpecialty(ctx context.Context, limit int) ([]GroupCount, error)
}
