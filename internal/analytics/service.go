package analytics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// topDoctorLimit and leakageSpecialtyLimit bound the two ranked sections.
const (
	topDoctorLimit        = 5
	leakageSpecialtyLimit = 5
)

// Service computes dashboard reports over scoped fact subsets.
type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(store Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Dashboard assembles the full report for one scope and filter set. The
// report is atomic: any failing section aborts the whole request. An empty
// subset short-circuits to the zero-totals payload without running the
// section queries.
func (s *Service) Dashboard(ctx context.Context, scope Scope, filters Filters) (*Report, error) {
	facts := s.store.Facts(scope, filters)

	totals, err := facts.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	if totals.Total == 0 {
		return ZeroReport(), nil
	}

	report := &Report{
		Summary: Summary{
			KPIs: KPIs{
				TotalAppointments:  totals.Total,
				Completed:          totals.Completed,
				Cancelled:          totals.Cancelled,
				CancellationRate:   CancellationRate(totals.Cancelled, totals.Total),
				AvgDurationMinutes: Round1(totals.AvgDurationCompleted),
			},
		},
	}

	if report.Summary.MonthlyTrend, err = facts.MonthlyTrend(ctx); err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	if report.Summary.TopDoctors, err = facts.TopDoctors(ctx, topDoctorLimit); err != nil {
		return nil, fmt.Errorf("top doctors: %w", err)
	}
	if report.Demographics.ByAgeGroup, err = facts.ByAgeGroup(ctx); err != nil {
		return nil, fmt.Errorf("age group distribution: %w", err)
	}
	if report.Demographics.ByGender, err = facts.ByGender(ctx); err != nil {
		return nil, fmt.Errorf("gender distribution: %w", err)
	}
	if report.Operations.Heatmap, err = facts.Heatmap(ctx); err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}
	if report.Operations.AvgDurationBySpecialty, err = facts.AvgDurationBySpecialty(ctx); err != nil {
		return nil, fmt.Errorf("duration by specialty: %w", err)
	}
	if report.Leakage.ByReason, err = facts.CancellationsByReason(ctx); err != nil {
		return nil, fmt.Errorf("cancellations by reason: %w", err)
	}
	if report.Leakage.BySpecialty, err = facts.CancellationsBySpecialty(ctx, leakageSpecialtyLimit); err != nil {
		return nil, fmt.Errorf("cancellations by specialty: %w", err)
	}

	return report, nil
}
