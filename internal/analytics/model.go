package analytics

import (
	"fmt"
	"math"
	"time"
)

// Scope is the tenant visibility of a dashboard request. Every query made
// under a scope carries a matching tenant predicate; there is no report
// shape that bypasses it.
type Scope struct {
	AllTenants bool
	TenantID   int64
}

// Filters narrows the fact subset a report is computed over. All filters
// compose conjunctively and are optional.
type Filters struct {
	StartDate    *time.Time
	EndDate      *time.Time
	Specialty    string // case-insensitive substring on specialty name
	DoctorName   string // case-insensitive substring on doctor full name
	DoctorGender string // exact gender code
}

const dateLayout = "2006-01-02"

// ParseFilters validates raw query parameters into a Filters value. The
// date range must be given as a pair or not at all.
func ParseFilters(startDate, endDate, specialty, doctor, doctorGender string) (Filters, error) {
	f := Filters{
		Specialty:    specialty,
		DoctorName:   doctor,
		DoctorGender: doctorGender,
	}

	if (startDate == "") != (endDate == "") {
		return Filters{}, fmt.Errorf("start_date and end_date must be provided together")
	}
	if startDate != "" {
		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid start_date %q: expected YYYY-MM-DD", startDate)
		}
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid end_date %q: expected YYYY-MM-DD", endDate)
		}
		if end.Before(start) {
			return Filters{}, fmt.Errorf("end_date must not precede start_date")
		}
		f.StartDate = &start
		f.EndDate = &end
	}

	return f, nil
}

// KPIs are the executive summary counters.
type KPIs struct {
	TotalAppointments  int     `json:"total_appointments"`
	Completed          int     `json:"completed"`
	Cancelled          int     `json:"cancelled"`
	CancellationRate   float64 `json:"cancellation_rate"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// MonthCount is one month of the trend series. Months from different years
// merge into the same bucket.
type MonthCount struct {
	Month     int    `json:"month"`
	MonthName string `json:"month_name"`
	Total     int    `json:"total"`
}

// DoctorCount ranks a doctor by completed appointments.
type DoctorCount struct {
	DoctorName string `json:"doctor_name"`
	Completed  int    `json:"completed"`
}

type Summary struct {
	KPIs         KPIs          `json:"kpis"`
	MonthlyTrend []MonthCount  `json:"monthly_trend"`
	TopDoctors   []DoctorCount `json:"top_doctors"`
}

// GroupCount is a generic labelled bucket.
type GroupCount struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

type Demographics struct {
	ByAgeGroup []GroupCount `json:"by_age_group"`
	ByGender   []GroupCount `json:"by_gender"`
}

// HeatmapCell is one (weekday, hour) bucket of the operations heatmap.
type HeatmapCell struct {
	WeekdayName string `json:"weekday_name"`
	Weekday     int    `json:"weekday"`
	Hour        int    `json:"hour"`
	Total       int    `json:"total"`
}

type SpecialtyAvg struct {
	Specialty          string  `json:"specialty"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

type Operations struct {
	Heatmap                []HeatmapCell  `json:"heatmap"`
	AvgDurationBySpecialty []SpecialtyAvg `json:"avg_duration_by_specialty"`
}

type Leakage struct {
	ByReason    []GroupCount `json:"by_reason"`
	BySpecialty []GroupCount `json:"by_specialty"`
}

// Report is the full dashboard payload.
type Report struct {
	Summary      Summary      `json:"summary"`
	Demographics Demographics `json:"demographics"`
	Operations   Operations   `json:"operations"`
	Leakage      Leakage      `json:"leakage"`
}

// ZeroReport is returned when the filtered fact subset is empty. All
// sections are present with zero totals and empty series.
func ZeroReport() *Report {
	return &Report{
		Summary: Summary{
			MonthlyTrend: []MonthCount{},
			TopDoctors:   []DoctorCount{},
		},
		Demographics: Demographics{
			ByAgeGroup: []GroupCount{},
			ByGender:   []GroupCount{},
		},
		Operations: Operations{
			Heatmap:                []HeatmapCell{},
			AvgDurationBySpecialty: []SpecialtyAvg{},
		},
		Leakage: Leakage{
			ByReason:    []GroupCount{},
			BySpecialty: []GroupCount{},
		},
	}
}

// CancellationRate is the percentage of cancelled occurrences, rounded to
// one decimal place.
func CancellationRate(cancelled, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round1(float64(cancelled) / float64(total) * 100)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
