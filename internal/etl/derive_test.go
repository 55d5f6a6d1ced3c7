package etl

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/mart"
	"github.com/clinsight/clinsight/internal/source"
)

func testLookups() *Lookups {
	return &Lookups{
		Dates:               map[int]bool{20250307: true, 20250308: true},
		Doctors:             map[int64]mart.DoctorRef{1: {Key: 11, TenantID: 10}},
		Specialties:         map[int64]int64{100: 21, mart.GeneralSpecialtySourceID: 22},
		GeneralSpecialtyKey: 22,
		Patients:            map[int64]int64{50: 31},
		Statuses:            map[string]int64{"REALIZADA": 41, "PENDIENTE": 42, "CANCELADA": 43},
		DefaultStatusKey:    42,
	}
}

func TestDeriver_ResolvesAndStampsTenant(t *testing.T) {
	src := &mockReader{
		appointments: []source.AppointmentRow{
			{
				ID:                1,
				Date:              day(2025, 3, 7),
				StartTime:         clock(9, 0),
				EndTime:           clock(9, 45),
				StatusCode:        strPtr("REALIZADA"),
				CreatedAt:         timePtr(time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)),
				GroupID:           i64Ptr(7),
				DoctorID:          i64Ptr(1),
				PatientID:         i64Ptr(50),
				DoctorSpecialtyID: i64Ptr(100),
			},
		},
	}
	facts := newMockFactRepo()
	deriver := NewDeriver(src, facts, 2000, 2000, zerolog.Nop())

	report, err := deriver.Run(context.Background(), testLookups())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Candidates != 1 || report.Inserted != 1 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	f, ok := facts.facts[1]
	if !ok {
		t.Fatal("expected fact for appointment 1")
	}
	if f.TenantID != 10 {
		t.Errorf("fact must inherit the doctor's tenant, got %d", f.TenantID)
	}
	if f.DateKey != 20250307 || f.DoctorKey != 11 || f.PatientKey != 31 {
		t.Errorf("key resolution wrong: %+v", f)
	}
	if f.SpecialtyKey != 21 {
		t.Errorf("expected specialty key 21, got %d", f.SpecialtyKey)
	}
	if f.StatusKey != 41 {
		t.Errorf("expected status key 41, got %d", f.StatusKey)
	}
	if f.DurationMinutes != 45 {
		t.Errorf("expected duration 45, got %d", f.DurationMinutes)
	}
	if f.LeadTimeDays != 3 {
		t.Errorf("expected lead time 3 days, got %d", f.LeadTimeDays)
	}
	if f.OccurrenceCount != 1 {
		t.Errorf("expected occurrence count 1, got %d", f.OccurrenceCount)
	}
}

func TestDeriver_SkipsUnresolvedRows(t *testing.T) {
	src := &mockReader{
		appointments: []source.AppointmentRow{
			// no doctor reference at all
			{ID: 1, Date: day(2025, 3, 7), PatientID: i64Ptr(50)},
			// doctor id that never synced
			{ID: 2, Date: day(2025, 3, 7), DoctorID: i64Ptr(99), PatientID: i64Ptr(50)},
			// patient id that never synced
			{ID: 3, Date: day(2025, 3, 7), DoctorID: i64Ptr(1), PatientID: i64Ptr(99)},
			// date never synced
			{ID: 4, Date: day(2024, 1, 1), DoctorID: i64Ptr(1), PatientID: i64Ptr(50)},
			// fully resolvable
			{ID: 5, Date: day(2025, 3, 7), DoctorID: i64Ptr(1), PatientID: i64Ptr(50)},
		},
	}
	facts := newMockFactRepo()
	deriver := NewDeriver(src, facts, 2000, 2000, zerolog.Nop())

	report, err := deriver.Run(context.Background(), testLookups())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Candidates != 5 {
		t.Errorf("expected 5 candidates, got %d", report.Candidates)
	}
	if report.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", report.Inserted)
	}
	if report.Skipped != 4 {
		t.Errorf("expected 4 skipped, got %d", report.Skipped)
	}
	if report.SkipCounts[SkipDoctorUnresolved] != 2 {
		t.Errorf("expected 2 doctor skips, got %d", report.SkipCounts[SkipDoctorUnresolved])
	}
	if report.SkipCounts[SkipPatientUnresolved] != 1 {
		t.Errorf("expected 1 patient skip, got %d", report.SkipCounts[SkipPatientUnresolved])
	}
	if report.SkipCounts[SkipDateUnresolved] != 1 {
		t.Errorf("expected 1 date skip, got %d", report.SkipCounts[SkipDateUnresolved])
	}
	if len(report.SkippedRows) != 4 {
		t.Errorf("expected 4 skip outcomes, got %d", len(report.SkippedRows))
	}
	if report.Candidates != report.Inserted+report.Skipped {
		t.Error("every candidate must be either inserted or skipped")
	}
}

func TestDeriver_SecondRunIsIdempotent(t *testing.T) {
	src := &mockReader{
		appointments: []source.AppointmentRow{
			{ID: 1, Date: day(2025, 3, 7), DoctorID: i64Ptr(1), PatientID: i64Ptr(50)},
			{ID: 2, Date: day(2025, 3, 7), DoctorID: i64Ptr(1), PatientID: i64Ptr(50)},
		},
	}
	facts := newMockFactRepo()
	deriver := NewDeriver(src, facts, 2000, 2000, zerolog.Nop())

	if _, err := deriver.Run(context.Background(), testLookups()); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	report, err := deriver.Run(context.Background(), testLookups())
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if report.Candidates != 0 || report.Inserted != 0 {
		t.Errorf("re-run must not produce new facts: %+v", report)
	}
	if len(facts.facts) != 2 {
		t.Errorf("expected 2 facts total, got %d", len(facts.facts))
	}
}

func TestDeriver_ChunkingAndBatching(t *testing.T) {
	var appts []source.AppointmentRow
	for i := int64(1); i <= 25; i++ {
		appts = append(appts, source.AppointmentRow{
			ID: i, Date: day(2025, 3, 7), DoctorID: i64Ptr(1), PatientID: i64Ptr(50),
		})
	}
	src := &mockReader{appointments: appts}
	facts := newMockFactRepo()
	// small chunk and batch sizes force multiple pages and flushes
	deriver := NewDeriver(src, facts, 4, 3, zerolog.Nop())

	report, err := deriver.Run(context.Background(), testLookups())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.Inserted != 25 {
		t.Errorf("expected 25 inserted, got %d", report.Inserted)
	}
	if len(facts.facts) != 25 {
		t.Errorf("expected 25 facts stored, got %d", len(facts.facts))
	}
}

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  int
	}{
		{"both present", clock(9, 0), clock(9, 45), 45},
		{"missing end defaults", clock(9, 0), nil, mart.DefaultDurationMinutes},
		{"missing start defaults", nil, clock(9, 45), mart.DefaultDurationMinutes},
		{"both missing defaults", nil, nil, mart.DefaultDurationMinutes},
		{"inverted range clamps to zero", clock(10, 0), clock(9, 0), 0},
		{"zero length", clock(9, 0), clock(9, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := source.AppointmentRow{StartTime: tt.start, EndTime: tt.end}
			if got := durationMinutes(row); got != tt.want {
				t.Errorf("durationMinutes = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLeadTimeDays(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		created *time.Time
		want    int
	}{
		{"three days ahead", day(2025, 3, 7), timePtr(time.Date(2025, 3, 4, 23, 59, 0, 0, time.UTC)), 3},
		{"same day", day(2025, 3, 7), timePtr(time.Date(2025, 3, 7, 8, 0, 0, 0, time.UTC)), 0},
		{"missing creation time", day(2025, 3, 7), nil, 0},
		{"booked after the date", day(2025, 3, 7), timePtr(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := source.AppointmentRow{Date: tt.date, CreatedAt: tt.created}
			if got := leadTimeDays(row); got != tt.want {
				t.Errorf("leadTimeDays = %d, want %d", got, tt.want)
			}
		})
	}
}
