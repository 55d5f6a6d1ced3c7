package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/mart"
	"github.com/clinsight/clinsight/internal/source"
)

// SkipReason names why a candidate appointment produced no fact row.
type SkipReason string

const (
	SkipDoctorUnresolved  SkipReason = "doctor_unresolved"
	SkipPatientUnresolved SkipReason = "patient_unresolved"
	SkipDateUnresolved    SkipReason = "date_unresolved"
)

// RowOutcome records one skipped appointment.
type RowOutcome struct {
	SourceID int64      `json:"source_id"`
	Reason   SkipReason `json:"reason"`
}

// maxReportedSkips caps the per-row detail kept in a report; the aggregate
// counters are always exact.
const maxReportedSkips = 100

// DeriveReport accounts for every candidate row of a derivation pass.
type DeriveReport struct {
	Candidates  int                `json:"candidates"`
	Inserted    int                `json:"inserted"`
	Skipped     int                `json:"skipped"`
	SkipCounts  map[SkipReason]int `json:"skip_counts,omitempty"`
	SkippedRows []RowOutcome       `json:"skipped_rows,omitempty"`
}

func (r *DeriveReport) skip(id int64, reason SkipReason) {
	r.Skipped++
	if r.SkipCounts == nil {
		r.SkipCounts = make(map[SkipReason]int)
	}
	r.SkipCounts[reason]++
	if len(r.SkippedRows) < maxReportedSkips {
		r.SkippedRows = append(r.SkippedRows, RowOutcome{SourceID: id, Reason: reason})
	}
}

// Deriver streams source appointments in chunks, derives fact rows against
// the dimension lookups, and bulk-inserts them in batches.
type Deriver struct {
	src       source.Reader
	facts     mart.FactRepository
	chunkSize int
	batchSize int
	log       zerolog.Logger
}

func NewDeriver(src source.Reader, facts mart.FactRepository, chunkSize, batchSize int, log zerolog.Logger) *Deriver {
	return &Deriver{src: src, facts: facts, chunkSize: chunkSize, batchSize: batchSize, log: log}
}

// Run processes every appointment not yet present in the fact table.
// Re-running after a load is a no-op: the grain is fixed by the source
// appointment id.
func (d *Deriver) Run(ctx context.Context, lk *Lookups) (*DeriveReport, error) {
	existing, err := d.facts.ExistingSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("existing source ids: %w", err)
	}

	report := &DeriveReport{}
	batch := make([]mart.FactAppointment, 0, d.batchSize)
	afterID := int64(0)

	for {
		rows, err := d.src.AppointmentsAfter(ctx, afterID, d.chunkSize)
		if err != nil {
			return nil, fmt.Errorf("read appointments after %d: %w", afterID, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			afterID = row.ID
			if existing[row.ID] {
				continue
			}
			report.Candidates++

			fact, reason := d.deriveRow(row, lk)
			if reason != "" {
				report.skip(row.ID, reason)
				continue
			}

			batch = append(batch, fact)
			if len(batch) >= d.batchSize {
				if err := d.flush(ctx, batch, report); err != nil {
					return nil, err
				}
				batch = batch[:0]
			}
		}

		if len(rows) < d.chunkSize {
			break
		}
	}

	if err := d.flush(ctx, batch, report); err != nil {
		return nil, err
	}

	d.log.Info().
		Int("candidates", report.Candidates).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Msg("fact derivation finished")

	return report, nil
}

// deriveRow resolves one appointment against the dimension lookups. A fact
// is only produced when its date, doctor and patient all resolve; specialty
// and status fall back to their sentinels instead.
func (d *Deriver) deriveRow(row source.AppointmentRow, lk *Lookups) (mart.FactAppointment, SkipReason) {
	dateKey := mart.DateKey(row.Date)
	if !lk.Dates[dateKey] {
		return mart.FactAppointment{}, SkipDateUnresolved
	}

	if row.DoctorID == nil {
		return mart.FactAppointment{}, SkipDoctorUnresolved
	}
	doctor, ok := lk.Doctors[*row.DoctorID]
	if !ok {
		return mart.FactAppointment{}, SkipDoctorUnresolved
	}

	if row.PatientID == nil {
		return mart.FactAppointment{}, SkipPatientUnresolved
	}
	patientKey, ok := lk.Patients[*row.PatientID]
	if !ok {
		return mart.FactAppointment{}, SkipPatientUnresolved
	}

	return mart.FactAppointment{
		TenantID:            doctor.TenantID,
		DateKey:             dateKey,
		DoctorKey:           doctor.Key,
		PatientKey:          patientKey,
		SpecialtyKey:        lk.SpecialtyKey(row.DoctorSpecialtyID),
		StatusKey:           lk.StatusKey(row.StatusCode),
		SourceAppointmentID: row.ID,
		ScheduleGroupID:     row.GroupID,
		StartTime:           row.StartTime,
		OccurrenceCount:     1,
		DurationMinutes:     durationMinutes(row),
		LeadTimeDays:        leadTimeDays(row),
	}, ""
}

// durationMinutes measures the appointment length, defaulting when either
// endpoint is missing and clamping inverted ranges to zero.
func durationMinutes(row source.AppointmentRow) int {
	if row.StartTime == nil || row.EndTime == nil {
		return mart.DefaultDurationMinutes
	}
	minutes := int(row.EndTime.Sub(*row.StartTime).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

// leadTimeDays is the whole days between booking and the appointment date.
func leadTimeDays(row source.AppointmentRow) int {
	if row.CreatedAt == nil {
		return 0
	}
	created := dateOnly(*row.CreatedAt)
	appt := dateOnly(row.Date)
	return int(appt.Sub(created).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (d *Deriver) flush(ctx context.Context, batch []mart.FactAppointment, report *DeriveReport) error {
	if len(batch) == 0 {
		return nil
	}
	if err := d.facts.InsertFacts(ctx, batch); err != nil {
		return fmt.Errorf("insert fact batch: %w", err)
	}
	report.Inserted += len(batch)
	return nil
}
