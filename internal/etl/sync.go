package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/mart"
	"github.com/clinsight/clinsight/internal/source"
)

// Lookups bundles the natural-key resolution maps produced by dimension
// synchronization. The derivation stage resolves every fact against these
// maps without touching the dimension tables again.
type Lookups struct {
	Dates               map[int]bool
	Doctors             map[int64]mart.DoctorRef
	Specialties         map[int64]int64
	GeneralSpecialtyKey int64
	Patients            map[int64]int64
	Statuses            map[string]int64
	DefaultStatusKey    int64
}

// SpecialtyKey resolves a doctor's specialty, falling back to the sentinel
// General row.
func (l *Lookups) SpecialtyKey(sourceID *int64) int64 {
	if sourceID != nil {
		if key, ok := l.Specialties[*sourceID]; ok {
			return key
		}
	}
	return l.GeneralSpecialtyKey
}

// StatusKey resolves a status code, falling back to the default pending
// status for missing or unrecognized codes.
func (l *Lookups) StatusKey(code *string) int64 {
	if code != nil {
		if key, ok := l.Statuses[*code]; ok {
			return key
		}
	}
	return l.DefaultStatusKey
}

// SyncReport counts the work done by one dimension synchronization pass.
type SyncReport struct {
	NewDates    int `json:"new_dates"`
	Doctors     int `json:"doctors"`
	Specialties int `json:"specialties"`
	Patients    int `json:"patients"`
	Statuses    int `json:"statuses"`
}

// Synchronizer brings every dimension up to date with the source system.
type Synchronizer struct {
	src  source.Reader
	dims mart.DimensionRepository
	now  func() time.Time
	log  zerolog.Logger
}

func NewSynchronizer(src source.Reader, dims mart.DimensionRepository, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{src: src, dims: dims, now: time.Now, log: log}
}

// SyncAll runs every dimension sync in dependency-free order and returns
// the lookup maps the derivation stage needs.
func (s *Synchronizer) SyncAll(ctx context.Context) (*Lookups, *SyncReport, error) {
	lk := &Lookups{}
	report := &SyncReport{}

	var err error
	if report.NewDates, lk.Dates, err = s.syncDates(ctx); err != nil {
		return nil, nil, fmt.Errorf("sync dates: %w", err)
	}
	if report.Doctors, lk.Doctors, err = s.syncDoctors(ctx); err != nil {
		return nil, nil, fmt.Errorf("sync doctors: %w", err)
	}
	if report.Specialties, lk.Specialties, lk.GeneralSpecialtyKey, err = s.syncSpecialties(ctx); err != nil {
		return nil, nil, fmt.Errorf("sync specialties: %w", err)
	}
	if report.Patients, lk.Patients, err = s.syncPatients(ctx); err != nil {
		return nil, nil, fmt.Errorf("sync patients: %w", err)
	}
	if report.Statuses, lk.Statuses, lk.DefaultStatusKey, err = s.syncStatuses(ctx); err != nil {
		return nil, nil, fmt.Errorf("sync statuses: %w", err)
	}

	s.log.Info().
		Int("new_dates", report.NewDates).
		Int("doctors", report.Doctors).
		Int("specialties", report.Specialties).
		Int("patients", report.Patients).
		Msg("dimensions synchronized")

	return lk, report, nil
}

// syncDates is a pure set difference: dates are immutable, so only rows for
// unseen dates are created.
func (s *Synchronizer) syncDates(ctx context.Context) (int, map[int]bool, error) {
	sourceDates, err := s.src.DistinctDates(ctx)
	if err != nil {
		return 0, nil, err
	}
	existing, err := s.dims.DateKeys(ctx)
	if err != nil {
		return 0, nil, err
	}

	var newDates []mart.DimDate
	for _, d := range sourceDates {
		if existing[mart.DateKey(d)] {
			continue
		}
		dim := mart.NewDimDate(d)
		newDates = append(newDates, dim)
		existing[dim.DateKey] = true
	}

	if err := s.dims.InsertDates(ctx, newDates); err != nil {
		return 0, nil, err
	}
	return len(newDates), existing, nil
}

func (s *Synchronizer) syncDoctors(ctx context.Context) (int, map[int64]mart.DoctorRef, error) {
	doctors, err := s.src.Doctors(ctx)
	if err != nil {
		return 0, nil, err
	}

	for _, d := range doctors {
		dim := mart.DimDoctor{
			SourceDoctorID: d.ID,
			TenantID:       d.TenantID,
			FullName:       d.FullName,
			LicenseNumber:  mart.DefaultLicenseNumber,
			Gender:         mart.DefaultGenderCode,
			RegisteredAt:   d.RegisteredAt,
		}
		if d.LicenseNumber != nil && *d.LicenseNumber != "" {
			dim.LicenseNumber = *d.LicenseNumber
		}
		if d.Gender != nil && *d.Gender != "" {
			dim.Gender = *d.Gender
		}
		if err := s.dims.UpsertDoctor(ctx, dim); err != nil {
			return 0, nil, fmt.Errorf("doctor %d: %w", d.ID, err)
		}
	}

	refs, err := s.dims.DoctorKeys(ctx)
	return len(doctors), refs, err
}

func (s *Synchronizer) syncSpecialties(ctx context.Context) (int, map[int64]int64, int64, error) {
	specialties, err := s.src.Specialties(ctx)
	if err != nil {
		return 0, nil, 0, err
	}

	for _, sp := range specialties {
		if err := s.dims.UpsertSpecialty(ctx, mart.DimSpecialty{
			SourceSpecialtyID: sp.ID,
			Name:              sp.Name,
		}); err != nil {
			return 0, nil, 0, fmt.Errorf("specialty %d: %w", sp.ID, err)
		}
	}

	generalKey, err := s.dims.EnsureGeneralSpecialty(ctx)
	if err != nil {
		return 0, nil, 0, err
	}

	keys, err := s.dims.SpecialtyKeys(ctx)
	return len(specialties), keys, generalKey, err
}

func (s *Synchronizer) syncPatients(ctx context.Context) (int, map[int64]int64, error) {
	patients, err := s.src.Patients(ctx)
	if err != nil {
		return 0, nil, err
	}

	now := s.now()
	for _, p := range patients {
		dim := mart.DimPatient{
			SourcePatientID: p.ID,
			RecordNumber:    p.RecordNumber,
			FullName:        p.FullName,
			Gender:          mart.DefaultGenderCode,
			BirthDate:       mart.SentinelBirthDate,
			AgeGroup:        mart.AgeGroupForBirthDate(p.BirthDate, now),
		}
		if p.Gender != nil && *p.Gender != "" {
			dim.Gender = *p.Gender
		}
		if p.BirthDate != nil {
			dim.BirthDate = *p.BirthDate
		}
		if err := s.dims.UpsertPatient(ctx, dim); err != nil {
			return 0, nil, fmt.Errorf("patient %d: %w", p.ID, err)
		}
	}

	keys, err := s.dims.PatientKeys(ctx)
	return len(patients), keys, err
}

func (s *Synchronizer) syncStatuses(ctx context.Context) (int, map[string]int64, int64, error) {
	for _, st := range mart.StatusSeed {
		if err := s.dims.UpsertStatus(ctx, st); err != nil {
			return 0, nil, 0, fmt.Errorf("status %s: %w", st.Code, err)
		}
	}

	keys, err := s.dims.StatusKeys(ctx)
	if err != nil {
		return 0, nil, 0, err
	}
	defaultKey, ok := keys[mart.DefaultStatusCode]
	if !ok {
		return 0, nil, 0, fmt.Errorf("default status %s missing after seed", mart.DefaultStatusCode)
	}
	return len(mart.StatusSeed), keys, defaultKey, nil
}
