package etl

import (
	"context"
	"sort"
	"time"

	"github.com/clinsight/clinsight/internal/mart"
	"github.com/clinsight/clinsight/internal/source"
)

// mockReader serves canned source rows.
type mockReader struct {
	doctors      []source.DoctorRow
	specialties  []source.SpecialtyRow
	patients     []source.PatientRow
	appointments []source.AppointmentRow
}

func (m *mockReader) DistinctDates(ctx context.Context) ([]time.Time, error) {
	seen := make(map[int]bool)
	var dates []time.Time
	for _, a := range m.appointments {
		key := mart.DateKey(a.Date)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, a.Date)
		}
	}
	return dates, nil
}

func (m *mockReader) Doctors(ctx context.Context) ([]source.DoctorRow, error) {
	return m.doctors, nil
}

func (m *mockReader) Specialties(ctx context.Context) ([]source.SpecialtyRow, error) {
	return m.specialties, nil
}

func (m *mockReader) Patients(ctx context.Context) ([]source.PatientRow, error) {
	return m.patients, nil
}

func (m *mockReader) AppointmentsAfter(ctx context.Context, afterID int64, limit int) ([]source.AppointmentRow, error) {
	sorted := make([]source.AppointmentRow, len(m.appointments))
	copy(sorted, m.appointments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var page []source.AppointmentRow
	for _, a := range sorted {
		if a.ID <= afterID {
			continue
		}
		page = append(page, a)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

// mockDimensionRepo is a map-backed DimensionRepository assigning surrogate
// keys sequentially.
type mockDimensionRepo struct {
	nextKey     int64
	dates       map[int]mart.DimDate
	doctors     map[int64]mart.DimDoctor
	specialties map[int64]mart.DimSpecialty
	patients    map[int64]mart.DimPatient
	statuses    map[string]mart.DimStatus
}

func newMockDimensionRepo() *mockDimensionRepo {
	return &mockDimensionRepo{
		dates:       make(map[int]mart.DimDate),
		doctors:     make(map[int64]mart.DimDoctor),
		specialties: make(map[int64]mart.DimSpecialty),
		patients:    make(map[int64]mart.DimPatient),
		statuses:    make(map[string]mart.DimStatus),
	}
}

func (m *mockDimensionRepo) next() int64 {
	m.nextKey++
	return m.nextKey
}

func (m *mockDimensionRepo) DateKeys(ctx context.Context) (map[int]bool, error) {
	keys := make(map[int]bool, len(m.dates))
	for k := range m.dates {
		keys[k] = true
	}
	return keys, nil
}

func (m *mockDimensionRepo) InsertDates(ctx context.Context, dates []mart.DimDate) error {
	for _, d := range dates {
		m.dates[d.DateKey] = d
	}
	return nil
}

func (m *mockDimensionRepo) UpsertDoctor(ctx context.Context, d mart.DimDoctor) error {
	if existing, ok := m.doctors[d.SourceDoctorID]; ok {
		d.DoctorKey = existing.DoctorKey
	} else {
		d.DoctorKey = m.next()
	}
	m.doctors[d.SourceDoctorID] = d
	return nil
}

func (m *mockDimensionRepo) DoctorKeys(ctx context.Context) (map[int64]mart.DoctorRef, error) {
	refs := make(map[int64]mart.DoctorRef, len(m.doctors))
	for id, d := range m.doctors {
		refs[id] = mart.DoctorRef{Key: d.DoctorKey, TenantID: d.TenantID}
	}
	return refs, nil
}

func (m *mockDimensionRepo) UpsertSpecialty(ctx context.Context, s mart.DimSpecialty) error {
	if existing, ok := m.specialties[s.SourceSpecialtyID]; ok {
		s.SpecialtyKey = existing.SpecialtyKey
	} else {
		s.SpecialtyKey = m.next()
	}
	m.specialties[s.SourceSpecialtyID] = s
	return nil
}

func (m *mockDimensionRepo) SpecialtyKeys(ctx context.Context) (map[int64]int64, error) {
	keys := make(map[int64]int64, len(m.specialties))
	for id, s := range m.specialties {
		keys[id] = s.SpecialtyKey
	}
	return keys, nil
}

func (m *mockDimensionRepo) EnsureGeneralSpecialty(ctx context.Context) (int64, error) {
	if existing, ok := m.specialties[mart.GeneralSpecialtySourceID]; ok {
		return existing.SpecialtyKey, nil
	}
	s := mart.DimSpecialty{
		SpecialtyKey:      m.next(),
		SourceSpecialtyID: mart.GeneralSpecialtySourceID,
		Name:              mart.GeneralSpecialtyName,
	}
	m.specialties[s.SourceSpecialtyID] = s
	return s.SpecialtyKey, nil
}

func (m *mockDimensionRepo) UpsertPatient(ctx context.Context, p mart.DimPatient) error {
	if existing, ok := m.patients[p.SourcePatientID]; ok {
		p.PatientKey = existing.PatientKey
	} else {
		p.PatientKey = m.next()
	}
	m.patients[p.SourcePatientID] = p
	return nil
}

func (m *mockDimensionRepo) PatientKeys(ctx context.Context) (map[int64]int64, error) {
	keys := make(map[int64]int64, len(m.patients))
	for id, p := range m.patients {
		keys[id] = p.PatientKey
	}
	return keys, nil
}

func (m *mockDimensionRepo) UpsertStatus(ctx context.Context, s mart.DimStatus) error {
	if existing, ok := m.statuses[s.Code]; ok {
		s.StatusKey = existing.StatusKey
	} else {
		s.StatusKey = m.next()
	}
	m.statuses[s.Code] = s
	return nil
}

func (m *mockDimensionRepo) StatusKeys(ctx context.Context) (map[string]int64, error) {
	keys := make(map[string]int64, len(m.statuses))
	for code, s := range m.statuses {
		keys[code] = s.StatusKey
	}
	return keys, nil
}

// mockFactRepo is a map-backed FactRepository.
type mockFactRepo struct {
	facts map[int64]mart.FactAppointment // by source appointment id
}

func newMockFactRepo() *mockFactRepo {
	return &mockFactRepo{facts: make(map[int64]mart.FactAppointment)}
}

func (m *mockFactRepo) ExistingSourceIDs(ctx context.Context) (map[int64]bool, error) {
	ids := make(map[int64]bool, len(m.facts))
	for id := range m.facts {
		ids[id] = true
	}
	return ids, nil
}

func (m *mockFactRepo) InsertFacts(ctx context.Context, facts []mart.FactAppointment) error {
	for _, f := range facts {
		m.facts[f.SourceAppointmentID] = f
	}
	return nil
}
