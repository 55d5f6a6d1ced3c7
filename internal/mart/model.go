package mart

import "time"

// Sentinel values used when source data is incomplete.
const (
	// GeneralSpecialtySourceID is the reserved natural key for the synthetic
	// "General" specialty row that absorbs doctors with no specialty.
	GeneralSpecialtySourceID int64 = 9999

	GeneralSpecialtyName = "General"

	// DefaultStatusCode is assigned to facts whose source status is missing
	// or unrecognized.
	DefaultStatusCode = "PENDIENTE"

	// StatusCompleted marks an attended, finished appointment.
	StatusCompleted = "REALIZADA"

	DefaultDurationMinutes = 30

	DefaultLicenseNumber = "S/N"
	DefaultGenderCode    = "X"
)

// SentinelBirthDate stands in for an unknown patient birth date.
var SentinelBirthDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Age group labels derived from birth date at load time.
const (
	AgeGroupChild      = "child"
	AgeGroupAdolescent = "adolescent"
	AgeGroupAdult      = "adult"
	AgeGroupSenior     = "senior"
)

// DimDate is one row per distinct calendar date observed in source data.
// Rows are immutable once created.
type DimDate struct {
	DateKey      int // YYYYMMDD
	CalendarDate time.Time
	Year         int
	HalfYear     int // 1 or 2
	Quarter      int // 1..4
	Month        int
	MonthName    string
	Day          int
	Weekday      int // ISO: 1=Monday .. 7=Sunday
	WeekdayName  string
	IsWeekend    bool
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var weekdayNames = [...]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// DateKey encodes a date as its integer YYYYMMDD key.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ISOWeekday maps Go's Sunday-first weekday to ISO numbering, 1=Monday
// through 7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NewDimDate derives every calendar attribute deterministically from the
// date alone.
func NewDimDate(t time.Time) DimDate {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	month := int(t.Month())
	weekday := ISOWeekday(t)
	halfYear := 1
	if month > 6 {
		halfYear = 2
	}
	return DimDate{
		DateKey:      DateKey(t),
		CalendarDate: t,
		Year:         t.Year(),
		HalfYear:     halfYear,
		Quarter:      (month-1)/3 + 1,
		Month:        month,
		MonthName:    monthNames[month-1],
		Day:          t.Day(),
		Weekday:      weekday,
		WeekdayName:  weekdayNames[weekday-1],
		IsWeekend:    weekday >= 6,
	}
}

// AgeGroupForBirthDate labels a patient's age band as of now. Age is
// computed as whole 365-day years elapsed; a nil birth date counts as
// age zero.
func AgeGroupForBirthDate(birthDate *time.Time, now time.Time) string {
	age := 0
	if birthDate != nil {
		age = int(now.Sub(*birthDate).Hours() / 24 / 365)
	}
	switch {
	case age <= 12:
		return AgeGroupChild
	case age <= 18:
		return AgeGroupAdolescent
	case age > 60:
		return AgeGroupSenior
	default:
		return AgeGroupAdult
	}
}

// DimDoctor is one row per distinct doctor identity from the source
// system. Mutable fields are refreshed on every run, keyed on the
// source-system doctor id.
type DimDoctor struct {
	DoctorKey      int64
	SourceDoctorID int64
	TenantID       int64
	FullName       string
	LicenseNumber  string
	Gender         string
	RegisteredAt   *time.Time
}

// DoctorRef is the resolved lookup entry for a doctor dimension row. Facts
// inherit the tenant of the doctor row they reference.
type DoctorRef struct {
	Key      int64
	TenantID int64
}

type DimSpecialty struct {
	SpecialtyKey      int64
	SourceSpecialtyID int64
	Name              string
}

type DimPatient struct {
	PatientKey      int64
	SourcePatientID int64
	RecordNumber    string
	FullName        string
	Gender          string
	BirthDate       time.Time
	AgeGroup        string
}

type DimStatus struct {
	StatusKey      int64
	Code           string
	Description    string
	IsCancellation bool
	IsAttended     bool
}

// StatusSeed is the fixed status vocabulary loaded on every run.
var StatusSeed = []DimStatus{
	{Code: "REALIZADA", Description: "Cita Realizada", IsCancellation: false, IsAttended: true},
	{Code: "CONFIRMADA", Description: "Confirmada", IsCancellation: false, IsAttended: false},
	{Code: "EN_PROCESO", Description: "En Atención", IsCancellation: false, IsAttended: true},
	{Code: "PENDIENTE", Description: "Pendiente", IsCancellation: false, IsAttended: false},
	{Code: "CANCELADA", Description: "Cancelada", IsCancellation: true, IsAttended: false},
	{Code: "NO_ASISTIO", Description: "No Asistió", IsCancellation: true, IsAttended: false},
}

// FactAppointment is one row per source appointment, grain fixed by the
// unique source appointment id.
type FactAppointment struct {
	AppointmentKey      int64
	TenantID            int64
	DateKey             int
	DoctorKey           int64
	PatientKey          int64
	SpecialtyKey        int64
	StatusKey           int64
	SourceAppointmentID int64
	ScheduleGroupID     *int64
	StartTime           *time.Time // clock time only
	OccurrenceCount     int
	DurationMinutes     int
	LeadTimeDays        int
}
