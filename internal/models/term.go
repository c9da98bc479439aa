package models

import (
	"fmt"
	"time"
)

// CalendarStatus is the lifecycle status shared by academic terms and semesters.
type CalendarStatus string

const (
	CalendarStatusInactive CalendarStatus = "inactive"
	CalendarStatusActive   CalendarStatus = "active"
	CalendarStatusArchived CalendarStatus = "archived"
)

// Valid reports whether the status is one of the known values.
func (s CalendarStatus) Valid() bool {
	switch s {
	case CalendarStatusInactive, CalendarStatusActive, CalendarStatusArchived:
		return true
	default:
		return false
	}
}

// RecognitionValidity decides whether a term is archived by date or only by an administrator.
type RecognitionValidity string

const (
	RecognitionValidityAutomatic RecognitionValidity = "automatic"
	RecognitionValidityManual    RecognitionValidity = "manual"
)

// Valid reports whether the validity mode is known.
func (v RecognitionValidity) Valid() bool {
	return v == RecognitionValidityAutomatic || v == RecognitionValidityManual
}

// SemesterLabel identifies one of the two semesters of a term.
type SemesterLabel string

const (
	SemesterFirst  SemesterLabel = "1st"
	SemesterSecond SemesterLabel = "2nd"
)

// AcademicTerm is one academic year with its recognition document window.
type AcademicTerm struct {
	ID                  string              `db:"id" json:"id"`
	SchoolYear          string              `db:"school_year" json:"schoolYear"`
	StartDate           time.Time           `db:"start_date" json:"startDate"`
	EndDate             time.Time           `db:"end_date" json:"endDate"`
	DocumentWindowStart time.Time           `db:"document_window_start" json:"documentWindowStart"`
	DocumentWindowEnd   time.Time           `db:"document_window_end" json:"documentWindowEnd"`
	Status              CalendarStatus      `db:"status" json:"status"`
	RecognitionValidity RecognitionValidity `db:"recognition_validity" json:"recognitionValidity"`
	CleanedAt           *time.Time          `db:"cleaned_at" json:"cleanedAt,omitempty"`
	CreatedAt           time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updatedAt"`

	Semesters []Semester `db:"-" json:"semesters,omitempty"`
}

// Range returns the term's inclusive date range.
func (t AcademicTerm) Range() DateRange {
	return DateRange{Start: t.StartDate, End: t.EndDate}
}

// DocumentWindow returns the inclusive recognition document window.
func (t AcademicTerm) DocumentWindow() DateRange {
	return DateRange{Start: t.DocumentWindowStart, End: t.DocumentWindowEnd}
}

// IsArchived reports whether the stored status is archived. Archival is sticky.
func (t AcademicTerm) IsArchived() bool {
	return t.Status == CalendarStatusArchived
}

// EffectiveStatus combines the sticky archived flag with the date-derived status.
func (t AcademicTerm) EffectiveStatus(today time.Time) CalendarStatus {
	if t.IsArchived() {
		return CalendarStatusArchived
	}
	derived := DeriveStatus(t.Range(), today)
	if derived == CalendarStatusArchived && t.RecognitionValidity == RecognitionValidityManual {
		return CalendarStatusActive
	}
	return derived
}

// Semester is one of the two sub-periods of an academic term.
type Semester struct {
	ID        string         `db:"id" json:"id"`
	TermID    string         `db:"term_id" json:"termId"`
	Label     SemesterLabel  `db:"label" json:"label"`
	StartDate time.Time      `db:"start_date" json:"startDate"`
	EndDate   time.Time      `db:"end_date" json:"endDate"`
	Status    CalendarStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Range returns the semester's inclusive date range.
func (s Semester) Range() DateRange {
	return DateRange{Start: s.StartDate, End: s.EndDate}
}

// SchoolYearLabel derives the "YYYY-YYYY" label from a term's start and end years.
func SchoolYearLabel(start, end time.Time) string {
	return fmt.Sprintf("%d-%d", start.Year(), end.Year())
}
