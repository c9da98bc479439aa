package dto

import "github.com/noah-isme/org-recognition-api/internal/models"

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// SemesterRequest describes one semester of a term.
type SemesterRequest struct {
	Label     models.SemesterLabel `json:"label" validate:"required,oneof=1st 2nd"`
	StartDate string               `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string               `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// CreateTermRequest is the payload for creating an academic term.
type CreateTermRequest struct {
	StartDate           string                     `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate             string                     `json:"endDate" validate:"required,datetime=2006-01-02"`
	DocumentWindowStart string                     `json:"documentWindowStart" validate:"required,datetime=2006-01-02"`
	DocumentWindowEnd   string                     `json:"documentWindowEnd" validate:"required,datetime=2006-01-02"`
	RecognitionValidity models.RecognitionValidity `json:"recognitionValidity" validate:"omitempty,oneof=automatic manual"`
	Semesters           []SemesterRequest          `json:"semesters" validate:"omitempty,len=2,dive"`
}

// UpdateTermRequest replaces a term's ranges. Status may only be set to archived;
// every other status is derived from the dates.
type UpdateTermRequest struct {
	StartDate           string                     `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate             string                     `json:"endDate" validate:"required,datetime=2006-01-02"`
	DocumentWindowStart string                     `json:"documentWindowStart" validate:"required,datetime=2006-01-02"`
	DocumentWindowEnd   string                     `json:"documentWindowEnd" validate:"required,datetime=2006-01-02"`
	RecognitionValidity models.RecognitionValidity `json:"recognitionValidity" validate:"omitempty,oneof=automatic manual"`
	Status              *models.CalendarStatus     `json:"status" validate:"omitempty,oneof=archived"`
	Semesters           []SemesterRequest          `json:"semesters" validate:"omitempty,len=2,dive"`
}
