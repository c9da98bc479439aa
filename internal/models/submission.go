package models

import (
	"fmt"
	"time"
)

// OwnerType distinguishes the two kinds of submitting bodies.
type OwnerType string

const (
	OwnerTypeOrganization OwnerType = "organization"
	OwnerTypeCouncil      OwnerType = "council"
)

// SubmissionKind separates standalone compliance documents from event proposal documents.
type SubmissionKind string

const (
	SubmissionKindDocument      SubmissionKind = "document"
	SubmissionKindEventDocument SubmissionKind = "event_document"
)

// Valid reports whether the kind is known.
func (k SubmissionKind) Valid() bool {
	return k == SubmissionKindDocument || k == SubmissionKindEventDocument
}

// DocumentType enumerates the recognised document types.
type DocumentType string

const (
	DocumentConstitution         DocumentType = "constitution_bylaws"
	DocumentOfficersList         DocumentType = "officers_list"
	DocumentMembersList          DocumentType = "members_list"
	DocumentAdviserAcceptance    DocumentType = "adviser_acceptance"
	DocumentActionPlan           DocumentType = "action_plan"
	DocumentAccomplishmentReport DocumentType = "accomplishment_report"
	DocumentFinancialStatement   DocumentType = "financial_statement"
	DocumentCalendarOfActivities DocumentType = "calendar_of_activities"

	DocumentActivityProposal DocumentType = "activity_proposal"
	DocumentBudgetBreakdown  DocumentType = "budget_breakdown"
	DocumentProgramFlow      DocumentType = "program_flow"
	DocumentParentalConsent  DocumentType = "parental_consent"
	DocumentVenueReservation DocumentType = "venue_reservation"
)

var documentTypesByKind = map[SubmissionKind]map[DocumentType]struct{}{
	SubmissionKindDocument: {
		DocumentConstitution:         {},
		DocumentOfficersList:         {},
		DocumentMembersList:          {},
		DocumentAdviserAcceptance:    {},
		DocumentActionPlan:           {},
		DocumentAccomplishmentReport: {},
		DocumentFinancialStatement:   {},
		DocumentCalendarOfActivities: {},
	},
	SubmissionKindEventDocument: {
		DocumentActivityProposal: {},
		DocumentBudgetBreakdown:  {},
		DocumentProgramFlow:      {},
		DocumentParentalConsent:  {},
		DocumentVenueReservation: {},
	},
}

// AllowedFor reports whether the document type belongs to the given kind.
func (d DocumentType) AllowedFor(kind SubmissionKind) bool {
	types, ok := documentTypesByKind[kind]
	if !ok {
		return false
	}
	_, ok = types[d]
	return ok
}

// SubmissionStatus is the stored, domain-level status.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Stage is the full approval-chain state derived from status and decision stamps.
type Stage string

const (
	StagePending         Stage = "pending"
	StageAdviserApproved Stage = "adviser_approved"
	StageAdviserRejected Stage = "adviser_rejected"
	StageOfficeApproved  Stage = "office_approved"
	StageOfficeRejected  Stage = "office_rejected"
)

// Label returns the presentation label; adviser-approved submissions read as sent to the office.
func (s Stage) Label() string {
	if s == StageAdviserApproved {
		return "sent_to_office"
	}
	return string(s)
}

// IsRejected reports whether the stage is one of the rejected stages.
func (s Stage) IsRejected() bool {
	return s == StageAdviserRejected || s == StageOfficeRejected
}

// Submission is a single document moving through adviser then office approval.
type Submission struct {
	ID                   string           `db:"id" json:"id"`
	OwnerID              string           `db:"owner_id" json:"ownerId"`
	OwnerType            OwnerType        `db:"owner_type" json:"ownerType"`
	Kind                 SubmissionKind   `db:"kind" json:"kind"`
	DocumentType         DocumentType     `db:"document_type" json:"documentType"`
	EventProposalID      *string          `db:"event_proposal_id" json:"eventProposalId,omitempty"`
	AcademicTermID       *string          `db:"academic_term_id" json:"academicTermId,omitempty"`
	ArtifactRef          string           `db:"artifact_ref" json:"artifactRef"`
	Status               SubmissionStatus `db:"status" json:"status"`
	AdviserApprovedAt    *time.Time       `db:"adviser_approved_at" json:"adviserApprovedAt,omitempty"`
	AdviserRejectedAt    *time.Time       `db:"adviser_rejected_at" json:"adviserRejectedAt,omitempty"`
	AdviserID            *string          `db:"adviser_id" json:"adviserId,omitempty"`
	OfficeApprovedAt     *time.Time       `db:"office_approved_at" json:"officeApprovedAt,omitempty"`
	OfficeRejectedAt     *time.Time       `db:"office_rejected_at" json:"officeRejectedAt,omitempty"`
	OfficeID             *string          `db:"office_id" json:"officeId,omitempty"`
	RejectReason         *string          `db:"reject_reason" json:"rejectReason,omitempty"`
	ResubmissionDeadline *time.Time       `db:"resubmission_deadline" json:"resubmissionDeadline,omitempty"`
	SubmittedAt          time.Time        `db:"submitted_at" json:"submittedAt"`
	Version              int              `db:"version" json:"version"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

// Stage derives the approval-chain state, rejecting rows whose fields disagree.
func (s *Submission) Stage() (Stage, error) {
	switch s.Status {
	case SubmissionStatusPending:
		if s.AdviserApprovedAt != nil || s.AdviserRejectedAt != nil || s.OfficeApprovedAt != nil || s.OfficeRejectedAt != nil {
			return "", fmt.Errorf("submission %s: pending with decision timestamps", s.ID)
		}
		return StagePending, nil
	case SubmissionStatusApproved:
		if s.AdviserApprovedAt == nil {
			return "", fmt.Errorf("submission %s: approved without adviser approval", s.ID)
		}
		if s.OfficeApprovedAt != nil {
			return StageOfficeApproved, nil
		}
		return StageAdviserApproved, nil
	case SubmissionStatusRejected:
		if s.RejectReason == nil || *s.RejectReason == "" {
			return "", fmt.Errorf("submission %s: rejected without reason", s.ID)
		}
		switch {
		case s.OfficeRejectedAt != nil:
			return StageOfficeRejected, nil
		case s.AdviserRejectedAt != nil:
			return StageAdviserRejected, nil
		default:
			return "", fmt.Errorf("submission %s: rejected without decision timestamp", s.ID)
		}
	default:
		return "", fmt.Errorf("submission %s: unknown status %q", s.ID, s.Status)
	}
}

// TermID returns the academic term identifier or an empty string.
func (s *Submission) TermID() string {
	if s.AcademicTermID == nil {
		return ""
	}
	return *s.AcademicTermID
}

// SubmissionView decorates a submission with its derived stage label.
type SubmissionView struct {
	Submission
	Stage      Stage  `json:"stage"`
	StageLabel string `json:"stageLabel"`
}

// SubmissionFilter constrains submission listings.
type SubmissionFilter struct {
	OwnerID         string
	TermID          string
	EventProposalID string
	Kind            SubmissionKind
	Status          []SubmissionStatus
	Limit           int
	Offset          int
}
