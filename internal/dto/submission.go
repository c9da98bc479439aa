package dto

import (
	"time"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

// Decision is an approver's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// CreateSubmissionRequest is the payload for a new submission. The owner is the acting OWNER.
type CreateSubmissionRequest struct {
	OwnerType       models.OwnerType      `json:"ownerType" validate:"required,oneof=organization council"`
	Kind            models.SubmissionKind `json:"kind" validate:"required,oneof=document event_document"`
	DocumentType    models.DocumentType   `json:"documentType" validate:"required"`
	EventProposalID string                `json:"eventProposalId" validate:"required_if=Kind event_document"`
	AcademicTermID  string                `json:"academicTermId" validate:"omitempty,uuid"`
	ArtifactRef     string                `json:"artifactRef" validate:"required,max=1024"`
}

// DecisionRequest carries an adviser or office verdict.
type DecisionRequest struct {
	Decision             Decision   `json:"decision" validate:"required,oneof=approve reject"`
	Reason               string     `json:"reason" validate:"max=2000"`
	ResubmissionDeadline *time.Time `json:"resubmissionDeadline"`
}

// DeadlineRequest sets the resubmission deadline of a rejected submission.
type DeadlineRequest struct {
	Deadline time.Time `json:"deadline" validate:"required"`
}

// ResubmitRequest replaces the artifact of a rejected submission.
type ResubmitRequest struct {
	ArtifactRef string `json:"artifactRef" validate:"required,max=1024"`
}

// CreateEventProposalRequest is the payload for a new event proposal.
type CreateEventProposalRequest struct {
	OwnerType models.OwnerType `json:"ownerType" validate:"required,oneof=organization council"`
	Title     string           `json:"title" validate:"required,max=255"`
	Venue     string           `json:"venue" validate:"required,max=255"`
	StartsAt  *time.Time       `json:"startsAt"`
}
