package models

import "time"

// EventProposal groups the event documents an owner submits for one activity.
type EventProposal struct {
	ID             string     `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"ownerId"`
	OwnerType      OwnerType  `db:"owner_type" json:"ownerType"`
	AcademicTermID *string    `db:"academic_term_id" json:"academicTermId,omitempty"`
	Title          string     `db:"title" json:"title"`
	Venue          string     `db:"venue" json:"venue"`
	StartsAt       *time.Time `db:"starts_at" json:"startsAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// EventDocumentCounts tallies member submissions of an event proposal by stage.
type EventDocumentCounts struct {
	Total    int `db:"total" json:"total"`
	Pending  int `db:"pending" json:"pending"`
	Sent     int `db:"sent" json:"sent"`
	Approved int `db:"approved" json:"approved"`
	Rejected int `db:"rejected" json:"rejected"`
}

// AggregateStatus is the derived status of an event proposal.
type AggregateStatus string

const (
	AggregateStatusEmpty        AggregateStatus = "empty"
	AggregateStatusPending      AggregateStatus = "pending"
	AggregateStatusPartial      AggregateStatus = "partial"
	AggregateStatusSentToOffice AggregateStatus = "sent_to_office"
	AggregateStatusApproved     AggregateStatus = "approved"
	AggregateStatusRejected     AggregateStatus = "rejected"
)

// AllAdviserApproved reports whether every member has passed the adviser stage.
func (c EventDocumentCounts) AllAdviserApproved() bool {
	return c.Total > 0 && c.Sent+c.Approved == c.Total
}

// AllOfficeApproved reports whether every member is finally approved.
func (c EventDocumentCounts) AllOfficeApproved() bool {
	return c.Total > 0 && c.Approved == c.Total
}

// Status derives the aggregate status from the counts.
func (c EventDocumentCounts) Status() AggregateStatus {
	switch {
	case c.Total == 0:
		return AggregateStatusEmpty
	case c.Rejected > 0:
		return AggregateStatusRejected
	case c.AllOfficeApproved():
		return AggregateStatusApproved
	case c.AllAdviserApproved():
		return AggregateStatusSentToOffice
	case c.Pending == c.Total:
		return AggregateStatusPending
	default:
		return AggregateStatusPartial
	}
}

// EventProposalSummary is an event proposal with its derived aggregate.
type EventProposalSummary struct {
	EventProposal
	Counts EventDocumentCounts `json:"counts"`
	Status AggregateStatus     `json:"status"`
}
