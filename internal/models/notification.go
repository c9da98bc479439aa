package models

import "time"

// NotificationType names an outbound workflow event.
type NotificationType string

const (
	NotificationSubmissionCreated NotificationType = "submission_created"
	NotificationAdviserApproved   NotificationType = "adviser_approved"
	NotificationAdviserRejected   NotificationType = "adviser_rejected"
	NotificationOfficeApproved    NotificationType = "office_approved"
	NotificationOfficeRejected    NotificationType = "office_rejected"
	NotificationResubmitted       NotificationType = "resubmitted"
	NotificationAllSentToOffice   NotificationType = "all_sent_to_office"
	NotificationAllApproved       NotificationType = "all_approved"
	NotificationDeadlineSet       NotificationType = "deadline_set"
	NotificationDeleted           NotificationType = "submission_deleted"
)

// Transition describes one successful state change of a submission.
type Transition struct {
	SubmissionID    string
	OwnerID         string
	EventProposalID *string
	From            Stage
	To              Stage
	Actor           Actor
	Reason          *string
	Deadline        *time.Time
	At              time.Time
}

// NotificationEvent is the payload handed to the notifier.
type NotificationEvent struct {
	ID              string           `json:"id"`
	Type            NotificationType `json:"type"`
	SubmissionID    string           `json:"submissionId,omitempty"`
	EventProposalID string           `json:"eventProposalId,omitempty"`
	OwnerID         string           `json:"ownerId"`
	OldState        Stage            `json:"oldState,omitempty"`
	NewState        Stage            `json:"newState,omitempty"`
	ActorID         string           `json:"actorId"`
	ActorRole       ActorRole        `json:"actorRole"`
	Reason          *string          `json:"reason,omitempty"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
	OccurredAt      time.Time        `json:"occurredAt"`
}
