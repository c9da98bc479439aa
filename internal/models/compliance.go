package models

// GateReason explains a compliance gate decision.
type GateReason string

const (
	GateReasonOpen                GateReason = "open"
	GateReasonNoActiveTerm        GateReason = "no_active_term"
	GateReasonOutsideWindow       GateReason = "outside_document_window"
	GateReasonMissedResubmission  GateReason = "missed_resubmission_deadline"
	GateReasonTermArchived        GateReason = "term_archived"
	GateReasonTermNotActive       GateReason = "term_not_active"
	GateReasonResubmissionExpired GateReason = "resubmission_deadline_passed"
)

// GateDecision is the result of asking whether an owner may submit now.
type GateDecision struct {
	Allowed bool           `json:"allowed"`
	Reason  GateReason     `json:"reason"`
	TermID  string         `json:"termId,omitempty"`
	Kind    SubmissionKind `json:"kind"`
	OwnerID string         `json:"ownerId"`
}
