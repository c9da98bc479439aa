package models

import "time"

// PurgeResult reports what one term archival cascade removed.
type PurgeResult struct {
	TermID                string   `json:"termId"`
	SubmissionsDeleted    int      `json:"submissionsDeleted"`
	EventProposalsDeleted int      `json:"eventProposalsDeleted"`
	ArtifactRefs          []string `json:"-"`
	EventProposalIDs      []string `json:"-"`
}

// SweepTermResult is the per-term outcome of a status sweep.
type SweepTermResult struct {
	TermID   string         `json:"termId"`
	From     CalendarStatus `json:"from"`
	To       CalendarStatus `json:"to"`
	Cascaded bool           `json:"cascaded"`
	Purge    *PurgeResult   `json:"purge,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// SweepReport summarises a recomputation of every term and semester status.
type SweepReport struct {
	RanAt  time.Time         `json:"ranAt"`
	Terms  []SweepTermResult `json:"terms"`
	Failed int               `json:"failed"`
}
