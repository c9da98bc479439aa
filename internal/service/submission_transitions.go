package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/internal/repository"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

// The functions below mutate a submission in memory only. Each checks the current stage,
// applies the transition and returns it; persistence and notification are the caller's job.

func currentStage(sub *models.Submission) (models.Stage, error) {
	stage, err := sub.Stage()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission state is inconsistent")
	}
	return stage, nil
}

func illegal(op string, stage models.Stage) error {
	return appErrors.WithDetails(appErrors.ErrIllegalTransition,
		fmt.Sprintf("%s is not allowed while submission is %s", op, stage.Label()), string(stage))
}

func duplicate(sub *models.Submission) error {
	return appErrors.WithDetails(appErrors.ErrDuplicateSubmission, "", string(sub.DocumentType))
}

// writeError is storeError for writes that may hit the active-slot unique index.
func writeError(err error, sub *models.Submission, notFound, op string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return duplicate(sub)
	}
	return storeError(err, notFound, op)
}

func rejectionReason(decision dto.Decision, reason string) (*string, error) {
	if decision != dto.DecisionReject {
		return nil, nil
	}
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid decision", "reason is required when rejecting")
	}
	return &reason, nil
}

func applyAdviserDecision(sub *models.Submission, actor models.Actor, decision dto.Decision, reason string, at time.Time) (models.Transition, error) {
	from, err := currentStage(sub)
	if err != nil {
		return models.Transition{}, err
	}
	if from != models.StagePending {
		return models.Transition{}, illegal("adviser decision", from)
	}
	rejectReason, err := rejectionReason(decision, reason)
	if err != nil {
		return models.Transition{}, err
	}

	stamp := at
	actorID := actor.ID
	sub.AdviserID = &actorID
	sub.OfficeApprovedAt, sub.OfficeRejectedAt, sub.OfficeID = nil, nil, nil
	t := models.Transition{SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID, From: from, Actor: actor, At: at}
	if decision == dto.DecisionApprove {
		sub.Status = models.SubmissionStatusApproved
		sub.AdviserApprovedAt, sub.AdviserRejectedAt = &stamp, nil
		sub.RejectReason = nil
		t.To = models.StageAdviserApproved
	} else {
		sub.Status = models.SubmissionStatusRejected
		sub.AdviserApprovedAt, sub.AdviserRejectedAt = nil, &stamp
		sub.RejectReason = rejectReason
		t.To = models.StageAdviserRejected
		t.Reason = rejectReason
	}
	sub.UpdatedAt = at
	return t, nil
}

func applyOfficeDecision(sub *models.Submission, actor models.Actor, decision dto.Decision, reason string, deadline *time.Time, at time.Time) (models.Transition, error) {
	from, err := currentStage(sub)
	if err != nil {
		return models.Transition{}, err
	}
	if from != models.StageAdviserApproved {
		return models.Transition{}, illegal("office decision", from)
	}
	rejectReason, err := rejectionReason(decision, reason)
	if err != nil {
		return models.Transition{}, err
	}
	if deadline != nil {
		if decision != dto.DecisionReject {
			return models.Transition{}, appErrors.WithDetails(appErrors.ErrValidation, "invalid decision", "resubmissionDeadline is only accepted with a rejection")
		}
		if !deadline.After(at) {
			return models.Transition{}, appErrors.WithDetails(appErrors.ErrValidation, "invalid decision", "resubmissionDeadline must be in the future")
		}
	}

	stamp := at
	actorID := actor.ID
	sub.OfficeID = &actorID
	t := models.Transition{SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID, From: from, Actor: actor, At: at}
	if decision == dto.DecisionApprove {
		sub.OfficeApprovedAt, sub.OfficeRejectedAt = &stamp, nil
		t.To = models.StageOfficeApproved
	} else {
		sub.Status = models.SubmissionStatusRejected
		sub.AdviserApprovedAt = nil
		sub.OfficeApprovedAt, sub.OfficeRejectedAt = nil, &stamp
		sub.RejectReason = rejectReason
		if deadline != nil {
			d := deadline.UTC()
			sub.ResubmissionDeadline = &d
			t.Deadline = &d
		}
		t.To = models.StageOfficeRejected
		t.Reason = rejectReason
	}
	sub.UpdatedAt = at
	return t, nil
}

func applyDeadline(sub *models.Submission, actor models.Actor, deadline time.Time, at time.Time) (models.Transition, error) {
	stage, err := currentStage(sub)
	if err != nil {
		return models.Transition{}, err
	}
	if !stage.IsRejected() {
		return models.Transition{}, illegal("setting a resubmission deadline", stage)
	}
	if !deadline.After(at) {
		return models.Transition{}, appErrors.WithDetails(appErrors.ErrValidation, "invalid deadline", "deadline must be in the future")
	}
	d := deadline.UTC()
	sub.ResubmissionDeadline = &d
	sub.UpdatedAt = at
	return models.Transition{
		SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID,
		From: stage, To: stage, Actor: actor, Deadline: &d, At: at,
	}, nil
}

func applyResubmit(sub *models.Submission, actor models.Actor, artifactRef string, at time.Time) (models.Transition, error) {
	from, err := currentStage(sub)
	if err != nil {
		return models.Transition{}, err
	}
	if !from.IsRejected() {
		return models.Transition{}, illegal("resubmission", from)
	}
	sub.Status = models.SubmissionStatusPending
	sub.AdviserApprovedAt, sub.AdviserRejectedAt, sub.AdviserID = nil, nil, nil
	sub.OfficeApprovedAt, sub.OfficeRejectedAt, sub.OfficeID = nil, nil, nil
	sub.RejectReason = nil
	sub.ResubmissionDeadline = nil
	sub.ArtifactRef = artifactRef
	sub.SubmittedAt = at
	sub.UpdatedAt = at
	return models.Transition{
		SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID,
		From: from, To: models.StagePending, Actor: actor, At: at,
	}, nil
}
