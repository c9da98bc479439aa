package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

const submissionColumns = `id, owner_id, owner_type, kind, document_type, event_proposal_id, academic_term_id, artifact_ref,
       status, adviser_approved_at, adviser_rejected_at, adviser_id, office_approved_at, office_rejected_at, office_id,
       reject_reason, resubmission_deadline, submitted_at, version, updated_at`

// SubmissionTx exposes the statements a submission mutation may run inside its transaction.
type SubmissionTx interface {
	LockByID(ctx context.Context, id string) (*models.Submission, error)
	LockEventProposal(ctx context.Context, id string) (*models.EventProposal, error)
	ExistsActive(ctx context.Context, params ActiveSubmissionParams) (bool, error)
	Insert(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id string) error
	CountEventDocuments(ctx context.Context, eventProposalID string) (models.EventDocumentCounts, error)
}

// ActiveSubmissionParams identifies the duplicate-type guard scope.
type ActiveSubmissionParams struct {
	OwnerID         string
	DocumentType    models.DocumentType
	TermID          string
	EventProposalID string
}

// SubmissionRepository persists submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// RunInTx executes fn inside one transaction, committing only when fn succeeds.
func (r *SubmissionRepository) RunInTx(ctx context.Context, fn func(tx SubmissionTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "begin submission tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&submissionTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify(err, "commit submission tx")
	}
	return nil
}

// GetByID fetches a submission without locking.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("SELECT %s FROM submissions", submissionColumns))
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 5)

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("academic_term_id = $%d", len(args)))
	}
	if filter.EventProposalID != "" {
		args = append(args, filter.EventProposalID)
		conditions = append(conditions, fmt.Sprintf("event_proposal_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CountOverdueRejections counts rejected submissions of an owner whose resubmission deadline passed.
func (r *SubmissionRepository) CountOverdueRejections(ctx context.Context, ownerID string, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions
	WHERE owner_id = $1 AND status = 'rejected' AND resubmission_deadline IS NOT NULL AND resubmission_deadline < $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, ownerID, now); err != nil {
		return 0, fmt.Errorf("count overdue rejections: %w", err)
	}
	return count, nil
}

// CountEventDocuments tallies an event proposal's members outside a transaction.
func (r *SubmissionRepository) CountEventDocuments(ctx context.Context, eventProposalID string) (models.EventDocumentCounts, error) {
	return countEventDocuments(ctx, r.db, eventProposalID)
}

type submissionTx struct {
	tx *sqlx.Tx
}

func (t *submissionTx) LockByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1 FOR UPDATE", submissionColumns)
	var submission models.Submission
	if err := t.tx.GetContext(ctx, &submission, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, classify(err, "lock submission")
	}
	return &submission, nil
}

func (t *submissionTx) LockEventProposal(ctx context.Context, id string) (*models.EventProposal, error) {
	query := fmt.Sprintf("SELECT %s FROM event_proposals WHERE id = $1 FOR UPDATE", eventProposalColumns)
	var proposal models.EventProposal
	if err := t.tx.GetContext(ctx, &proposal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, classify(err, "lock event proposal")
	}
	return &proposal, nil
}

// ExistsActive reports whether a pending or adviser-approved submission already occupies the slot.
func (t *submissionTx) ExistsActive(ctx context.Context, params ActiveSubmissionParams) (bool, error) {
	query := `SELECT 1 FROM submissions WHERE owner_id = $1 AND document_type = $2
	AND (status = 'pending' OR (status = 'approved' AND office_approved_at IS NULL))`
	args := []interface{}{params.OwnerID, params.DocumentType}
	if params.EventProposalID != "" {
		args = append(args, params.EventProposalID)
		query += fmt.Sprintf(" AND event_proposal_id = $%d", len(args))
	} else {
		query += " AND event_proposal_id IS NULL"
	}
	if params.TermID != "" {
		args = append(args, params.TermID)
		query += fmt.Sprintf(" AND academic_term_id = $%d", len(args))
	}
	var exists int
	if err := t.tx.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, classify(err, "check active submission")
	}
	return true, nil
}

func (t *submissionTx) Insert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	submission.Version = 1
	submission.UpdatedAt = submission.SubmittedAt
	const query = `INSERT INTO submissions
	(id, owner_id, owner_type, kind, document_type, event_proposal_id, academic_term_id, artifact_ref, status,
	 adviser_approved_at, adviser_rejected_at, adviser_id, office_approved_at, office_rejected_at, office_id,
	 reject_reason, resubmission_deadline, submitted_at, version, updated_at)
	VALUES (:id, :owner_id, :owner_type, :kind, :document_type, :event_proposal_id, :academic_term_id, :artifact_ref, :status,
	 :adviser_approved_at, :adviser_rejected_at, :adviser_id, :office_approved_at, :office_rejected_at, :office_id,
	 :reject_reason, :resubmission_deadline, :submitted_at, :version, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, submission); err != nil {
		return classify(err, "insert submission")
	}
	return nil
}

// Update writes every state field guarded by the version read under lock.
func (t *submissionTx) Update(ctx context.Context, submission *models.Submission) error {
	const query = `UPDATE submissions SET artifact_ref = :artifact_ref, status = :status,
	adviser_approved_at = :adviser_approved_at, adviser_rejected_at = :adviser_rejected_at, adviser_id = :adviser_id,
	office_approved_at = :office_approved_at, office_rejected_at = :office_rejected_at, office_id = :office_id,
	reject_reason = :reject_reason, resubmission_deadline = :resubmission_deadline, submitted_at = :submitted_at,
	version = version + 1, updated_at = :updated_at
	WHERE id = :id AND version = :version`
	res, err := t.tx.NamedExecContext(ctx, query, submission)
	if err != nil {
		return classify(err, "update submission")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update submission %s: %w", submission.ID, ErrContention)
	}
	submission.Version++
	return nil
}

func (t *submissionTx) Delete(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete submission")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *submissionTx) CountEventDocuments(ctx context.Context, eventProposalID string) (models.EventDocumentCounts, error) {
	return countEventDocuments(ctx, t.tx, eventProposalID)
}

func countEventDocuments(ctx context.Context, q sqlx.QueryerContext, eventProposalID string) (models.EventDocumentCounts, error) {
	const query = `SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'pending') AS pending,
	COUNT(*) FILTER (WHERE status = 'approved' AND office_approved_at IS NULL) AS sent,
	COUNT(*) FILTER (WHERE status = 'approved' AND office_approved_at IS NOT NULL) AS approved,
	COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
	FROM submissions WHERE event_proposal_id = $1`
	var counts models.EventDocumentCounts
	if err := sqlx.GetContext(ctx, q, &counts, query, eventProposalID); err != nil {
		return models.EventDocumentCounts{}, classify(err, "count event documents")
	}
	return counts, nil
}
