package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

// ArchivalRepository purges the submission data of archived terms.
type ArchivalRepository struct {
	db *sqlx.DB
}

// NewArchivalRepository constructs the repository.
func NewArchivalRepository(db *sqlx.DB) *ArchivalRepository {
	return &ArchivalRepository{db: db}
}

// PurgeTerm deletes every submission bound to the term and every event proposal
// left without members, then stamps the term as cleaned. A transaction-scoped
// advisory lock keyed on the term serialises concurrent purges across instances,
// and running it again on a cleaned term deletes nothing.
func (r *ArchivalRepository) PurgeTerm(ctx context.Context, termID string, at time.Time) (result models.PurgeResult, err error) {
	result.TermID = termID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, classify(err, "begin purge tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, termID); err != nil {
		return result, classify(err, "acquire purge lock")
	}

	if err = tx.SelectContext(ctx, &result.EventProposalIDs,
		`SELECT DISTINCT event_proposal_id FROM submissions WHERE academic_term_id = $1 AND event_proposal_id IS NOT NULL`, termID); err != nil {
		return result, classify(err, "collect event proposals")
	}

	if err = tx.SelectContext(ctx, &result.ArtifactRefs,
		`DELETE FROM submissions WHERE academic_term_id = $1 RETURNING artifact_ref`, termID); err != nil {
		return result, classify(err, "purge submissions")
	}
	result.SubmissionsDeleted = len(result.ArtifactRefs)

	// Event proposals owned by the term, or that lost their last member above.
	res, err := tx.ExecContext(ctx, `DELETE FROM event_proposals ep
	WHERE (ep.academic_term_id = $1 OR ep.id = ANY($2))
	AND NOT EXISTS (SELECT 1 FROM submissions s WHERE s.event_proposal_id = ep.id)`, termID, pq.Array(result.EventProposalIDs))
	if err != nil {
		return result, classify(err, "purge event proposals")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("check event proposal purge rows: %w", err)
	}
	result.EventProposalsDeleted = int(deleted)

	if _, err = tx.ExecContext(ctx, `UPDATE academic_terms SET cleaned_at = $2, updated_at = $2 WHERE id = $1`, termID, at); err != nil {
		return result, classify(err, "mark term cleaned")
	}

	if err = tx.Commit(); err != nil {
		return result, classify(err, "commit purge tx")
	}
	return result, nil
}
