package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

const eventProposalColumns = `id, owner_id, owner_type, academic_term_id, title, venue, starts_at, created_at, updated_at`

// EventProposalRepository persists event proposals.
type EventProposalRepository struct {
	db *sqlx.DB
}

// NewEventProposalRepository constructs the repository.
func NewEventProposalRepository(db *sqlx.DB) *EventProposalRepository {
	return &EventProposalRepository{db: db}
}

// Create inserts a new event proposal.
func (r *EventProposalRepository) Create(ctx context.Context, proposal *models.EventProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	proposal.UpdatedAt = now
	const query = `INSERT INTO event_proposals (id, owner_id, owner_type, academic_term_id, title, venue, starts_at, created_at, updated_at)
	VALUES (:id, :owner_id, :owner_type, :academic_term_id, :title, :venue, :starts_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return fmt.Errorf("create event proposal: %w", err)
	}
	return nil
}

// GetByID loads an event proposal.
func (r *EventProposalRepository) GetByID(ctx context.Context, id string) (*models.EventProposal, error) {
	query := fmt.Sprintf("SELECT %s FROM event_proposals WHERE id = $1", eventProposalColumns)
	var proposal models.EventProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListByOwner returns an owner's event proposals, optionally scoped to a term.
func (r *EventProposalRepository) ListByOwner(ctx context.Context, ownerID, termID string) ([]models.EventProposal, error) {
	query := fmt.Sprintf("SELECT %s FROM event_proposals WHERE owner_id = $1", eventProposalColumns)
	args := []interface{}{ownerID}
	if termID != "" {
		query += " AND academic_term_id = $2"
		args = append(args, termID)
	}
	query += " ORDER BY created_at DESC"
	var proposals []models.EventProposal
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, fmt.Errorf("list event proposals: %w", err)
	}
	return proposals, nil
}

// Counts tallies the member submissions of an event proposal.
func (r *EventProposalRepository) Counts(ctx context.Context, id string) (models.EventDocumentCounts, error) {
	return countEventDocuments(ctx, r.db, id)
}
