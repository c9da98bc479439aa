package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

const termColumns = `id, school_year, start_date, end_date, document_window_start, document_window_end,
       status, recognition_validity, cleaned_at, created_at, updated_at`

const semesterColumns = `id, term_id, label, start_date, end_date, status, created_at, updated_at`

// TermRepository handles persistence for academic terms and their semesters.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns every term, most recent start first.
func (r *TermRepository) List(ctx context.Context) ([]models.AcademicTerm, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_terms ORDER BY start_date DESC", termColumns)
	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_terms WHERE id = $1", termColumns)
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the non-archived term whose range contains day.
func (r *TermRepository) FindCurrent(ctx context.Context, day time.Time) (*models.AcademicTerm, error) {
	query := fmt.Sprintf(`SELECT %s FROM academic_terms
	WHERE start_date <= $1 AND end_date >= $1 AND status <> 'archived'
	ORDER BY start_date DESC LIMIT 1`, termColumns)
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, day); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindOverlapping returns terms whose inclusive range intersects the given one.
func (r *TermRepository) FindOverlapping(ctx context.Context, rng models.DateRange, excludeID string) ([]models.AcademicTerm, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_terms WHERE start_date <= $2 AND $1 <= end_date", termColumns)
	args := []interface{}{rng.Start, rng.End}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_date"
	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping terms: %w", err)
	}
	return terms, nil
}

// ListSemesters returns the semesters of a term in label order.
func (r *TermRepository) ListSemesters(ctx context.Context, termID string) ([]models.Semester, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_semesters WHERE term_id = $1 ORDER BY label", semesterColumns)
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, termID); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// Create inserts a term and its semesters atomically.
func (r *TermRepository) Create(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) (err error) {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create term tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO academic_terms
	(id, school_year, start_date, end_date, document_window_start, document_window_end, status, recognition_validity, cleaned_at, created_at, updated_at)
	VALUES (:id, :school_year, :start_date, :end_date, :document_window_start, :document_window_end, :status, :recognition_validity, :cleaned_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	if err = insertSemesters(ctx, tx, term.ID, semesters, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create term tx: %w", err)
	}
	term.Semesters = semesters
	return nil
}

// Update modifies a term. When semesters is non-nil the term's semesters are replaced.
func (r *TermRepository) Update(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) (err error) {
	now := time.Now().UTC()
	term.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update term tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE academic_terms SET school_year = :school_year, start_date = :start_date, end_date = :end_date,
	document_window_start = :document_window_start, document_window_end = :document_window_end, status = :status,
	recognition_validity = :recognition_validity, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, term)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check term update rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if semesters != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM academic_semesters WHERE term_id = $1`, term.ID); err != nil {
			return fmt.Errorf("replace semesters: %w", err)
		}
		if err = insertSemesters(ctx, tx, term.ID, semesters, now); err != nil {
			return err
		}
		term.Semesters = semesters
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update term tx: %w", err)
	}
	return nil
}

// UpdateStatus persists a recomputed term status.
func (r *TermRepository) UpdateStatus(ctx context.Context, id string, status models.CalendarStatus) error {
	const query = `UPDATE academic_terms SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update term status: %w", err)
	}
	return nil
}

// UpdateSemesterStatus persists a recomputed semester status.
func (r *TermRepository) UpdateSemesterStatus(ctx context.Context, id string, status models.CalendarStatus) error {
	const query = `UPDATE academic_semesters SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update semester status: %w", err)
	}
	return nil
}

func insertSemesters(ctx context.Context, tx *sqlx.Tx, termID string, semesters []models.Semester, now time.Time) error {
	const query = `INSERT INTO academic_semesters (id, term_id, label, start_date, end_date, status, created_at, updated_at)
	VALUES (:id, :term_id, :label, :start_date, :end_date, :status, :created_at, :updated_at)`
	for i := range semesters {
		sem := &semesters[i]
		if sem.ID == "" {
			sem.ID = uuid.NewString()
		}
		sem.TermID = termID
		if sem.CreatedAt.IsZero() {
			sem.CreatedAt = now
		}
		sem.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, sem); err != nil {
			return fmt.Errorf("insert semester %s: %w", sem.Label, err)
		}
	}
	return nil
}
