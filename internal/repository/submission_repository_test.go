package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/org-recognition-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
	}
}

var submissionRowColumns = []string{
	"id", "owner_id", "owner_type", "kind", "document_type", "event_proposal_id", "academic_term_id", "artifact_ref",
	"status", "adviser_approved_at", "adviser_rejected_at", "adviser_id", "office_approved_at", "office_rejected_at", "office_id",
	"reject_reason", "resubmission_deadline", "submitted_at", "version", "updated_at",
}

func pendingSubmissionRows(id string, version int) *sqlmock.Rows {
	submitted := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(submissionRowColumns).AddRow(
		id, "org-1", "organization", "document", "constitution_bylaws", nil, "term-a", "file://a.pdf",
		"pending", nil, nil, nil, nil, nil, nil,
		nil, nil, submitted, version, submitted,
	)
}

func TestSubmissionRepositoryRunInTxCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE id = $1 FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnRows(pendingSubmissionRows("sub-1", 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var updated *models.Submission
	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		sub, err := tx.LockByID(context.Background(), "sub-1")
		if err != nil {
			return err
		}
		stamp := time.Now().UTC()
		sub.Status = models.SubmissionStatusApproved
		sub.AdviserApprovedAt = &stamp
		if err := tx.Update(context.Background(), sub); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Version)
	assert.Equal(t, "term-a", updated.TermID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryStaleVersionRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		return tx.Update(context.Background(), &models.Submission{ID: "sub-1", Version: 2})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContention))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryLockTimeoutIsContention(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("sub-1").
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		_, err := tx.LockByID(context.Background(), "sub-1")
		return err
	})
	require.Error(t, err)
	assert.True(t, IsContention(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryLockMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(submissionRowColumns))
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		_, err := tx.LockByID(context.Background(), "missing")
		return err
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, IsContention(err))
}

func TestSubmissionRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("AND event_proposal_id IS NULL AND academic_term_id = $3 LIMIT 1")).
		WithArgs("org-1", "constitution_bylaws", "term-a").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(regexp.QuoteMeta("AND event_proposal_id = $3 AND academic_term_id = $4 LIMIT 1")).
		WithArgs("org-1", "budget_breakdown", "proposal-1", "term-a").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		exists, err := tx.ExistsActive(context.Background(), ActiveSubmissionParams{
			OwnerID: "org-1", DocumentType: models.DocumentConstitution, TermID: "term-a",
		})
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = tx.ExistsActive(context.Background(), ActiveSubmissionParams{
			OwnerID: "org-1", DocumentType: models.DocumentBudgetBreakdown, TermID: "term-a", EventProposalID: "proposal-1",
		})
		require.NoError(t, err)
		assert.True(t, exists)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryInsertActiveSlotTakenIsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "submissions_active_slot_uq",
			Message: `duplicate key value violates unique constraint "submissions_active_slot_uq"`})
	mock.ExpectRollback()

	sub := &models.Submission{OwnerID: "org-1", Kind: models.SubmissionKindDocument, DocumentType: models.DocumentMembersList}
	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		return tx.Insert(context.Background(), sub)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.False(t, IsContention(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryResubmitIntoTakenSlotIsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "submissions_active_slot_uq"})
	mock.ExpectRollback()

	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		return tx.Update(context.Background(), &models.Submission{ID: "sub-1", Status: models.SubmissionStatusPending, Version: 2})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryInsertAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	sub := &models.Submission{OwnerID: "org-1", Kind: models.SubmissionKindDocument, DocumentType: models.DocumentMembersList}
	err := repo.RunInTx(context.Background(), func(tx SubmissionTx) error {
		require.NoError(t, tx.Insert(context.Background(), sub))
		return tx.Delete(context.Background(), "gone")
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, 1, sub.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND status IN ($2,$3) ORDER BY submitted_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("org-1", "pending", "rejected").
		WillReturnRows(pendingSubmissionRows("sub-1", 1))

	subs, err := repo.List(context.Background(), models.SubmissionFilter{
		OwnerID: "org-1",
		Status:  []models.SubmissionStatus{models.SubmissionStatusPending, models.SubmissionStatusRejected},
		Limit:   500,
	})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.DocumentConstitution, subs[0].DocumentType)
	assert.Nil(t, subs[0].EventProposalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCountOverdueRejections(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("resubmission_deadline < $2")).
		WithArgs("org-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountOverdueRejections(context.Background(), "org-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
