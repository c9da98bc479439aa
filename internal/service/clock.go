package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/internal/repository"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

// Clock returns the current instant. Services take one so tests can freeze "today".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// today returns the calendar day of now as observed in loc.
func today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return models.DateOf(now.In(loc))
}

// storeError converts a repository error into the typed taxonomy.
func storeError(err error, notFound, op string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	case repository.IsContention(err):
		contention := appErrors.Clone(appErrors.ErrContention, "")
		contention.Err = err
		return contention
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, op)
	}
}
