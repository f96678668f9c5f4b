package service

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role string
	IP   string
}

// IsReviewer reports whether the actor may approve or reject submissions.
func (a Actor) IsReviewer() bool {
	return a.Role == models.RoleStaff || a.Role == models.RoleAdmin
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// audit starts an activity log row attributed to the actor.
func (a Actor) audit(action, subjectType string, subjectID uuid.UUID) *models.ActivityLog {
	entry := &models.ActivityLog{
		Action:      action,
		SubjectType: subjectType,
		SubjectID:   subjectID,
	}
	if a.ID != uuid.Nil {
		id := a.ID
		entry.ActorID = &id
	}
	if a.IP != "" {
		ip := a.IP
		entry.IPAddress = &ip
	}
	return entry
}

// jsonSnapshot encodes v for the before/after columns of an audit row.
func jsonSnapshot(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// mapRepoError turns repository sentinels into application errors. Unknown
// errors are wrapped as database errors so their text never reaches clients.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, common.ErrStaleStatus):
		return apperror.ErrStaleStatus
	case errors.Is(err, repository.ErrProposalNotFound):
		return apperror.ErrProposalNotFound
	case errors.Is(err, repository.ErrAttachmentNotFound):
		return apperror.ErrAttachmentNotFound
	case errors.Is(err, repository.ErrPendingProfileNotFound):
		return apperror.ErrPendingProfileNotFound
	case errors.Is(err, repository.ErrProfileRecordNotFound):
		return apperror.ErrProfileRecordNotFound
	case errors.Is(err, repository.ErrProfileUnderReview):
		return apperror.New(apperror.ErrCodeConflict, "your youth profile is under review and cannot be edited")
	case errors.Is(err, repository.ErrProfileAlreadyApproved):
		return apperror.New(apperror.ErrCodeConflict, "your youth profile is already approved")
	case errors.Is(err, repository.ErrCommitteeNotFound):
		return apperror.ErrCommitteeNotFound
	case errors.Is(err, repository.ErrCommitteeExists):
		return apperror.New(apperror.ErrCodeConflict, "committee slug already exists")
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrUserExists):
		return apperror.New(apperror.ErrCodeConflict, "email or username already registered")
	case errors.Is(err, repository.ErrSessionNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "session not found")
	case errors.Is(err, repository.ErrNotificationNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "notification not found")
	}
	return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "database error")
}
