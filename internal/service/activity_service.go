package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
)

// ActivityLogRepository reads the audit trail.
type ActivityLogRepository interface {
	List(ctx context.Context, f repository.ActivityLogFilter) ([]models.ActivityLog, int, error)
}

// ActivityService exposes the audit trail to reviewers.
type ActivityService struct {
	repo ActivityLogRepository
}

func NewActivityService(repo ActivityLogRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

var auditSubjects = map[string]struct{}{
	models.SubjectProposal:       {},
	models.SubjectPendingProfile: {},
	models.SubjectUser:           {},
	models.SubjectCommittee:      {},
	models.SubjectAttachment:     {},
	models.SubjectImportBatch:    {},
}

// ListActivity returns a filtered page of audit entries, newest first.
func (s *ActivityService) ListActivity(ctx context.Context, actor Actor, f repository.ActivityLogFilter) (*Page[models.ActivityLog], error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	if f.SubjectType != "" {
		if _, ok := auditSubjects[f.SubjectType]; !ok {
			return nil, apperror.Validation("invalid subject type %q", f.SubjectType)
		}
	}
	f.Limit, f.Offset = pageBounds(f.Limit, f.Offset)

	logs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return newPage(logs, total, f.Limit, f.Offset), nil
}

// SubjectHistory returns every audit entry of one record.
func (s *ActivityService) SubjectHistory(ctx context.Context, actor Actor, subjectType string, subjectID uuid.UUID, limit, offset int) (*Page[models.ActivityLog], error) {
	return s.ListActivity(ctx, actor, repository.ActivityLogFilter{
		SubjectType: subjectType,
		SubjectID:   &subjectID,
		Limit:       limit,
		Offset:      offset,
	})
}
