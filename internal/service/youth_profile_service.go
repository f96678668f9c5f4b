package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/domain/valueobject"
	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/validation"
)

// YouthProfileRepository is the storage YouthProfileService depends on.
type YouthProfileRepository interface {
	SaveDraft(ctx context.Context, userID uuid.UUID, payload json.RawMessage, audit *models.ActivityLog) (*models.PendingYouthProfile, error)
	GetPending(ctx context.Context, id uuid.UUID) (*models.PendingYouthProfile, error)
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.PendingYouthProfile, error)
	Submit(ctx context.Context, id, userID uuid.UUID, audit *models.ActivityLog) (*models.PendingYouthProfile, error)
	Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string, audit *models.ActivityLog) (*models.PendingYouthProfile, error)
	Approve(ctx context.Context, id, reviewerID uuid.UUID, payload *models.YouthProfilePayload, audit *models.ActivityLog) (*models.YouthProfileRecord, error)
	ListPending(ctx context.Context, f repository.PendingProfileFilter) ([]models.PendingYouthProfile, int, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*models.YouthProfileRecord, error)
	GetRecordByUser(ctx context.Context, userID uuid.UUID) (*models.YouthProfileRecord, error)
	ListRecords(ctx context.Context, f repository.ProfileRecordFilter) ([]models.YouthProfileSummary, int, error)
}

// YouthProfileService runs youth registration: drafting, submission, review
// and the approved record registry.
type YouthProfileService struct {
	repo     YouthProfileRepository
	staff    StaffDirectory
	notifier Notifier
	cache    Cache
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewYouthProfileService(repo YouthProfileRepository, staff StaffDirectory, notifier Notifier, cache Cache, m *metrics.Metrics) *YouthProfileService {
	return &YouthProfileService{
		repo:     repo,
		staff:    staff,
		notifier: notifier,
		cache:    cache,
		metrics:  m,
		now:      time.Now,
	}
}

// MyProfile is what a youth member sees about their own registration.
type MyProfile struct {
	Submission *models.PendingYouthProfile `json:"submission,omitempty"`
	Record     *models.YouthProfileRecord  `json:"record,omitempty"`
}

// Page is a generic paginated listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newPage[T any](items []T, total, limit, offset int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}
}

// SaveDraft creates or rewrites the caller's open registration. Only shape
// is normalized here; full validation runs on submit.
func (s *YouthProfileService) SaveDraft(ctx context.Context, actor Actor, payload models.YouthProfilePayload) (*models.PendingYouthProfile, error) {
	validation.NormalizeProfilePayload(&payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "could not encode profile")
	}

	saved, err := s.repo.SaveDraft(ctx, actor.ID, raw, actor.audit(models.ActionUpdate, models.SubjectPendingProfile, uuid.Nil))
	if err != nil {
		return nil, mapRepoError(err)
	}
	invalidateDashboards(ctx, s.cache)
	return saved, nil
}

// GetDraft returns the caller's most recent submission.
func (s *YouthProfileService) GetDraft(ctx context.Context, actor Actor) (*models.PendingYouthProfile, error) {
	p, err := s.repo.GetLatestByUser(ctx, actor.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return p, nil
}

// SubmitProfile sends the caller's draft for review after validating the
// whole form.
func (s *YouthProfileService) SubmitProfile(ctx context.Context, actor Actor, id uuid.UUID) (*models.PendingYouthProfile, error) {
	current, err := s.repo.GetPending(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if current.UserID == nil || *current.UserID != actor.ID {
		return nil, apperror.ErrPendingProfileNotFound
	}
	if err := valueobject.ReviewStatus(current.Status).Transition(valueobject.StatusPending); err != nil {
		return nil, err
	}

	payload, err := current.DecodePayload()
	if err != nil {
		return nil, apperror.Validation("profile form is malformed")
	}
	validation.NormalizeProfilePayload(payload)
	if err := validation.ValidateProfilePayload(payload, s.now()); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	audit := actor.audit(models.ActionSubmit, models.SubjectPendingProfile, id)
	audit.BeforeValues = jsonSnapshot(map[string]any{"status": current.Status})
	updated, err := s.repo.Submit(ctx, id, actor.ID, audit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.afterTransition(ctx, updated)

	if reviewers, err := s.staff.ListIDsByRoles(ctx, models.RoleStaff, models.RoleAdmin); err != nil {
		logger.WithFields(logrus.Fields{"pending_profile_id": id}).Warnf("youth profile service: list reviewers: %v", err)
	} else if s.notifier != nil {
		s.notifier.Notify(ctx, reviewers, models.EventProfileSubmitted, map[string]any{
			"pending_profile_id": id,
			"name":               payload.Personal.FirstName + " " + payload.Personal.LastName,
		})
	}
	return updated, nil
}

// ApproveProfile materializes a pending submission into the youth registry.
func (s *YouthProfileService) ApproveProfile(ctx context.Context, actor Actor, id uuid.UUID) (*models.YouthProfileRecord, error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}

	current, err := s.repo.GetPending(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := valueobject.ReviewStatus(current.Status).Transition(valueobject.StatusApproved); err != nil {
		return nil, err
	}

	payload, err := current.DecodePayload()
	if err != nil {
		return nil, apperror.Validation("profile form is malformed")
	}
	validation.NormalizeProfilePayload(payload)
	if err := validation.ValidateProfilePayload(payload, s.now()); err != nil {
		return nil, apperror.Validation("cannot approve: %s", err.Error())
	}

	audit := actor.audit(models.ActionApprove, models.SubjectPendingProfile, id)
	audit.BeforeValues = jsonSnapshot(map[string]any{"status": current.Status})
	record, err := s.repo.Approve(ctx, id, actor.ID, payload, audit)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.metrics.IncrementTransition(models.SubjectPendingProfile, models.StatusApproved)
	invalidateDashboards(ctx, s.cache)
	logger.WithFields(logrus.Fields{
		"pending_profile_id": id,
		"youth_profile_id":   record.ID,
		"actor_id":           actor.ID,
	}).Info("youth profile approved")

	if record.UserID != nil && s.notifier != nil {
		s.notifier.Notify(ctx, []uuid.UUID{*record.UserID}, models.EventProfileApproved, map[string]any{
			"pending_profile_id": id,
			"youth_profile_id":   record.ID,
		})
	}
	return record, nil
}

// RejectProfile returns a pending submission with a reason.
func (s *YouthProfileService) RejectProfile(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.PendingYouthProfile, error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	if err := validation.ValidateReason(reason); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	current, err := s.repo.GetPending(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := valueobject.ReviewStatus(current.Status).Transition(valueobject.StatusRejected); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	audit := actor.audit(models.ActionReject, models.SubjectPendingProfile, id)
	audit.BeforeValues = jsonSnapshot(map[string]any{"status": current.Status})
	updated, err := s.repo.Reject(ctx, id, actor.ID, reason, audit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.afterTransition(ctx, updated)

	if updated.UserID != nil && s.notifier != nil {
		s.notifier.Notify(ctx, []uuid.UUID{*updated.UserID}, models.EventProfileRejected, map[string]any{
			"pending_profile_id": id,
			"reason":             reason,
		})
	}
	return updated, nil
}

// GetPendingProfile returns one submission. Reviewers see all, youth only
// their own.
func (s *YouthProfileService) GetPendingProfile(ctx context.Context, actor Actor, id uuid.UUID) (*models.PendingYouthProfile, error) {
	p, err := s.repo.GetPending(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !actor.IsReviewer() && (p.UserID == nil || *p.UserID != actor.ID) {
		return nil, apperror.ErrPendingProfileNotFound
	}
	return p, nil
}

// ListPendingProfiles returns a page of submissions for reviewers.
func (s *YouthProfileService) ListPendingProfiles(ctx context.Context, actor Actor, f repository.PendingProfileFilter) (*Page[models.PendingYouthProfile], error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	if f.Status != "" {
		if _, err := valueobject.NewReviewStatus(f.Status); err != nil {
			return nil, err
		}
	}
	if f.Source != "" {
		if _, ok := models.ValidSources[f.Source]; !ok {
			return nil, apperror.Validation("invalid source %q", f.Source)
		}
	}
	f.Limit, f.Offset = pageBounds(f.Limit, f.Offset)
	f.Search = strings.TrimSpace(f.Search)

	rows, total, err := s.repo.ListPending(ctx, f)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return newPage(rows, total, f.Limit, f.Offset), nil
}

// GetProfileRecord returns an approved record. Youth may only read their own.
func (s *YouthProfileService) GetProfileRecord(ctx context.Context, actor Actor, id uuid.UUID) (*models.YouthProfileRecord, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !actor.IsReviewer() && (rec.UserID == nil || *rec.UserID != actor.ID) {
		return nil, apperror.ErrProfileRecordNotFound
	}
	return rec, nil
}

// ListProfileRecords returns a page of the youth registry for reviewers.
func (s *YouthProfileService) ListProfileRecords(ctx context.Context, actor Actor, f repository.ProfileRecordFilter) (*Page[models.YouthProfileSummary], error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	f.Classification = strings.ToLower(strings.TrimSpace(f.Classification))
	if f.Classification != "" {
		if _, ok := models.ValidClassifications[f.Classification]; !ok {
			return nil, apperror.Validation("invalid classification %q", f.Classification)
		}
	}
	f.Sex = strings.ToLower(strings.TrimSpace(f.Sex))
	if f.Sex != "" {
		if _, ok := models.ValidSexes[f.Sex]; !ok {
			return nil, apperror.Validation("invalid sex %q", f.Sex)
		}
	}
	f.Limit, f.Offset = pageBounds(f.Limit, f.Offset)
	f.Barangay = strings.TrimSpace(f.Barangay)
	f.Search = strings.TrimSpace(f.Search)

	rows, total, err := s.repo.ListRecords(ctx, f)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return newPage(rows, total, f.Limit, f.Offset), nil
}

// GetMine returns the caller's latest submission and, once approved, their
// registry record.
func (s *YouthProfileService) GetMine(ctx context.Context, actor Actor) (*MyProfile, error) {
	out := &MyProfile{}

	sub, err := s.repo.GetLatestByUser(ctx, actor.ID)
	switch {
	case err == nil:
		out.Submission = sub
	case !apperror.IsNotFound(mapRepoError(err)):
		return nil, mapRepoError(err)
	}

	rec, err := s.repo.GetRecordByUser(ctx, actor.ID)
	switch {
	case err == nil:
		out.Record = rec
	case !apperror.IsNotFound(mapRepoError(err)):
		return nil, mapRepoError(err)
	}

	if out.Submission == nil && out.Record == nil {
		return nil, apperror.New(apperror.ErrCodeNotFound, "you have not registered a youth profile yet")
	}
	return out, nil
}

func (s *YouthProfileService) afterTransition(ctx context.Context, p *models.PendingYouthProfile) {
	s.metrics.IncrementTransition(models.SubjectPendingProfile, p.Status)
	invalidateDashboards(ctx, s.cache)
}

// pageBounds clamps paging parameters to the API limits.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
