package service

import (
	"context"
	"errors"
	"io"
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
	"github.com/ignatzorin/youth-governance-backend/internal/storage"
	"github.com/ignatzorin/youth-governance-backend/internal/validation"
)

// ProposalRepository is the storage ProposalService depends on.
type ProposalRepository interface {
	Create(ctx context.Context, p *models.Proposal, audit *models.ActivityLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	Update(ctx context.Context, p *models.Proposal, audit *models.ActivityLog) error
	Transition(ctx context.Context, t repository.ProposalTransition, audit *models.ActivityLog) (*models.Proposal, error)
	Delete(ctx context.Context, id, submitterID uuid.UUID, audit *models.ActivityLog) ([]string, error)
	List(ctx context.Context, f repository.ProposalFilter) (*repository.ProposalListResult, error)
	AddAttachment(ctx context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error
	ListAttachments(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalAttachment, error)
	GetAttachment(ctx context.Context, proposalID, attachmentID uuid.UUID) (*models.ProposalAttachment, error)
	DeleteAttachment(ctx context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error
}

// CommitteeLookup resolves committees referenced by proposals.
type CommitteeLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error)
}

// StaffDirectory lists reviewers to notify about new submissions.
type StaffDirectory interface {
	ListIDsByRoles(ctx context.Context, roles ...string) ([]uuid.UUID, error)
}

// InterestIndex finds youth interested in a committee's programs.
type InterestIndex interface {
	ListUserIDsByInterest(ctx context.Context, slug string) ([]uuid.UUID, error)
}

// ProposalService runs the proposal workflow: drafting, submission, review
// and supporting documents.
type ProposalService struct {
	repo       ProposalRepository
	committees CommitteeLookup
	staff      StaffDirectory
	interests  InterestIndex
	files      storage.AttachmentStorage
	notifier   Notifier
	cache      Cache
	metrics    *metrics.Metrics
}

// ProposalDeps groups the collaborators of ProposalService.
type ProposalDeps struct {
	Repo       ProposalRepository
	Committees CommitteeLookup
	Staff      StaffDirectory
	Interests  InterestIndex
	Files      storage.AttachmentStorage
	Notifier   Notifier
	Cache      Cache
	Metrics    *metrics.Metrics
}

func NewProposalService(d ProposalDeps) *ProposalService {
	return &ProposalService{
		repo:       d.Repo,
		committees: d.Committees,
		staff:      d.Staff,
		interests:  d.Interests,
		files:      d.Files,
		notifier:   d.Notifier,
		cache:      d.Cache,
		metrics:    d.Metrics,
	}
}

// ProposalInput is the editable part of a proposal.
type ProposalInput struct {
	CommitteeID         *uuid.UUID
	Category            string
	Title               string
	Description         string
	Objectives          *string
	Beneficiaries       *string
	Location            *string
	ImplementationStart *models.Date
	ImplementationEnd   *models.Date
	EstimatedBudget     float64
}

// ReviewInput carries the reviewer's decision details.
type ReviewInput struct {
	ApprovedBudget *float64
	Remarks        *string
	Reason         string
}

// ProposalListInput is a listing request before role scoping.
type ProposalListInput struct {
	Status      string
	CommitteeID *uuid.UUID
	SubmitterID *uuid.UUID
	Search      string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// CreateProposal stores a new draft owned by the actor.
func (s *ProposalService) CreateProposal(ctx context.Context, actor Actor, in ProposalInput) (*models.Proposal, error) {
	p := &models.Proposal{SubmitterID: actor.ID, Status: models.StatusDraft}
	if err := s.applyInput(ctx, p, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p, actor.audit(models.ActionCreate, models.SubjectProposal, uuid.Nil)); err != nil {
		return nil, mapRepoError(err)
	}
	s.metrics.IncrementTransition(models.SubjectProposal, models.StatusDraft)
	invalidateDashboards(ctx, s.cache)
	return p, nil
}

// UpdateProposal rewrites a draft or rejected proposal of its submitter.
func (s *ProposalService) UpdateProposal(ctx context.Context, actor Actor, id uuid.UUID, in ProposalInput) (*models.Proposal, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if current.SubmitterID != actor.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the submitter can edit this proposal")
	}
	if !current.IsEditable() {
		return nil, apperror.New(apperror.ErrCodeConflict, "only draft or rejected proposals can be edited")
	}

	before := *current
	updated := *current
	if err := s.applyInput(ctx, &updated, in); err != nil {
		return nil, err
	}

	audit := actor.audit(models.ActionUpdate, models.SubjectProposal, id)
	audit.BeforeValues = jsonSnapshot(before)
	if err := s.repo.Update(ctx, &updated, audit); err != nil {
		return nil, mapRepoError(err)
	}
	invalidateDashboards(ctx, s.cache)
	return &updated, nil
}

// SubmitProposal sends a draft, or a rejected proposal again, for review.
func (s *ProposalService) SubmitProposal(ctx context.Context, actor Actor, id uuid.UUID) (*models.Proposal, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if current.SubmitterID != actor.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the submitter can submit this proposal")
	}

	updated, err := s.transition(ctx, actor, current, models.ActionSubmit, repository.ProposalTransition{
		ID:   id,
		From: []string{models.StatusDraft, models.StatusRejected},
		To:   models.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	if reviewers, err := s.staff.ListIDsByRoles(ctx, models.RoleStaff, models.RoleAdmin); err != nil {
		logger.WithFields(logrus.Fields{"proposal_id": id}).Warnf("proposal service: list reviewers: %v", err)
	} else {
		s.notify(ctx, reviewers, models.EventProposalSubmitted, map[string]any{
			"proposal_id": updated.ID,
			"title":       updated.Title,
		})
	}
	return updated, nil
}

// ApproveProposal accepts a pending proposal. The approved budget defaults to
// the estimate.
func (s *ProposalService) ApproveProposal(ctx context.Context, actor Actor, id uuid.UUID, in ReviewInput) (*models.Proposal, error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	if err := validation.ValidateOptionalLength("remarks", in.Remarks, validation.MaxReasonLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	budget, err := valueobject.ApprovedBudget(in.ApprovedBudget, current.EstimatedBudget)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, actor, current, models.ActionApprove, repository.ProposalTransition{
		ID:     id,
		From:   []string{models.StatusPending},
		To:     models.StatusApproved,
		Actor:  actor.ID,
		Budget: &budget.Amount,
		Note:   trimmedOrNil(in.Remarks),
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, []uuid.UUID{updated.SubmitterID}, models.EventProposalApproved, map[string]any{
		"proposal_id":     updated.ID,
		"title":           updated.Title,
		"approved_budget": budget.Amount,
	})
	s.announceProgram(ctx, updated)
	return updated, nil
}

// RejectProposal returns a pending proposal to its submitter with a reason.
func (s *ProposalService) RejectProposal(ctx context.Context, actor Actor, id uuid.UUID, in ReviewInput) (*models.Proposal, error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	if err := validation.ValidateReason(in.Reason); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateOptionalLength("remarks", in.Remarks, validation.MaxReasonLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	reason := strings.TrimSpace(in.Reason)
	updated, err := s.transition(ctx, actor, current, models.ActionReject, repository.ProposalTransition{
		ID:     id,
		From:   []string{models.StatusPending},
		To:     models.StatusRejected,
		Actor:  actor.ID,
		Reason: &reason,
		Note:   trimmedOrNil(in.Remarks),
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, []uuid.UUID{updated.SubmitterID}, models.EventProposalRejected, map[string]any{
		"proposal_id": updated.ID,
		"title":       updated.Title,
		"reason":      reason,
	})
	return updated, nil
}

// DeleteProposal removes a draft and its stored files.
func (s *ProposalService) DeleteProposal(ctx context.Context, actor Actor, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}
	if current.SubmitterID != actor.ID {
		return apperror.New(apperror.ErrCodeForbidden, "only the submitter can delete this proposal")
	}
	if current.Status != models.StatusDraft {
		return apperror.New(apperror.ErrCodeConflict, "only draft proposals can be deleted")
	}

	audit := actor.audit(models.ActionDelete, models.SubjectProposal, id)
	audit.BeforeValues = jsonSnapshot(current)
	paths, err := s.repo.Delete(ctx, id, actor.ID, audit)
	if err != nil {
		return mapRepoError(err)
	}

	for _, key := range paths {
		if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			logger.WithFields(logrus.Fields{
				"proposal_id": id,
				"key":         key,
			}).Warnf("proposal service: delete attachment file: %v", err)
		}
	}
	invalidateDashboards(ctx, s.cache)
	return nil
}

// GetProposal returns a proposal visible to the actor.
func (s *ProposalService) GetProposal(ctx context.Context, actor Actor, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !canView(actor, p) {
		// Hide other users' proposals entirely.
		return nil, apperror.ErrProposalNotFound
	}
	return p, nil
}

// ListProposals returns a page of proposals. Youth only see their own.
func (s *ProposalService) ListProposals(ctx context.Context, actor Actor, in ProposalListInput) (*repository.ProposalListResult, error) {
	if in.Status != "" {
		if _, err := valueobject.NewReviewStatus(in.Status); err != nil {
			return nil, err
		}
	}
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return nil, apperror.Validation("'to' must not be before 'from'")
	}

	filter := repository.ProposalFilter{
		Status:      in.Status,
		CommitteeID: in.CommitteeID,
		SubmitterID: in.SubmitterID,
		Search:      strings.TrimSpace(in.Search),
		From:        in.From,
		To:          in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if !actor.IsReviewer() {
		id := actor.ID
		filter.SubmitterID = &id
	}

	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return result, nil
}

// AddAttachment stores an uploaded supporting document.
func (s *ProposalService) AddAttachment(ctx context.Context, actor Actor, proposalID uuid.UUID, filename string, r io.Reader) (*models.ProposalAttachment, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if p.SubmitterID != actor.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "only the submitter can attach files")
	}
	if !p.IsEditable() {
		return nil, apperror.New(apperror.ErrCodeConflict, "attachments can only change while the proposal is draft or rejected")
	}

	mime, body, err := storage.Sniff(r)
	if err != nil {
		return nil, storageError(err)
	}

	key, size, err := s.files.Save(ctx, proposalID, filename, mime, body)
	if err != nil {
		return nil, storageError(err)
	}

	a := &models.ProposalAttachment{
		ProposalID:       proposalID,
		FilePath:         key,
		MimeType:         mime,
		OriginalFilename: storage.SanitizeFilename(filename),
		FileSize:         size,
		UploadedBy:       actor.ID,
	}
	if err := s.repo.AddAttachment(ctx, a, actor.audit(models.ActionCreate, models.SubjectAttachment, uuid.Nil)); err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			logger.WithFields(logrus.Fields{"key": key}).Warnf("proposal service: cleanup orphan file: %v", delErr)
		}
		return nil, mapRepoError(err)
	}
	return a, nil
}

// ListAttachments returns the documents of a proposal visible to the actor.
func (s *ProposalService) ListAttachments(ctx context.Context, actor Actor, proposalID uuid.UUID) ([]models.ProposalAttachment, error) {
	if _, err := s.GetProposal(ctx, actor, proposalID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAttachments(ctx, proposalID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return list, nil
}

// OpenAttachment returns the attachment metadata and its content. The caller
// closes the reader.
func (s *ProposalService) OpenAttachment(ctx context.Context, actor Actor, proposalID, attachmentID uuid.UUID) (*models.ProposalAttachment, io.ReadCloser, error) {
	if _, err := s.GetProposal(ctx, actor, proposalID); err != nil {
		return nil, nil, err
	}
	a, err := s.repo.GetAttachment(ctx, proposalID, attachmentID)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	rc, err := s.files.Open(ctx, a.FilePath)
	if err != nil {
		return nil, nil, storageError(err)
	}
	return a, rc, nil
}

// DeleteAttachment removes a document. Submitters may do so while the
// proposal is editable; admins at any time.
func (s *ProposalService) DeleteAttachment(ctx context.Context, actor Actor, proposalID, attachmentID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return mapRepoError(err)
	}
	if !actor.IsAdmin() {
		if p.SubmitterID != actor.ID {
			return apperror.New(apperror.ErrCodeForbidden, "only the submitter can remove attachments")
		}
		if !p.IsEditable() {
			return apperror.New(apperror.ErrCodeConflict, "attachments can only change while the proposal is draft or rejected")
		}
	}

	a, err := s.repo.GetAttachment(ctx, proposalID, attachmentID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := s.repo.DeleteAttachment(ctx, a, actor.audit(models.ActionDelete, models.SubjectAttachment, a.ID)); err != nil {
		return mapRepoError(err)
	}
	if err := s.files.Delete(ctx, a.FilePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.WithFields(logrus.Fields{"key": a.FilePath}).Warnf("proposal service: delete attachment file: %v", err)
	}
	return nil
}

// transition checks the move against the workflow, then performs the
// conditional update. Losing a race to another reviewer yields a conflict.
func (s *ProposalService) transition(ctx context.Context, actor Actor, current *models.Proposal, action string, t repository.ProposalTransition) (*models.Proposal, error) {
	if err := valueobject.ReviewStatus(current.Status).Transition(valueobject.ReviewStatus(t.To)); err != nil {
		return nil, err
	}

	audit := actor.audit(action, models.SubjectProposal, current.ID)
	audit.BeforeValues = jsonSnapshot(map[string]any{
		"status":           current.Status,
		"approved_budget":  current.ApprovedBudget,
		"rejection_reason": current.RejectionReason,
	})

	updated, err := s.repo.Transition(ctx, t, audit)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.metrics.IncrementTransition(models.SubjectProposal, t.To)
	invalidateDashboards(ctx, s.cache)
	logger.WithFields(logrus.Fields{
		"proposal_id": updated.ID,
		"from":        current.Status,
		"to":          updated.Status,
		"actor_id":    actor.ID,
	}).Info("proposal status changed")
	return updated, nil
}

// announceProgram tells youth interested in the committee about an approved
// program.
func (s *ProposalService) announceProgram(ctx context.Context, p *models.Proposal) {
	if p.CommitteeID == nil || s.interests == nil {
		return
	}
	fields := logrus.Fields{"proposal_id": p.ID, "committee_id": *p.CommitteeID}

	committee, err := s.committees.GetByID(ctx, *p.CommitteeID)
	if err != nil {
		logger.WithFields(fields).Warnf("proposal service: load committee: %v", err)
		return
	}
	ids, err := s.interests.ListUserIDsByInterest(ctx, committee.Slug)
	if err != nil {
		logger.WithFields(fields).Warnf("proposal service: match interests: %v", err)
		return
	}

	recipients := ids[:0]
	for _, id := range ids {
		if id != p.SubmitterID {
			recipients = append(recipients, id)
		}
	}
	s.notify(ctx, recipients, models.EventProgramAnnounced, map[string]any{
		"proposal_id": p.ID,
		"title":       p.Title,
		"committee":   committee.Name,
	})
}

func (s *ProposalService) notify(ctx context.Context, userIDs []uuid.UUID, event string, data map[string]any) {
	if s.notifier == nil || len(userIDs) == 0 {
		return
	}
	s.notifier.Notify(ctx, userIDs, event, data)
}

func (s *ProposalService) applyInput(ctx context.Context, p *models.Proposal, in ProposalInput) error {
	if err := validateProposalInput(in); err != nil {
		return err
	}
	if in.CommitteeID != nil {
		if _, err := s.committees.GetByID(ctx, *in.CommitteeID); err != nil {
			return mapRepoError(err)
		}
	}

	budget, err := valueobject.NewMoney(in.EstimatedBudget)
	if err != nil {
		return err
	}

	p.CommitteeID = in.CommitteeID
	p.Category = strings.TrimSpace(in.Category)
	p.Title = strings.TrimSpace(in.Title)
	p.Description = strings.TrimSpace(in.Description)
	p.Objectives = trimmedOrNil(in.Objectives)
	p.Beneficiaries = trimmedOrNil(in.Beneficiaries)
	p.Location = trimmedOrNil(in.Location)
	p.ImplementationStart = in.ImplementationStart
	p.ImplementationEnd = in.ImplementationEnd
	p.EstimatedBudget = budget.Amount
	return nil
}

func validateProposalInput(in ProposalInput) error {
	if err := validation.ValidateProposalTitle(in.Title); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateProposalDescription(in.Description); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return apperror.Validation("category is required")
	}
	if err := validation.ValidateLength("category", category, 0, validation.MaxCategoryLength); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	for name, v := range map[string]*string{"objectives": in.Objectives, "beneficiaries": in.Beneficiaries} {
		if err := validation.ValidateOptionalLength(name, v, validation.MaxProposalTextLength); err != nil {
			return apperror.Validation("%s", err.Error())
		}
	}
	if err := validation.ValidateOptionalLength("location", in.Location, validation.MaxLocationLength); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	if in.ImplementationStart != nil && in.ImplementationEnd != nil &&
		in.ImplementationEnd.Time.Before(in.ImplementationStart.Time) {
		return apperror.Validation("implementation end must not be before its start")
	}
	return nil
}

func canView(actor Actor, p *models.Proposal) bool {
	return actor.IsReviewer() || p.SubmitterID == actor.ID
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return apperror.Validation("file exceeds the upload limit")
	case errors.Is(err, storage.ErrUnsupportedType):
		return apperror.Validation("unsupported file type")
	case errors.Is(err, storage.ErrObjectNotFound):
		return apperror.ErrAttachmentNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeStorageError, "file storage error")
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
