package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/validation"
)

// CommitteeRepository is the storage CommitteeService depends on.
type CommitteeRepository interface {
	List(ctx context.Context) ([]models.Committee, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error)
	Create(ctx context.Context, c *models.Committee, audit *models.ActivityLog) error
	Update(ctx context.Context, c *models.Committee, audit *models.ActivityLog) error
}

type CommitteeService struct {
	repo  CommitteeRepository
	cache Cache
}

// CommitteeInput is the admin form of a committee. Slug is only read on
// create.
type CommitteeInput struct {
	Slug        string
	Name        string
	Description *string
}

func NewCommitteeService(repo CommitteeRepository, cache Cache) *CommitteeService {
	return &CommitteeService{repo: repo, cache: cache}
}

func (s *CommitteeService) ListCommittees(ctx context.Context) ([]models.Committee, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if list == nil {
		list = []models.Committee{}
	}
	return list, nil
}

func (s *CommitteeService) CreateCommittee(ctx context.Context, actor Actor, in CommitteeInput) (*models.Committee, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	c := &models.Committee{Slug: slug}
	if err := fillCommittee(c, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c, actor.audit(models.ActionCreate, models.SubjectCommittee, uuid.Nil)); err != nil {
		return nil, mapRepoError(err)
	}
	return c, nil
}

// UpdateCommittee renames a committee and rewrites its description.
func (s *CommitteeService) UpdateCommittee(ctx context.Context, actor Actor, id uuid.UUID, in CommitteeInput) (*models.Committee, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	c := &models.Committee{ID: id}
	if err := fillCommittee(c, in); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, c, actor.audit(models.ActionUpdate, models.SubjectCommittee, id)); err != nil {
		return nil, mapRepoError(err)
	}
	// Committee names appear in the dashboard breakdown.
	invalidateDashboards(ctx, s.cache)
	return c, nil
}

func fillCommittee(c *models.Committee, in CommitteeInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperror.Validation("name is required")
	}
	if err := validation.ValidateLength("name", name, 0, validation.MaxCommitteeNameLength); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateOptionalLength("description", in.Description, validation.MaxProposalTextLength); err != nil {
		return apperror.Validation("%s", err.Error())
	}
	c.Name = name
	c.Description = trimmedOrNil(in.Description)
	return nil
}
