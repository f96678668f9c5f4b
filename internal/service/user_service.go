package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
)

// UserRepository is the storage UserService depends on.
type UserRepository interface {
	Create(ctx context.Context, user *models.User, audit *models.ActivityLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, role string, limit, offset int) ([]models.User, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool, audit *models.ActivityLog) error
}

// UserService holds account administration.
type UserService struct {
	repo UserRepository
}

// CreateUserInput is an admin-created account.
type CreateUserInput struct {
	Email    string
	Password string
	Username string
	FullName string
	Phone    string
	Role     string
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUser creates an account of any role. Only admins may call it.
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if _, ok := models.ValidRoles[in.Role]; !ok {
		return nil, apperror.Validation("role must be youth, staff or admin")
	}

	user, err := buildUser(in.Email, in.Password, in.Username, in.FullName, in.Phone, in.Role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, user, actor.audit(models.ActionCreate, models.SubjectUser, uuid.Nil)); err != nil {
		return nil, mapRepoError(err)
	}
	return user, nil
}

// SetActive activates or deactivates an account. Deactivation revokes every
// session; admins cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, actor Actor, userID uuid.UUID, active bool) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if userID == actor.ID && !active {
		return nil, apperror.Validation("you cannot deactivate your own account")
	}

	if err := s.repo.SetActive(ctx, userID, active, actor.audit(models.ActionUpdate, models.SubjectUser, userID)); err != nil {
		return nil, mapRepoError(err)
	}
	user, err := s.repo.GetByID(ctx, userID)
	return user, mapRepoError(err)
}

// ListUsers returns a page of accounts, optionally of one role.
func (s *UserService) ListUsers(ctx context.Context, actor Actor, role string, limit, offset int) (*Page[models.User], error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if role != "" {
		if _, ok := models.ValidRoles[role]; !ok {
			return nil, apperror.Validation("unknown role %q", role)
		}
	}
	limit, offset = pageBounds(limit, offset)

	users, total, err := s.repo.List(ctx, role, limit, offset)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return newPage(users, total, limit, offset), nil
}
