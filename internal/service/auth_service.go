package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/validation"
)

// AuthRepository is the storage AuthService depends on.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User, audit *models.ActivityLog) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateSession(ctx context.Context, session *models.Session) error
	ConsumeSession(ctx context.Context, refreshToken string) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error
	DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error
}

// AuthService handles registration, login and refresh-token sessions.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// RegisterInput is the self-registration form of a youth member.
type RegisterInput struct {
	Email    string
	Password string
	Username string
	FullName string
	Phone    string
}

// LoginInput holds credentials.
type LoginInput struct {
	Email    string
	Password string
}

// SessionMeta describes the client opening a session.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{repo: repo, tokenManager: tokenManager}
}

// Register creates a youth account and opens its first session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta SessionMeta) (*AuthResult, error) {
	user, err := buildUser(in.Email, in.Password, in.Username, in.FullName, in.Phone, models.RoleYouth)
	if err != nil {
		return nil, err
	}

	audit := Actor{IP: meta.IP}.audit(models.ActionCreate, models.SubjectUser, uuid.Nil)
	if err := s.repo.Create(ctx, user, audit); err != nil {
		return nil, mapRepoError(err)
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta SessionMeta) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, mapRepoError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "account is deactivated")
	}

	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("auth service: update last_login_at failed")
	}

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh rotates a refresh token. Each refresh token is accepted once.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta SessionMeta) (*TokenPair, error) {
	invalid := apperror.New(apperror.ErrCodeUnauthorized, "refresh token is invalid or expired")

	userID, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, invalid
	}

	if err := s.repo.ConsumeSession(ctx, oldToken); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, invalid
		}
		return nil, mapRepoError(err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, invalid
		}
		return nil, mapRepoError(err)
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "account is deactivated")
	}

	return s.openSession(ctx, user, meta)
}

func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	return sessions, mapRepoError(err)
}

func (s *AuthService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	return mapRepoError(s.repo.DeleteSessionByID(ctx, sessionID, userID))
}

// DeleteAllSessionsExcept signs the user out everywhere but the current client.
func (s *AuthService) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, currentRefreshToken string) error {
	return mapRepoError(s.repo.DeleteAllSessionsExcept(ctx, userID, currentRefreshToken))
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta SessionMeta) (*TokenPair, error) {
	pair, refreshExp, err := s.tokenManager.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "could not issue tokens")
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if meta.IP != "" {
		session.IPAddress = &meta.IP
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, mapRepoError(err)
	}
	return pair, nil
}

// buildUser validates account fields and hashes the password.
func buildUser(email, password, username, fullName, phone, role string) (*models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if err := validation.ValidateFullName(fullName); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = deriveUsername(email)
	} else if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	user := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Username: username,
		Role:     role,
		FullName: strings.TrimSpace(fullName),
	}

	if phone != "" {
		normalized, err := validation.NormalizePhone(phone)
		if err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		user.Phone = &normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "could not hash password")
	}
	user.PasswordHash = string(hash)
	return user, nil
}

// deriveUsername builds a username from the local part of an email.
func deriveUsername(email string) string {
	name := strings.Split(strings.ToLower(strings.TrimSpace(email)), "@")[0]
	name = strings.NewReplacer(".", "_", "+", "_", "-", "_").Replace(name)
	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		name = "u" + name
	}
	if len(name) < 3 {
		name = "user_" + uuid.NewString()[:6]
	}
	if len(name) > 24 {
		name = name[:24]
	}
	return name + "_" + uuid.NewString()[:4]
}
