package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
)

// mockAuthRepository implements AuthRepository and UserRepository in memory.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	sessions     map[string]*models.Session
	audits       []*models.ActivityLog
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User, audit *models.ActivityLog) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrUserExists
	}
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	if audit != nil {
		audit.SubjectID = user.ID
		m.audits = append(m.audits, audit)
	}
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) List(ctx context.Context, role string, limit, offset int) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.usersByID {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (m *mockAuthRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, audit *models.ActivityLog) error {
	user, ok := m.usersByID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsActive = active
	if !active {
		for token, s := range m.sessions {
			if s.UserID == id {
				delete(m.sessions, token)
			}
		}
	}
	m.audits = append(m.audits, audit)
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) ConsumeSession(ctx context.Context, refreshToken string) error {
	if _, ok := m.sessions[refreshToken]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (m *mockAuthRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	for token, s := range m.sessions {
		if s.ID == sessionID && s.UserID == userID {
			delete(m.sessions, token)
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error {
	for token, s := range m.sessions {
		if s.UserID == userID && token != exceptRefreshToken {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func seedUser(t *testing.T, repo *mockAuthRepository, email, password, role string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     "seeded_" + role,
		PasswordHash: string(hash),
		Role:         role,
		FullName:     "Seeded User",
		IsActive:     true,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user
	return user
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "Juan.DelaCruz@Example.ph",
		Password: "Kabataan2024",
		FullName: "Juan Dela Cruz",
		Phone:    "0917 123 4567",
	}, SessionMeta{IP: "127.0.0.1"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.User.ID)
	assert.Equal(t, models.RoleYouth, res.User.Role)
	assert.Equal(t, "juan.delacruz@example.ph", res.User.Email)
	assert.Equal(t, "+639171234567", *res.User.Phone)
	assert.NotEmpty(t, res.User.Username)
	assert.Len(t, repo.sessions, 1)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.ActionCreate, repo.audits[0].Action)
	assert.Equal(t, res.User.ID, repo.audits[0].SubjectID)

	loginRes, err := service.Login(ctx, LoginInput{
		Email:    "juan.delacruz@example.ph",
		Password: "Kabataan2024",
	}, SessionMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, loginRes.TokenPair.AccessToken)
	assert.NotNil(t, repo.usersByID[res.User.ID].LastLoginAt)
}

func TestAuthService_RegisterRejectsWeakPassword(t *testing.T) {
	service := NewAuthService(newMockAuthRepository(), NewTokenManager("a", "r", time.Minute, time.Hour))

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "maria@example.ph",
		Password: "password",
		FullName: "Maria Santos",
	}, SessionMeta{})
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_LoginFailures(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))
	user := seedUser(t, repo, "staff@example.ph", "Secret123", models.RoleStaff)
	ctx := context.Background()

	_, err := service.Login(ctx, LoginInput{Email: "staff@example.ph", Password: "wrong"}, SessionMeta{})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	_, err = service.Login(ctx, LoginInput{Email: "nobody@example.ph", Password: "Secret123"}, SessionMeta{})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	user.IsActive = false
	_, err = service.Login(ctx, LoginInput{Email: "staff@example.ph", Password: "Secret123"}, SessionMeta{})
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_RefreshIsSingleUse(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)
	ctx := context.Background()

	user := seedUser(t, repo, "user@example.ph", "Secret123", models.RoleYouth)
	pair, refreshExp, err := tokenManager.GeneratePair(user)
	require.NoError(t, err)
	repo.sessions[pair.RefreshToken] = &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	newPair, err := service.Refresh(ctx, pair.RefreshToken, SessionMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	_, err = service.Refresh(ctx, pair.RefreshToken, SessionMeta{})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestTokenManager_AccessCarriesRole(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleStaff}

	pair, _, err := tm.GeneratePair(user)
	require.NoError(t, err)

	id, role, err := tm.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, models.RoleStaff, role)

	_, _, err = tm.ParseAccess(pair.RefreshToken)
	assert.Error(t, err, "refresh token must not pass as access token")
}

func TestUserService_AdminOperations(t *testing.T) {
	repo := newMockAuthRepository()
	users := NewUserService(repo)
	ctx := context.Background()

	admin := seedUser(t, repo, "admin@example.ph", "Secret123", models.RoleAdmin)
	adminActor := Actor{ID: admin.ID, Role: models.RoleAdmin}

	staff, err := users.CreateUser(ctx, adminActor, CreateUserInput{
		Email:    "kagawad@example.ph",
		Password: "Secret123",
		FullName: "Ana Reyes",
		Role:     models.RoleStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, staff.Role)

	_, err = users.CreateUser(ctx, Actor{ID: staff.ID, Role: models.RoleStaff}, CreateUserInput{})
	assert.True(t, apperror.IsForbidden(err))

	_, err = users.CreateUser(ctx, adminActor, CreateUserInput{
		Email: "x@example.ph", Password: "Secret123", FullName: "X Y", Role: "mayor",
	})
	assert.True(t, apperror.IsValidation(err))

	updated, err := users.SetActive(ctx, adminActor, staff.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = users.SetActive(ctx, adminActor, admin.ID, false)
	assert.True(t, apperror.IsValidation(err), "admins cannot deactivate themselves")

	page, err := users.ListUsers(ctx, adminActor, models.RoleStaff, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 20, page.Limit)
}
