package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

// ErrUserNotFound is returned when no user row matches.
var ErrUserNotFound = errors.New("user not found")

// ErrSessionNotFound is returned when no session row matches.
var ErrSessionNotFound = errors.New("session not found")

// ErrUserExists is returned when the email or username is taken.
var ErrUserExists = errors.New("user already exists")

const userColumns = `id, email, username, password_hash, role, full_name, phone, is_active, last_login_at, created_at, updated_at`

// UserRepository owns the users and user_sessions tables.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user together with its audit row.
func (r *UserRepository) Create(ctx context.Context, user *models.User, audit *models.ActivityLog) error {
	query := `
		INSERT INTO users (email, username, password_hash, role, full_name, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(
			ctx, query,
			user.Email, user.Username, user.PasswordHash, user.Role, user.FullName, user.Phone,
		).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrUserExists
			}
			return fmt.Errorf("user repository: create %w", err)
		}

		if audit != nil {
			audit.SubjectID = user.ID
			if audit.ActorID == nil {
				audit.ActorID = &user.ID
			}
			audit.AfterValues = snapshot(user)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return &user, nil
}

// GetContacts returns the users with the given ids. Missing ids are skipped.
func (r *UserRepository) GetContacts(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("user repository: get contacts build %w", err)
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("user repository: get contacts %w", err)
	}
	return users, nil
}

// ListIDsByRoles returns ids of active users having any of roles.
func (r *UserRepository) ListIDsByRoles(ctx context.Context, roles ...string) ([]uuid.UUID, error) {
	query, args, err := sqlx.In(`SELECT id FROM users WHERE is_active = TRUE AND role IN (?)`, roles)
	if err != nil {
		return nil, fmt.Errorf("user repository: list by roles build %w", err)
	}

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("user repository: list by roles %w", err)
	}
	return ids, nil
}

// List returns users ordered by creation, optionally filtered by role.
func (r *UserRepository) List(ctx context.Context, role string, limit, offset int) ([]models.User, int, error) {
	where := ""
	args := []interface{}{}
	if role != "" {
		where = " WHERE role = $1"
		args = append(args, role)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("user repository: count %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("user repository: list %w", err)
	}
	return users, total, nil
}

// SetActive toggles the account and drops its sessions when deactivating.
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var before bool
		if err := tx.GetContext(ctx, &before, `SELECT is_active FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("user repository: set active load %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active); err != nil {
			return fmt.Errorf("user repository: set active %w", err)
		}
		if !active {
			if _, err := tx.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, id); err != nil {
				return fmt.Errorf("user repository: drop sessions %w", err)
			}
		}

		if audit != nil {
			audit.SubjectID = id
			audit.BeforeValues = snapshot(map[string]bool{"is_active": before})
			audit.AfterValues = snapshot(map[string]bool{"is_active": active})
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("user repository: update last login at %w", err)
	}
	return nil
}

func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// ConsumeSession deletes the session holding refreshToken. A refresh token
// that was already rotated or revoked yields ErrSessionNotFound.
func (r *UserRepository) ConsumeSession(ctx context.Context, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("user repository: consume session %w", err)
	}
	return common.ExpectOneRow(res, ErrSessionNotFound)
}

func (r *UserRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	query := `
		SELECT id, user_id, refresh_token, user_agent, ip_address, expires_at, created_at
		FROM user_sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("user repository: list sessions %w", err)
	}
	return sessions, nil
}

func (r *UserRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete session by id %w", err)
	}
	return common.ExpectOneRow(res, ErrSessionNotFound)
}

func (r *UserRepository) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1 AND refresh_token != $2`, userID, exceptRefreshToken); err != nil {
		return fmt.Errorf("user repository: delete all sessions except %w", err)
	}
	return nil
}
