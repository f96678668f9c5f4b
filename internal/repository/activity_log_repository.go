package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
)

var emptyJSON = json.RawMessage(`{}`)

// ActivityLogRepository reads the audit trail. Rows are written by the other
// repositories inside the transaction of the mutation they describe.
type ActivityLogRepository struct {
	db *sqlx.DB
}

func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// ActivityLogFilter narrows ActivityLogRepository.List.
type ActivityLogFilter struct {
	SubjectType string
	SubjectID   *uuid.UUID
	ActorID     *uuid.UUID
	Action      string
	Limit       int
	Offset      int
}

func (r *ActivityLogRepository) List(ctx context.Context, f ActivityLogFilter) ([]models.ActivityLog, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if f.SubjectType != "" {
		where += fmt.Sprintf(" AND subject_type = $%d", argIndex)
		args = append(args, f.SubjectType)
		argIndex++
	}
	if f.SubjectID != nil {
		where += fmt.Sprintf(" AND subject_id = $%d", argIndex)
		args = append(args, *f.SubjectID)
		argIndex++
	}
	if f.ActorID != nil {
		where += fmt.Sprintf(" AND actor_id = $%d", argIndex)
		args = append(args, *f.ActorID)
		argIndex++
	}
	if f.Action != "" {
		where += fmt.Sprintf(" AND action = $%d", argIndex)
		args = append(args, f.Action)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM activity_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("activity log repository: count %w", err)
	}

	query := `SELECT * FROM activity_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, normalizeLimit(f.Limit), max(f.Offset, 0))

	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("activity log repository: list %w", err)
	}
	return logs, total, nil
}

// Recent returns the newest n entries.
func (r *ActivityLogRepository) Recent(ctx context.Context, n int) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, `SELECT * FROM activity_logs ORDER BY created_at DESC LIMIT $1`, n); err != nil {
		return nil, fmt.Errorf("activity log repository: recent %w", err)
	}
	return logs, nil
}

// insertActivityLog writes entry through q, which may be a transaction.
func insertActivityLog(ctx context.Context, q sqlx.QueryerContext, entry *models.ActivityLog) error {
	if entry == nil {
		return nil
	}
	before := entry.BeforeValues
	if len(before) == 0 {
		before = emptyJSON
	}
	after := entry.AfterValues
	if len(after) == 0 {
		after = emptyJSON
	}

	err := q.QueryRowxContext(ctx, `
		INSERT INTO activity_logs (actor_id, action, subject_type, subject_id, before_values, after_values, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, entry.ActorID, entry.Action, entry.SubjectType, entry.SubjectID, before, after, entry.IPAddress,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("activity log: insert %w", err)
	}
	entry.BeforeValues, entry.AfterValues = before, after
	return nil
}

// snapshot marshals v for before/after columns. Marshal failures degrade to {}.
func snapshot(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return emptyJSON
	}
	return b
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
