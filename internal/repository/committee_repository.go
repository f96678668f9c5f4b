package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

var (
	ErrCommitteeNotFound = errors.New("committee not found")
	ErrCommitteeExists   = errors.New("committee slug already exists")
)

type CommitteeRepository struct {
	db *sqlx.DB
}

func NewCommitteeRepository(db *sqlx.DB) *CommitteeRepository {
	return &CommitteeRepository{db: db}
}

func (r *CommitteeRepository) List(ctx context.Context) ([]models.Committee, error) {
	var committees []models.Committee
	if err := r.db.SelectContext(ctx, &committees, `SELECT * FROM committees ORDER BY name`); err != nil {
		return nil, fmt.Errorf("committee repository: list %w", err)
	}
	return committees, nil
}

func (r *CommitteeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Committee, error) {
	return common.GetByID[models.Committee](ctx, r.db, "committees", id, ErrCommitteeNotFound)
}

// Create inserts a committee together with its audit row.
func (r *CommitteeRepository) Create(ctx context.Context, c *models.Committee, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO committees (slug, name, description) VALUES ($1, $2, $3) RETURNING id, created_at`,
			c.Slug, c.Name, c.Description,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrCommitteeExists
			}
			return fmt.Errorf("committee repository: create %w", err)
		}

		if audit != nil {
			audit.SubjectID = c.ID
			audit.AfterValues = snapshot(c)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

// Update renames a committee. The slug is immutable because youth interests
// reference it.
func (r *CommitteeRepository) Update(ctx context.Context, c *models.Committee, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		before, err := common.GetByID[models.Committee](ctx, tx, "committees", c.ID, ErrCommitteeNotFound)
		if err != nil {
			return err
		}

		if err := tx.QueryRowxContext(ctx,
			`UPDATE committees SET name = $2, description = $3 WHERE id = $1 RETURNING slug, created_at`,
			c.ID, c.Name, c.Description,
		).Scan(&c.Slug, &c.CreatedAt); err != nil {
			return fmt.Errorf("committee repository: update %w", err)
		}

		if audit != nil {
			audit.SubjectID = c.ID
			audit.BeforeValues = snapshot(before)
			audit.AfterValues = snapshot(c)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}
