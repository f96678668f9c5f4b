package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

var (
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

const proposalColumns = `id, submitter_id, committee_id, category, title, description, objectives,
	beneficiaries, location, implementation_start, implementation_end, estimated_budget,
	approved_budget, status, submitted_at, reviewed_by, reviewed_at, rejection_reason, remarks,
	created_at, updated_at`

// ProposalRepository owns proposals and proposal_attachments.
type ProposalRepository struct {
	db *sqlx.DB
}

func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// ProposalFilter narrows ProposalRepository.List.
type ProposalFilter struct {
	Status      string
	CommitteeID *uuid.UUID
	SubmitterID *uuid.UUID
	Search      string
	// Window keeps proposals whose implementation period overlaps [From, To].
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// ProposalListResult is a page of proposals.
type ProposalListResult struct {
	Proposals []models.Proposal `json:"items"`
	Total     int               `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
	HasMore   bool              `json:"has_more"`
}

// Create inserts a draft together with its audit row.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO proposals (submitter_id, committee_id, category, title, description, objectives,
				beneficiaries, location, implementation_start, implementation_end, estimated_budget, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'draft')
			RETURNING ` + proposalColumns

		if err := tx.QueryRowxContext(ctx, query,
			p.SubmitterID, p.CommitteeID, p.Category, p.Title, p.Description, p.Objectives,
			p.Beneficiaries, p.Location, p.ImplementationStart, p.ImplementationEnd, p.EstimatedBudget,
		).StructScan(p); err != nil {
			return fmt.Errorf("proposal repository: create %w", err)
		}

		if audit != nil {
			audit.SubjectID = p.ID
			audit.AfterValues = snapshot(p)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	if err := r.db.GetContext(ctx, &p, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: get by id %w", err)
	}
	return &p, nil
}

// Update rewrites the editable fields while the proposal is still draft or
// rejected.
func (r *ProposalRepository) Update(ctx context.Context, p *models.Proposal, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE proposals
			SET committee_id = $3, category = $4, title = $5, description = $6, objectives = $7,
				beneficiaries = $8, location = $9, implementation_start = $10, implementation_end = $11,
				estimated_budget = $12, updated_at = NOW()
			WHERE id = $1 AND submitter_id = $2 AND status IN ('draft', 'rejected')
			RETURNING ` + proposalColumns

		err := tx.QueryRowxContext(ctx, query,
			p.ID, p.SubmitterID, p.CommitteeID, p.Category, p.Title, p.Description, p.Objectives,
			p.Beneficiaries, p.Location, p.ImplementationStart, p.ImplementationEnd, p.EstimatedBudget,
		).StructScan(p)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrStaleStatus
			}
			return fmt.Errorf("proposal repository: update %w", err)
		}

		if audit != nil {
			audit.AfterValues = snapshot(p)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

// ProposalTransition describes one conditional status change.
type ProposalTransition struct {
	ID     uuid.UUID
	From   []string
	To     string
	Actor  uuid.UUID
	Budget *float64
	Reason *string
	Note   *string
}

// Transition moves a proposal from one of t.From to t.To with a single
// conditional update. A row whose status no longer matches yields
// common.ErrStaleStatus and nothing is written.
func (r *ProposalRepository) Transition(ctx context.Context, t ProposalTransition, audit *models.ActivityLog) (*models.Proposal, error) {
	var set string
	args := []interface{}{t.ID, pq.Array(t.From), t.To}

	switch t.To {
	case models.StatusPending:
		set = `submitted_at = NOW(), reviewed_by = NULL, reviewed_at = NULL, rejection_reason = NULL, approved_budget = NULL, remarks = NULL`
	case models.StatusApproved:
		set = `reviewed_by = $4, reviewed_at = NOW(), approved_budget = $5, remarks = $6, rejection_reason = NULL`
		args = append(args, t.Actor, t.Budget, t.Note)
	case models.StatusRejected:
		set = `reviewed_by = $4, reviewed_at = NOW(), rejection_reason = $5, remarks = $6, approved_budget = NULL`
		args = append(args, t.Actor, t.Reason, t.Note)
	default:
		return nil, fmt.Errorf("proposal repository: unsupported target status %q", t.To)
	}

	query := `UPDATE proposals SET status = $3, updated_at = NOW(), ` + set + `
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + proposalColumns

	var updated models.Proposal
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrStaleStatus
			}
			return fmt.Errorf("proposal repository: transition %w", err)
		}
		if audit != nil {
			audit.AfterValues = snapshot(updated)
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a draft and returns the storage paths of its attachments.
func (r *ProposalRepository) Delete(ctx context.Context, id, submitterID uuid.UUID, audit *models.ActivityLog) ([]string, error) {
	var paths []string
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &paths,
			`SELECT file_path FROM proposal_attachments WHERE proposal_id = $1`, id); err != nil {
			return fmt.Errorf("proposal repository: delete list attachments %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM proposals WHERE id = $1 AND submitter_id = $2 AND status = 'draft'`, id, submitterID)
		if err != nil {
			return fmt.Errorf("proposal repository: delete %w", err)
		}
		if err := common.ExpectOneRow(res, common.ErrStaleStatus); err != nil {
			return err
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// List returns a filtered page of proposals, newest first.
func (r *ProposalRepository) List(ctx context.Context, f ProposalFilter) (*ProposalListResult, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.CommitteeID != nil {
		where += fmt.Sprintf(" AND committee_id = $%d", argIndex)
		args = append(args, *f.CommitteeID)
		argIndex++
	}
	if f.SubmitterID != nil {
		where += fmt.Sprintf(" AND submitter_id = $%d", argIndex)
		args = append(args, *f.SubmitterID)
		argIndex++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR category ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+f.Search+"%")
		argIndex++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND (implementation_end IS NULL OR implementation_end >= $%d)", argIndex)
		args = append(args, *f.From)
		argIndex++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND (implementation_start IS NULL OR implementation_start <= $%d)", argIndex)
		args = append(args, *f.To)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM proposals`+where, args...); err != nil {
		return nil, fmt.Errorf("proposal repository: count %w", err)
	}

	limit := normalizeLimit(f.Limit)
	offset := max(f.Offset, 0)

	query := `SELECT ` + proposalColumns + ` FROM proposals` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	proposals := []models.Proposal{}
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, fmt.Errorf("proposal repository: list %w", err)
	}

	return &ProposalListResult{
		Proposals: proposals,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
		HasMore:   offset+len(proposals) < total,
	}, nil
}

// AddAttachment stores attachment metadata.
func (r *ProposalRepository) AddAttachment(ctx context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO proposal_attachments (proposal_id, file_path, mime_type, original_filename, file_size, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, a.ProposalID, a.FilePath, a.MimeType, a.OriginalFilename, a.FileSize, a.UploadedBy,
		).Scan(&a.ID, &a.CreatedAt); err != nil {
			return fmt.Errorf("proposal repository: add attachment %w", err)
		}
		if audit != nil {
			audit.AfterValues = snapshot(a)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}

func (r *ProposalRepository) ListAttachments(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalAttachment, error) {
	attachments := []models.ProposalAttachment{}
	if err := r.db.SelectContext(ctx, &attachments,
		`SELECT * FROM proposal_attachments WHERE proposal_id = $1 ORDER BY created_at`, proposalID); err != nil {
		return nil, fmt.Errorf("proposal repository: list attachments %w", err)
	}
	return attachments, nil
}

func (r *ProposalRepository) GetAttachment(ctx context.Context, proposalID, attachmentID uuid.UUID) (*models.ProposalAttachment, error) {
	var a models.ProposalAttachment
	if err := r.db.GetContext(ctx, &a,
		`SELECT * FROM proposal_attachments WHERE id = $1 AND proposal_id = $2`, attachmentID, proposalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("proposal repository: get attachment %w", err)
	}
	return &a, nil
}

func (r *ProposalRepository) DeleteAttachment(ctx context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM proposal_attachments WHERE id = $1`, a.ID)
		if err != nil {
			return fmt.Errorf("proposal repository: delete attachment %w", err)
		}
		if err := common.ExpectOneRow(res, ErrAttachmentNotFound); err != nil {
			return err
		}
		if audit != nil {
			audit.BeforeValues = snapshot(a)
		}
		return insertActivityLog(ctx, tx, audit)
	})
}
