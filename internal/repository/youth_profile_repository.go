package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
)

var (
	ErrPendingProfileNotFound = errors.New("pending youth profile not found")
	ErrProfileRecordNotFound  = errors.New("youth profile record not found")
	// ErrProfileUnderReview is returned when the caller edits a submission
	// that is waiting for review.
	ErrProfileUnderReview = errors.New("youth profile is under review")
	// ErrProfileAlreadyApproved is returned when the caller already owns an
	// approved record.
	ErrProfileAlreadyApproved = errors.New("youth profile already approved")
)

const pendingColumns = `id, user_id, source, external_ref, status, payload, submitted_at, reviewed_by,
	reviewed_at, rejection_reason, youth_profile_id, created_at, updated_at`

// YouthProfileRepository owns pending_youth_profiles and the approved record
// tables (youth_profiles, personal_information, family_information,
// engagement_data).
type YouthProfileRepository struct {
	db *sqlx.DB
}

func NewYouthProfileRepository(db *sqlx.DB) *YouthProfileRepository {
	return &YouthProfileRepository{db: db}
}

// PendingProfileFilter narrows ListPending.
type PendingProfileFilter struct {
	Status string
	Source string
	Search string
	Limit  int
	Offset int
}

// ProfileRecordFilter narrows ListRecords.
type ProfileRecordFilter struct {
	Classification string
	Sex            string
	Barangay       string
	Search         string
	Limit          int
	Offset         int
}

// SaveDraft creates the caller's draft or rewrites the payload of their open
// draft or rejected submission.
func (r *YouthProfileRepository) SaveDraft(ctx context.Context, userID uuid.UUID, payload json.RawMessage, audit *models.ActivityLog) (*models.PendingYouthProfile, error) {
	var saved models.PendingYouthProfile
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var approved bool
		if err := tx.GetContext(ctx, &approved,
			`SELECT EXISTS (SELECT 1 FROM youth_profiles WHERE user_id = $1)`, userID); err != nil {
			return fmt.Errorf("youth profile repository: check approved %w", err)
		}
		if approved {
			return ErrProfileAlreadyApproved
		}

		var current models.PendingYouthProfile
		err := tx.GetContext(ctx, &current, `
			SELECT `+pendingColumns+` FROM pending_youth_profiles
			WHERE user_id = $1 AND status IN ('draft', 'pending', 'rejected')
			FOR UPDATE
		`, userID)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRowxContext(ctx, `
				INSERT INTO pending_youth_profiles (user_id, source, status, payload)
				VALUES ($1, 'portal', 'draft', $2)
				RETURNING `+pendingColumns, userID, payload).StructScan(&saved); err != nil {
				if common.IsUniqueViolation(err, "idx_pending_profiles_open_per_user") {
					return common.ErrStaleStatus
				}
				return fmt.Errorf("youth profile repository: insert draft %w", err)
			}
			if audit != nil {
				audit.Action = models.ActionCreate
			}
		case err != nil:
			return fmt.Errorf("youth profile repository: load draft %w", err)
		case current.Status == models.StatusPending:
			return ErrProfileUnderReview
		default:
			if err := tx.QueryRowxContext(ctx, `
				UPDATE pending_youth_profiles SET payload = $2, updated_at = NOW()
				WHERE id = $1
				RETURNING `+pendingColumns, current.ID, payload).StructScan(&saved); err != nil {
				return fmt.Errorf("youth profile repository: update draft %w", err)
			}
			if audit != nil {
				audit.BeforeValues = current.Payload
			}
		}

		if audit != nil {
			audit.SubjectID = saved.ID
			audit.AfterValues = saved.Payload
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *YouthProfileRepository) GetPending(ctx context.Context, id uuid.UUID) (*models.PendingYouthProfile, error) {
	var p models.PendingYouthProfile
	if err := r.db.GetContext(ctx, &p, `SELECT `+pendingColumns+` FROM pending_youth_profiles WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingProfileNotFound
		}
		return nil, fmt.Errorf("youth profile repository: get pending %w", err)
	}
	return &p, nil
}

// GetLatestByUser returns the most recent submission of the user.
func (r *YouthProfileRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.PendingYouthProfile, error) {
	var p models.PendingYouthProfile
	if err := r.db.GetContext(ctx, &p, `
		SELECT `+pendingColumns+` FROM pending_youth_profiles
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingProfileNotFound
		}
		return nil, fmt.Errorf("youth profile repository: get latest by user %w", err)
	}
	return &p, nil
}

// Submit moves the owner's draft or rejected row to pending.
func (r *YouthProfileRepository) Submit(ctx context.Context, id, userID uuid.UUID, audit *models.ActivityLog) (*models.PendingYouthProfile, error) {
	return r.transition(ctx, `
		UPDATE pending_youth_profiles
		SET status = 'pending', submitted_at = NOW(), reviewed_by = NULL, reviewed_at = NULL,
			rejection_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status IN ('draft', 'rejected')
		RETURNING `+pendingColumns, audit, id, userID)
}

// Reject moves a pending row to rejected.
func (r *YouthProfileRepository) Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string, audit *models.ActivityLog) (*models.PendingYouthProfile, error) {
	return r.transition(ctx, `
		UPDATE pending_youth_profiles
		SET status = 'rejected', reviewed_by = $2, reviewed_at = NOW(), rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+pendingColumns, audit, id, reviewerID, reason)
}

func (r *YouthProfileRepository) transition(ctx context.Context, query string, audit *models.ActivityLog, args ...interface{}) (*models.PendingYouthProfile, error) {
	var updated models.PendingYouthProfile
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrStaleStatus
			}
			return fmt.Errorf("youth profile repository: transition %w", err)
		}
		if audit != nil {
			audit.AfterValues = snapshot(statusSnapshot(&updated))
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Approve claims a pending row and materializes it into a youth profile
// record with its personal, family and engagement rows. Everything happens in
// one transaction: either the pending row is approved and all four record
// rows exist, or nothing changes. A row that is no longer pending yields
// common.ErrStaleStatus.
func (r *YouthProfileRepository) Approve(ctx context.Context, id, reviewerID uuid.UUID, payload *models.YouthProfilePayload, audit *models.ActivityLog) (*models.YouthProfileRecord, error) {
	record := &models.YouthProfileRecord{PendingProfileID: id, ApprovedBy: reviewerID}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var claimed models.PendingYouthProfile
		if err := tx.QueryRowxContext(ctx, `
			UPDATE pending_youth_profiles
			SET status = 'approved', reviewed_by = $2, reviewed_at = NOW(), rejection_reason = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
			RETURNING `+pendingColumns, id, reviewerID).StructScan(&claimed); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrStaleStatus
			}
			return fmt.Errorf("youth profile repository: claim %w", err)
		}
		record.UserID = claimed.UserID

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO youth_profiles (pending_profile_id, user_id, approved_by)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, id, claimed.UserID, reviewerID).Scan(&record.ID, &record.CreatedAt); err != nil {
			if common.IsUniqueViolation(err, "youth_profiles_pending_profile_id_key") {
				return common.ErrStaleStatus
			}
			return fmt.Errorf("youth profile repository: insert record %w", err)
		}

		record.Personal = payload.Personal
		record.Family = payload.Family
		record.Engagement = payload.Engagement
		record.Personal.YouthProfileID = record.ID
		record.Family.YouthProfileID = record.ID
		record.Engagement.YouthProfileID = record.ID
		if record.Engagement.Interests == nil {
			record.Engagement.Interests = []string{}
		}
		if record.Engagement.Organizations == nil {
			record.Engagement.Organizations = []string{}
		}

		if err := insertRecordChildren(ctx, tx, record); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE pending_youth_profiles SET youth_profile_id = $2 WHERE id = $1`, id, record.ID); err != nil {
			return fmt.Errorf("youth profile repository: link record %w", err)
		}

		if audit != nil {
			claimed.YouthProfileID = &record.ID
			audit.AfterValues = snapshot(statusSnapshot(&claimed))
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func insertRecordChildren(ctx context.Context, tx *sqlx.Tx, rec *models.YouthProfileRecord) error {
	p := rec.Personal
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO personal_information (youth_profile_id, first_name, middle_name, last_name, suffix, sex,
			birthdate, civil_status, barangay, address, email, contact_number)
		VALUES (:youth_profile_id, :first_name, :middle_name, :last_name, :suffix, :sex,
			:birthdate, :civil_status, :barangay, :address, :email, :contact_number)
	`, &p); err != nil {
		return fmt.Errorf("youth profile repository: insert personal information %w", err)
	}

	f := rec.Family
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO family_information (youth_profile_id, father_name, mother_name, guardian_name,
			household_size, household_income)
		VALUES (:youth_profile_id, :father_name, :mother_name, :guardian_name,
			:household_size, :household_income)
	`, &f); err != nil {
		return fmt.Errorf("youth profile repository: insert family information %w", err)
	}

	e := rec.Engagement
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO engagement_data (youth_profile_id, youth_classification, education_level, work_status,
			registered_voter, attended_assembly, interests, organizations)
		VALUES (:youth_profile_id, :youth_classification, :education_level, :work_status,
			:registered_voter, :attended_assembly, :interests, :organizations)
	`, &e); err != nil {
		return fmt.Errorf("youth profile repository: insert engagement data %w", err)
	}
	return nil
}

// ListPending returns a page of intake rows, newest first.
func (r *YouthProfileRepository) ListPending(ctx context.Context, f PendingProfileFilter) ([]models.PendingYouthProfile, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, f.Status)
		argIndex++
	}
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", argIndex)
		args = append(args, f.Source)
		argIndex++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (payload->'personal'->>'first_name' ILIKE $%d
			OR payload->'personal'->>'last_name' ILIKE $%d
			OR external_ref ILIKE $%d)`, argIndex, argIndex, argIndex)
		args = append(args, "%"+f.Search+"%")
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pending_youth_profiles`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("youth profile repository: count pending %w", err)
	}

	query := `SELECT ` + pendingColumns + ` FROM pending_youth_profiles` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, normalizeLimit(f.Limit), max(f.Offset, 0))

	rows := []models.PendingYouthProfile{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("youth profile repository: list pending %w", err)
	}
	return rows, total, nil
}

// ImportRow is one externally sourced pending profile.
type ImportRow struct {
	ExternalRef *string
	Payload     json.RawMessage
}

// ImportPending inserts rows as pending submissions of the given source,
// skipping rows whose external_ref already exists. It returns how many rows
// were inserted.
func (r *YouthProfileRepository) ImportPending(ctx context.Context, source string, rows []ImportRow, audit *models.ActivityLog) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		bi := common.NewBatchInserter(tx,
			`INSERT INTO pending_youth_profiles (source, external_ref, status, payload, submitted_at)`, 5, 200).
			WithSuffix(`ON CONFLICT (external_ref) DO NOTHING`)

		now := time.Now()
		for _, row := range rows {
			if err := bi.Add(ctx, source, row.ExternalRef, models.StatusPending, row.Payload, now); err != nil {
				return fmt.Errorf("youth profile repository: import %w", err)
			}
		}
		if err := bi.Flush(ctx); err != nil {
			return fmt.Errorf("youth profile repository: import %w", err)
		}
		inserted = bi.Affected()

		if audit != nil {
			audit.AfterValues = snapshot(map[string]interface{}{
				"source":   source,
				"received": len(rows),
				"inserted": inserted,
			})
		}
		return insertActivityLog(ctx, tx, audit)
	})
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

// ExistingExternalRefs returns which of refs are already stored.
func (r *YouthProfileRepository) ExistingExternalRefs(ctx context.Context, refs []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(refs) == 0 {
		return found, nil
	}
	query, args, err := sqlx.In(`SELECT external_ref FROM pending_youth_profiles WHERE external_ref IN (?)`, refs)
	if err != nil {
		return nil, fmt.Errorf("youth profile repository: existing refs build %w", err)
	}
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("youth profile repository: existing refs %w", err)
	}
	for _, ref := range existing {
		found[ref] = struct{}{}
	}
	return found, nil
}

// GetRecord loads an approved record with its three child rows.
func (r *YouthProfileRepository) GetRecord(ctx context.Context, id uuid.UUID) (*models.YouthProfileRecord, error) {
	return r.getRecord(ctx, `id = $1`, id)
}

// GetRecordByUser loads the approved record linked to userID.
func (r *YouthProfileRepository) GetRecordByUser(ctx context.Context, userID uuid.UUID) (*models.YouthProfileRecord, error) {
	return r.getRecord(ctx, `user_id = $1`, userID)
}

func (r *YouthProfileRepository) getRecord(ctx context.Context, cond string, arg interface{}) (*models.YouthProfileRecord, error) {
	var rec models.YouthProfileRecord
	if err := r.db.QueryRowxContext(ctx,
		`SELECT id, pending_profile_id, user_id, approved_by, created_at FROM youth_profiles WHERE `+cond, arg,
	).Scan(&rec.ID, &rec.PendingProfileID, &rec.UserID, &rec.ApprovedBy, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileRecordNotFound
		}
		return nil, fmt.Errorf("youth profile repository: get record %w", err)
	}

	if err := r.db.GetContext(ctx, &rec.Personal,
		`SELECT * FROM personal_information WHERE youth_profile_id = $1`, rec.ID); err != nil {
		return nil, fmt.Errorf("youth profile repository: get personal information %w", err)
	}
	if err := r.db.GetContext(ctx, &rec.Family,
		`SELECT * FROM family_information WHERE youth_profile_id = $1`, rec.ID); err != nil {
		return nil, fmt.Errorf("youth profile repository: get family information %w", err)
	}
	if err := r.db.GetContext(ctx, &rec.Engagement,
		`SELECT * FROM engagement_data WHERE youth_profile_id = $1`, rec.ID); err != nil {
		return nil, fmt.Errorf("youth profile repository: get engagement data %w", err)
	}
	return &rec, nil
}

// ListRecords returns a page of approved records.
func (r *YouthProfileRepository) ListRecords(ctx context.Context, f ProfileRecordFilter) ([]models.YouthProfileSummary, int, error) {
	from := `
		FROM youth_profiles yp
		JOIN personal_information pi ON pi.youth_profile_id = yp.id
		JOIN engagement_data ed ON ed.youth_profile_id = yp.id
		WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if f.Classification != "" {
		from += fmt.Sprintf(" AND ed.youth_classification = $%d", argIndex)
		args = append(args, f.Classification)
		argIndex++
	}
	if f.Sex != "" {
		from += fmt.Sprintf(" AND pi.sex = $%d", argIndex)
		args = append(args, f.Sex)
		argIndex++
	}
	if f.Barangay != "" {
		from += fmt.Sprintf(" AND pi.barangay ILIKE $%d", argIndex)
		args = append(args, f.Barangay)
		argIndex++
	}
	if f.Search != "" {
		from += fmt.Sprintf(" AND (pi.first_name ILIKE $%d OR pi.last_name ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+f.Search+"%")
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from, args...); err != nil {
		return nil, 0, fmt.Errorf("youth profile repository: count records %w", err)
	}

	query := `SELECT yp.id, yp.user_id, pi.first_name, pi.last_name, pi.sex, pi.birthdate, pi.barangay,
		ed.youth_classification, yp.created_at` + from +
		fmt.Sprintf(" ORDER BY pi.last_name, pi.first_name LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, normalizeLimit(f.Limit), max(f.Offset, 0))

	records := []models.YouthProfileSummary{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("youth profile repository: list records %w", err)
	}
	return records, total, nil
}

// ListUserIDsByInterest returns account ids of approved youth whose
// engagement interests include the committee slug.
func (r *YouthProfileRepository) ListUserIDsByInterest(ctx context.Context, slug string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT yp.user_id
		FROM youth_profiles yp
		JOIN engagement_data ed ON ed.youth_profile_id = yp.id
		JOIN users u ON u.id = yp.user_id
		WHERE $1 = ANY(ed.interests) AND u.is_active = TRUE
	`, slug); err != nil {
		return nil, fmt.Errorf("youth profile repository: list by interest %w", err)
	}
	return ids, nil
}

// statusSnapshot keeps audit rows small: the payload is recorded once on
// save, transitions only record workflow fields.
func statusSnapshot(p *models.PendingYouthProfile) map[string]interface{} {
	return map[string]interface{}{
		"status":           p.Status,
		"source":           p.Source,
		"reviewed_by":      p.ReviewedBy,
		"rejection_reason": p.RejectionReason,
		"youth_profile_id": p.YouthProfileID,
	}
}
