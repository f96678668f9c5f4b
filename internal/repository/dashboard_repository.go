package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DashboardRepository runs read-only aggregate queries for the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// ProposalTotals summarizes proposals by status and budget.
type ProposalTotals struct {
	ByStatus        map[string]int `json:"by_status"`
	Total           int            `json:"total"`
	EstimatedBudget float64        `json:"total_estimated_budget"`
	ApprovedBudget  float64        `json:"total_approved_budget"`
}

// CommitteeTotals is one row of the per-committee breakdown.
type CommitteeTotals struct {
	CommitteeID    *uuid.UUID `db:"committee_id" json:"committee_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Proposals      int        `db:"proposals" json:"proposals"`
	Approved       int        `db:"approved" json:"approved"`
	ApprovedBudget float64    `db:"approved_budget" json:"approved_budget"`
}

// ProfileTotals summarizes intake and approved youth records.
type ProfileTotals struct {
	PendingByStatus  map[string]int `json:"pending_by_status"`
	PendingBySource  map[string]int `json:"pending_by_source"`
	Records          int            `json:"records"`
	ByClassification map[string]int `json:"by_classification"`
	BySex            map[string]int `json:"by_sex"`
}

type keyCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (r *DashboardRepository) countBy(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	var rows []keyCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}

// ProposalTotals aggregates all proposals, or only the submitter's when
// submitterID is set.
func (r *DashboardRepository) ProposalTotals(ctx context.Context, submitterID *uuid.UUID) (*ProposalTotals, error) {
	where := ""
	args := []interface{}{}
	if submitterID != nil {
		where = " WHERE submitter_id = $1"
		args = append(args, *submitterID)
	}

	byStatus, err := r.countBy(ctx, `SELECT status AS key, COUNT(*) AS count FROM proposals`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("dashboard repository: proposals by status %w", err)
	}

	totals := &ProposalTotals{ByStatus: byStatus}
	for _, n := range byStatus {
		totals.Total += n
	}

	if err := r.db.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(estimated_budget), 0), COALESCE(SUM(approved_budget) FILTER (WHERE status = 'approved'), 0)
		FROM proposals`+where, args...,
	).Scan(&totals.EstimatedBudget, &totals.ApprovedBudget); err != nil {
		return nil, fmt.Errorf("dashboard repository: proposal budgets %w", err)
	}
	return totals, nil
}

// CommitteeTotals breaks proposals down by committee. Proposals without a
// committee are grouped under "Unassigned".
func (r *DashboardRepository) CommitteeTotals(ctx context.Context) ([]CommitteeTotals, error) {
	rows := []CommitteeTotals{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT p.committee_id, COALESCE(c.name, 'Unassigned') AS name,
			COUNT(*) AS proposals,
			COUNT(*) FILTER (WHERE p.status = 'approved') AS approved,
			COALESCE(SUM(p.approved_budget) FILTER (WHERE p.status = 'approved'), 0) AS approved_budget
		FROM proposals p
		LEFT JOIN committees c ON c.id = p.committee_id
		GROUP BY p.committee_id, c.name
		ORDER BY approved_budget DESC, name
	`); err != nil {
		return nil, fmt.Errorf("dashboard repository: committee totals %w", err)
	}
	return rows, nil
}

// ProfileTotals aggregates pending intake and approved records.
func (r *DashboardRepository) ProfileTotals(ctx context.Context) (*ProfileTotals, error) {
	var (
		totals ProfileTotals
		err    error
	)

	if totals.PendingByStatus, err = r.countBy(ctx,
		`SELECT status AS key, COUNT(*) AS count FROM pending_youth_profiles GROUP BY status`); err != nil {
		return nil, fmt.Errorf("dashboard repository: pending by status %w", err)
	}
	if totals.PendingBySource, err = r.countBy(ctx,
		`SELECT source AS key, COUNT(*) AS count FROM pending_youth_profiles WHERE status = 'pending' GROUP BY source`); err != nil {
		return nil, fmt.Errorf("dashboard repository: pending by source %w", err)
	}
	if err := r.db.GetContext(ctx, &totals.Records, `SELECT COUNT(*) FROM youth_profiles`); err != nil {
		return nil, fmt.Errorf("dashboard repository: records %w", err)
	}
	if totals.ByClassification, err = r.countBy(ctx,
		`SELECT youth_classification AS key, COUNT(*) AS count FROM engagement_data GROUP BY youth_classification`); err != nil {
		return nil, fmt.Errorf("dashboard repository: by classification %w", err)
	}
	if totals.BySex, err = r.countBy(ctx,
		`SELECT sex AS key, COUNT(*) AS count FROM personal_information GROUP BY sex`); err != nil {
		return nil, fmt.Errorf("dashboard repository: by sex %w", err)
	}
	return &totals, nil
}
