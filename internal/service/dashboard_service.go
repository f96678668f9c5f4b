package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
)

// recentActivityLimit is how many audit entries the admin dashboard shows.
const recentActivityLimit = 10

// DashboardRepository runs the aggregate queries.
type DashboardRepository interface {
	ProposalTotals(ctx context.Context, submitterID *uuid.UUID) (*repository.ProposalTotals, error)
	CommitteeTotals(ctx context.Context) ([]repository.CommitteeTotals, error)
	ProfileTotals(ctx context.Context) (*repository.ProfileTotals, error)
}

// RecentActivity lists the newest audit entries.
type RecentActivity interface {
	Recent(ctx context.Context, n int) ([]models.ActivityLog, error)
}

// ProfileStatusLookup finds the caller's latest registration.
type ProfileStatusLookup interface {
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.PendingYouthProfile, error)
}

// UnreadCounter counts unread notifications.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// AdminSummary is the oversight dashboard of staff and admins.
type AdminSummary struct {
	Proposals      *repository.ProposalTotals   `json:"proposals"`
	Committees     []repository.CommitteeTotals `json:"committees"`
	Profiles       *repository.ProfileTotals    `json:"profiles"`
	RecentActivity []models.ActivityLog         `json:"recent_activity"`
	GeneratedAt    time.Time                    `json:"generated_at"`
}

// MySummary is the personal dashboard of any user.
type MySummary struct {
	Proposals           *repository.ProposalTotals `json:"proposals"`
	ProfileStatus       *string                    `json:"profile_status,omitempty"`
	UnreadNotifications int                        `json:"unread_notifications"`
	GeneratedAt         time.Time                  `json:"generated_at"`
}

// DashboardService aggregates counts and budgets. Queries run in parallel and
// results are cached until the next workflow transition or the TTL.
type DashboardService struct {
	repo     DashboardRepository
	activity RecentActivity
	profiles ProfileStatusLookup
	unread   UnreadCounter
	cache    Cache
	ttl      time.Duration
	metrics  *metrics.Metrics
}

func NewDashboardService(
	repo DashboardRepository,
	activity RecentActivity,
	profiles ProfileStatusLookup,
	unread UnreadCounter,
	cache Cache,
	ttl time.Duration,
	m *metrics.Metrics,
) *DashboardService {
	return &DashboardService{
		repo:     repo,
		activity: activity,
		profiles: profiles,
		unread:   unread,
		cache:    cache,
		ttl:      ttl,
		metrics:  m,
	}
}

// AdminSummary returns the oversight dashboard. Reviewers only.
func (s *DashboardService) AdminSummary(ctx context.Context, actor Actor) (*AdminSummary, error) {
	if !actor.IsReviewer() {
		return nil, apperror.ErrForbidden
	}
	return getOrSetJSON(ctx, s.cache, s.metrics, adminDashboardCacheKey(), s.ttl, s.buildAdminSummary)
}

func (s *DashboardService) buildAdminSummary(ctx context.Context) (*AdminSummary, error) {
	out := &AdminSummary{GeneratedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Proposals, err = s.repo.ProposalTotals(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		out.Committees, err = s.repo.CommitteeTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Profiles, err = s.repo.ProfileTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentActivity, err = s.activity.Recent(gctx, recentActivityLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, mapRepoError(err)
	}
	if out.RecentActivity == nil {
		out.RecentActivity = []models.ActivityLog{}
	}
	return out, nil
}

// MySummary returns the caller's personal dashboard. The unread count is
// read live since marking notifications read does not touch the cache.
func (s *DashboardService) MySummary(ctx context.Context, actor Actor) (*MySummary, error) {
	out, err := getOrSetJSON(ctx, s.cache, s.metrics, userDashboardCacheKey(actor.ID), s.ttl,
		func(ctx context.Context) (*MySummary, error) {
			return s.buildMySummary(ctx, actor.ID)
		})
	if err != nil {
		return nil, err
	}

	unread, err := s.unread.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	out.UnreadNotifications = unread
	return out, nil
}

func (s *DashboardService) buildMySummary(ctx context.Context, userID uuid.UUID) (*MySummary, error) {
	out := &MySummary{GeneratedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Proposals, err = s.repo.ProposalTotals(gctx, &userID)
		return err
	})
	g.Go(func() error {
		p, err := s.profiles.GetLatestByUser(gctx, userID)
		if err != nil {
			if apperror.IsNotFound(mapRepoError(err)) {
				return nil
			}
			return err
		}
		status := p.Status
		out.ProfileStatus = &status
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, mapRepoError(err)
	}
	return out, nil
}
