package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
)

func TestCommitteeService_Create(t *testing.T) {
	repo := fakeCommittees{}
	s := NewCommitteeService(repo, nil)
	ctx := context.Background()
	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}

	c, err := s.CreateCommittee(ctx, admin, CommitteeInput{Slug: " Sports ", Name: " Sports and Recreation "})
	require.NoError(t, err)
	assert.Equal(t, "sports", c.Slug)
	assert.Equal(t, "Sports and Recreation", c.Name)
	assert.Nil(t, c.Description)

	_, err = s.CreateCommittee(ctx, admin, CommitteeInput{Slug: "sports", Name: "Again"})
	assert.True(t, apperror.IsConflict(err))

	_, err = s.CreateCommittee(ctx, admin, CommitteeInput{Slug: "not a slug", Name: "x"})
	assert.True(t, apperror.IsValidation(err))

	_, err = s.CreateCommittee(ctx, admin, CommitteeInput{Slug: "health", Name: "  "})
	assert.True(t, apperror.IsValidation(err))

	_, err = s.CreateCommittee(ctx, Actor{ID: uuid.New(), Role: models.RoleStaff}, CommitteeInput{Slug: "health", Name: "Health"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	list, err := s.ListCommittees(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCommitteeService_UpdateKeepsSlugAndDropsDashboards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := uuid.New()
	repo := fakeCommittees{id: {ID: id, Slug: "education", Name: "Education"}}
	cache := NewMemoryCache(ctx)
	require.NoError(t, cache.Set(ctx, adminDashboardCacheKey(), []byte(`{}`), time.Minute))
	s := NewCommitteeService(repo, cache)
	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}

	c, err := s.UpdateCommittee(ctx, admin, id, CommitteeInput{Slug: "ignored", Name: "Education and Literacy", Description: strPtr("  Scholarships  ")})
	require.NoError(t, err)
	assert.Equal(t, "education", c.Slug)
	assert.Equal(t, "Scholarships", *c.Description)

	_, found, _ := cache.Get(ctx, adminDashboardCacheKey())
	assert.False(t, found)

	_, err = s.UpdateCommittee(ctx, admin, uuid.New(), CommitteeInput{Name: "Ghost"})
	assert.True(t, apperror.IsNotFound(err))
}

type mockActivityRepo struct {
	mock.Mock
}

func (m *mockActivityRepo) List(ctx context.Context, f repository.ActivityLogFilter) ([]models.ActivityLog, int, error) {
	args := m.Called(ctx, f)
	logs, _ := args.Get(0).([]models.ActivityLog)
	return logs, args.Int(1), args.Error(2)
}

func TestActivityService_ListActivity(t *testing.T) {
	repo := new(mockActivityRepo)
	s := NewActivityService(repo)
	ctx := context.Background()
	staff := Actor{ID: uuid.New(), Role: models.RoleStaff}
	subjectID := uuid.New()

	repo.On("List", ctx, repository.ActivityLogFilter{
		SubjectType: models.SubjectProposal,
		SubjectID:   &subjectID,
		Limit:       100,
		Offset:      0,
	}).Return([]models.ActivityLog{{Action: models.ActionApprove}}, 1, nil).Once()

	page, err := s.SubjectHistory(ctx, staff, models.SubjectProposal, subjectID, 500, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 100, page.Limit)
	assert.False(t, page.HasMore)

	_, err = s.ListActivity(ctx, staff, repository.ActivityLogFilter{SubjectType: "order"})
	assert.True(t, apperror.IsValidation(err))

	_, err = s.ListActivity(ctx, Actor{ID: uuid.New(), Role: models.RoleYouth}, repository.ActivityLogFilter{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	repo.AssertExpectations(t)
}
