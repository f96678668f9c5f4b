package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
)

type notifyCall struct {
	userIDs []uuid.UUID
	event   string
	data    map[string]any
}

// recordingNotifier captures Notify calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, userIDs []uuid.UUID, event string, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{userIDs: append([]uuid.UUID(nil), userIDs...), event: event, data: data})
}

func (n *recordingNotifier) byEvent(event string) []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifyCall
	for _, c := range n.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type fakeStaff struct {
	ids []uuid.UUID
}

func (f fakeStaff) ListIDsByRoles(context.Context, ...string) ([]uuid.UUID, error) {
	return f.ids, nil
}

type fakeInterests map[string][]uuid.UUID

func (f fakeInterests) ListUserIDsByInterest(_ context.Context, slug string) ([]uuid.UUID, error) {
	return append([]uuid.UUID(nil), f[slug]...), nil
}

type fakeCommittees map[uuid.UUID]*models.Committee

func (f fakeCommittees) GetByID(_ context.Context, id uuid.UUID) (*models.Committee, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, repository.ErrCommitteeNotFound
}

func (f fakeCommittees) List(context.Context) ([]models.Committee, error) {
	out := make([]models.Committee, 0, len(f))
	for _, c := range f {
		out = append(out, *c)
	}
	return out, nil
}

func (f fakeCommittees) Create(_ context.Context, c *models.Committee, audit *models.ActivityLog) error {
	for _, existing := range f {
		if existing.Slug == c.Slug {
			return repository.ErrCommitteeExists
		}
	}
	c.ID = uuid.New()
	f[c.ID] = c
	return nil
}

func (f fakeCommittees) Update(_ context.Context, c *models.Committee, audit *models.ActivityLog) error {
	existing, ok := f[c.ID]
	if !ok {
		return repository.ErrCommitteeNotFound
	}
	c.Slug = existing.Slug
	f[c.ID] = c
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }
