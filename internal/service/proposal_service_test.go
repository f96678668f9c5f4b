package service

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/repository/common"
	"github.com/ignatzorin/youth-governance-backend/internal/storage"
)

// mockProposalRepository keeps proposals in maps and applies the same
// conditional rules as the SQL implementation.
type mockProposalRepository struct {
	proposals   map[uuid.UUID]*models.Proposal
	attachments map[uuid.UUID]*models.ProposalAttachment
	audits      []*models.ActivityLog
	// beforeTransition runs before the conditional update, to simulate a
	// concurrent writer.
	beforeTransition func(p *models.Proposal)
}

func newMockProposalRepository() *mockProposalRepository {
	return &mockProposalRepository{
		proposals:   make(map[uuid.UUID]*models.Proposal),
		attachments: make(map[uuid.UUID]*models.ProposalAttachment),
	}
}

func (m *mockProposalRepository) Create(_ context.Context, p *models.Proposal, audit *models.ActivityLog) error {
	p.ID = uuid.New()
	p.Status = models.StatusDraft
	p.CreatedAt = time.Now()
	stored := *p
	m.proposals[p.ID] = &stored
	audit.SubjectID = p.ID
	m.audits = append(m.audits, audit)
	return nil
}

func (m *mockProposalRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProposalRepository) Update(_ context.Context, p *models.Proposal, audit *models.ActivityLog) error {
	current, ok := m.proposals[p.ID]
	if !ok || current.SubmitterID != p.SubmitterID || !current.IsEditable() {
		return common.ErrStaleStatus
	}
	stored := *p
	m.proposals[p.ID] = &stored
	m.audits = append(m.audits, audit)
	return nil
}

func (m *mockProposalRepository) Transition(_ context.Context, t repository.ProposalTransition, audit *models.ActivityLog) (*models.Proposal, error) {
	p, ok := m.proposals[t.ID]
	if !ok {
		return nil, common.ErrStaleStatus
	}
	if m.beforeTransition != nil {
		m.beforeTransition(p)
	}
	if !slices.Contains(t.From, p.Status) {
		return nil, common.ErrStaleStatus
	}

	now := time.Now()
	p.Status = t.To
	switch t.To {
	case models.StatusPending:
		p.SubmittedAt = &now
		p.RejectionReason, p.ApprovedBudget, p.ReviewedBy, p.ReviewedAt = nil, nil, nil, nil
	case models.StatusApproved:
		actor := t.Actor
		p.ReviewedBy, p.ReviewedAt = &actor, &now
		p.ApprovedBudget, p.Remarks, p.RejectionReason = t.Budget, t.Note, nil
	case models.StatusRejected:
		actor := t.Actor
		p.ReviewedBy, p.ReviewedAt = &actor, &now
		p.RejectionReason, p.Remarks, p.ApprovedBudget = t.Reason, t.Note, nil
	}
	m.audits = append(m.audits, audit)
	copied := *p
	return &copied, nil
}

func (m *mockProposalRepository) Delete(_ context.Context, id, submitterID uuid.UUID, audit *models.ActivityLog) ([]string, error) {
	p, ok := m.proposals[id]
	if !ok || p.SubmitterID != submitterID || p.Status != models.StatusDraft {
		return nil, common.ErrStaleStatus
	}
	var paths []string
	for attID, a := range m.attachments {
		if a.ProposalID == id {
			paths = append(paths, a.FilePath)
			delete(m.attachments, attID)
		}
	}
	delete(m.proposals, id)
	m.audits = append(m.audits, audit)
	return paths, nil
}

func (m *mockProposalRepository) List(_ context.Context, f repository.ProposalFilter) (*repository.ProposalListResult, error) {
	out := []models.Proposal{}
	for _, p := range m.proposals {
		if f.SubmitterID != nil && p.SubmitterID != *f.SubmitterID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *p)
	}
	return &repository.ProposalListResult{Proposals: out, Total: len(out), Limit: 20}, nil
}

func (m *mockProposalRepository) AddAttachment(_ context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	stored := *a
	m.attachments[a.ID] = &stored
	m.audits = append(m.audits, audit)
	return nil
}

func (m *mockProposalRepository) ListAttachments(_ context.Context, proposalID uuid.UUID) ([]models.ProposalAttachment, error) {
	out := []models.ProposalAttachment{}
	for _, a := range m.attachments {
		if a.ProposalID == proposalID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockProposalRepository) GetAttachment(_ context.Context, proposalID, attachmentID uuid.UUID) (*models.ProposalAttachment, error) {
	a, ok := m.attachments[attachmentID]
	if !ok || a.ProposalID != proposalID {
		return nil, repository.ErrAttachmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockProposalRepository) DeleteAttachment(_ context.Context, a *models.ProposalAttachment, audit *models.ActivityLog) error {
	if _, ok := m.attachments[a.ID]; !ok {
		return repository.ErrAttachmentNotFound
	}
	delete(m.attachments, a.ID)
	m.audits = append(m.audits, audit)
	return nil
}

type proposalFixture struct {
	service   *ProposalService
	repo      *mockProposalRepository
	notifier  *recordingNotifier
	cache     *MemoryCache
	files     *storage.LocalStorage
	youth     Actor
	other     Actor
	staff     Actor
	admin     Actor
	committee *models.Committee
	fan       uuid.UUID
}

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()

	files, err := storage.NewLocalStorage(t.TempDir(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &proposalFixture{
		repo:      newMockProposalRepository(),
		notifier:  &recordingNotifier{},
		cache:     NewMemoryCache(ctx),
		files:     files,
		youth:     Actor{ID: uuid.New(), Role: models.RoleYouth, IP: "10.0.0.5"},
		other:     Actor{ID: uuid.New(), Role: models.RoleYouth},
		staff:     Actor{ID: uuid.New(), Role: models.RoleStaff},
		admin:     Actor{ID: uuid.New(), Role: models.RoleAdmin},
		committee: &models.Committee{ID: uuid.New(), Slug: "sports", Name: "Sports Development"},
		fan:       uuid.New(),
	}

	f.service = NewProposalService(ProposalDeps{
		Repo:       f.repo,
		Committees: fakeCommittees{f.committee.ID: f.committee},
		Staff:      fakeStaff{ids: []uuid.UUID{f.staff.ID, f.admin.ID}},
		Interests:  fakeInterests{"sports": {f.fan, f.youth.ID}},
		Files:      files,
		Notifier:   f.notifier,
		Cache:      f.cache,
	})
	return f
}

func (f *proposalFixture) validInput() ProposalInput {
	start := models.NewDate(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	end := models.NewDate(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC))
	return ProposalInput{
		CommitteeID:         &f.committee.ID,
		Category:            "Sports",
		Title:               "Inter-purok basketball league",
		Description:         "A month-long basketball league for the youth of every purok.",
		Location:            strPtr(" Barangay covered court "),
		ImplementationStart: &start,
		ImplementationEnd:   &end,
		EstimatedBudget:     25000.456,
	}
}

func TestProposalService_Lifecycle(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, p.Status)
	assert.Equal(t, 25000.46, p.EstimatedBudget)
	assert.Equal(t, "Barangay covered court", *p.Location)

	p, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.NotNil(t, p.SubmittedAt)

	submitted := f.notifier.byEvent(models.EventProposalSubmitted)
	require.Len(t, submitted, 1)
	assert.ElementsMatch(t, []uuid.UUID{f.staff.ID, f.admin.ID}, submitted[0].userIDs)

	p, err = f.service.ApproveProposal(ctx, f.staff, p.ID, ReviewInput{Remarks: strPtr("Go ahead")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, p.Status)
	require.NotNil(t, p.ApprovedBudget)
	assert.Equal(t, 25000.46, *p.ApprovedBudget, "approved budget defaults to the estimate")
	assert.Equal(t, f.staff.ID, *p.ReviewedBy)

	approved := f.notifier.byEvent(models.EventProposalApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, []uuid.UUID{f.youth.ID}, approved[0].userIDs)
	assert.Equal(t, 25000.46, approved[0].data["approved_budget"])

	announced := f.notifier.byEvent(models.EventProgramAnnounced)
	require.Len(t, announced, 1)
	assert.Equal(t, []uuid.UUID{f.fan}, announced[0].userIDs, "the submitter is not told about their own program")
	assert.Equal(t, "Sports Development", announced[0].data["committee"])

	_, err = f.service.ApproveProposal(ctx, f.admin, p.ID, ReviewInput{})
	assert.True(t, apperror.IsConflict(err), "approved is terminal")

	_, err = f.service.UpdateProposal(ctx, f.youth, p.ID, f.validInput())
	assert.True(t, apperror.IsConflict(err))

	var actions []string
	for _, a := range f.repo.audits {
		assert.Equal(t, p.ID, a.SubjectID)
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{models.ActionCreate, models.ActionSubmit, models.ActionApprove}, actions)
	assert.Equal(t, "10.0.0.5", *f.repo.audits[0].IPAddress)
}

func TestProposalService_RejectAndResubmit(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)
	_, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)

	_, err = f.service.RejectProposal(ctx, f.staff, p.ID, ReviewInput{Reason: "   "})
	assert.True(t, apperror.IsValidation(err), "reason is required")

	p, err = f.service.RejectProposal(ctx, f.staff, p.ID, ReviewInput{Reason: "Budget breakdown missing"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, p.Status)
	assert.Equal(t, "Budget breakdown missing", *p.RejectionReason)

	rejected := f.notifier.byEvent(models.EventProposalRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "Budget breakdown missing", rejected[0].data["reason"])

	in := f.validInput()
	in.EstimatedBudget = 18000
	p, err = f.service.UpdateProposal(ctx, f.youth, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 18000.0, p.EstimatedBudget)

	p, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Nil(t, p.RejectionReason, "resubmission clears the previous reason")

	p, err = f.service.ApproveProposal(ctx, f.admin, p.ID, ReviewInput{ApprovedBudget: floatPtr(15000)})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, *p.ApprovedBudget)
}

func TestProposalService_Permissions(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)
	_, err = f.service.CreateProposal(ctx, f.other, f.validInput())
	require.NoError(t, err)

	_, err = f.service.SubmitProposal(ctx, f.other, p.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.service.GetProposal(ctx, f.other, p.ID)
	assert.True(t, apperror.IsNotFound(err), "other youth must not see the proposal")

	_, err = f.service.GetProposal(ctx, f.staff, p.ID)
	assert.NoError(t, err)

	_, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)
	_, err = f.service.ApproveProposal(ctx, f.youth, p.ID, ReviewInput{})
	assert.True(t, apperror.IsForbidden(err))

	mine, err := f.service.ListProposals(ctx, f.youth, ProposalListInput{})
	require.NoError(t, err)
	assert.Len(t, mine.Proposals, 1)

	all, err := f.service.ListProposals(ctx, f.staff, ProposalListInput{})
	require.NoError(t, err)
	assert.Len(t, all.Proposals, 2)

	_, err = f.service.ListProposals(ctx, f.staff, ProposalListInput{Status: "archived"})
	assert.True(t, apperror.IsValidation(err))
}

func TestProposalService_ConcurrentReviewLosesRace(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)
	_, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)

	f.repo.beforeTransition = func(stored *models.Proposal) {
		stored.Status = models.StatusRejected
	}
	_, err = f.service.ApproveProposal(ctx, f.staff, p.ID, ReviewInput{})
	assert.ErrorIs(t, err, apperror.ErrStaleStatus)
	assert.Empty(t, f.notifier.byEvent(models.EventProposalApproved))
}

func TestProposalService_Validation(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	cases := map[string]func(in *ProposalInput){
		"short title":       func(in *ProposalInput) { in.Title = "Hi" },
		"no category":       func(in *ProposalInput) { in.Category = " " },
		"negative budget":   func(in *ProposalInput) { in.EstimatedBudget = -1 },
		"unknown committee": func(in *ProposalInput) { id := uuid.New(); in.CommitteeID = &id },
		"end before start": func(in *ProposalInput) {
			end := models.NewDate(in.ImplementationStart.AddDate(0, 0, -1))
			in.ImplementationEnd = &end
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := f.validInput()
			mutate(&in)
			_, err := f.service.CreateProposal(ctx, f.youth, in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err) || apperror.IsNotFound(err), err.Error())
		})
	}
	assert.Empty(t, f.repo.proposals)
}

func TestProposalService_TransitionsInvalidateDashboards(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)

	require.NoError(t, f.cache.Set(ctx, adminDashboardCacheKey(), []byte(`{}`), time.Minute))
	_, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)

	_, found, _ := f.cache.Get(ctx, adminDashboardCacheKey())
	assert.False(t, found)
}

func TestProposalService_Attachments(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	a, err := f.service.AddAttachment(ctx, f.youth, p.ID, "../budget plan.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", a.MimeType)
	assert.Equal(t, int64(len(pdf)), a.FileSize)
	assert.NotContains(t, a.OriginalFilename, "/")

	_, err = f.service.AddAttachment(ctx, f.youth, p.ID, "notes.txt", strings.NewReader("plain text is not accepted"))
	assert.True(t, apperror.IsValidation(err))

	_, err = f.service.AddAttachment(ctx, f.other, p.ID, "x.pdf", bytes.NewReader(pdf))
	assert.True(t, apperror.IsForbidden(err))

	list, err := f.service.ListAttachments(ctx, f.staff, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	meta, rc, err := f.service.OpenAttachment(ctx, f.staff, p.ID, a.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pdf, content)
	assert.Equal(t, a.ID, meta.ID)

	require.NoError(t, f.service.DeleteProposal(ctx, f.youth, p.ID))
	_, err = f.files.Open(ctx, a.FilePath)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound, "deleting a draft removes its files")
}

func TestProposalService_DeleteOnlyDrafts(t *testing.T) {
	f := newProposalFixture(t)
	ctx := context.Background()

	p, err := f.service.CreateProposal(ctx, f.youth, f.validInput())
	require.NoError(t, err)
	_, err = f.service.SubmitProposal(ctx, f.youth, p.ID)
	require.NoError(t, err)

	err = f.service.DeleteProposal(ctx, f.youth, p.ID)
	assert.True(t, apperror.IsConflict(err))

	err = f.service.DeleteProposal(ctx, f.other, p.ID)
	assert.True(t, apperror.IsForbidden(err))
}
