package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/migration"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	teamrepo "github.com/smallbiznis/marketplace/internal/team/repository"
	teamsvc "github.com/smallbiznis/marketplace/internal/team/service"
	"github.com/smallbiznis/marketplace/internal/verification/domain"
	"github.com/smallbiznis/marketplace/internal/verification/repository"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	repo  domain.Repository
	teams teamdomain.Service
}

func newFixture(t *testing.T, wrap func(domain.Repository) domain.Repository) *fixture {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&teamdomain.Team{}, &teamdomain.TeamMember{}, &domain.VerificationRequest{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))

	teams := teamsvc.New(teamsvc.Params{DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: teamrepo.NewRepository(conn)})

	repo := repository.Provide()
	if wrap != nil {
		repo = wrap(repo)
	}
	svc := New(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    repo,
		TeamSvc: teams,
	})
	return &fixture{db: conn, svc: svc, repo: repo, teams: teams}
}

func (f *fixture) team(t *testing.T, bt teamdomain.BusinessType) string {
	t.Helper()
	team, err := f.teams.Create(context.Background(), teamdomain.CreateTeamRequest{
		Name:         "Verified " + string(bt),
		BusinessType: bt,
		OwnerUserID:  "9",
	})
	require.NoError(t, err)
	return team.ID
}

// blindLatest hides existing requests from Begin, as a concurrent
// transaction that has not committed yet would.
type blindLatest struct {
	domain.Repository
}

func (blindLatest) FindLatestByTeam(context.Context, *gorm.DB, snowflake.ID) (*domain.VerificationRequest, error) {
	return nil, nil
}

func upload(t *testing.T, svc domain.Service, id string, docs ...string) *domain.VerificationResponse {
	t.Helper()
	var resp *domain.VerificationResponse
	var err error
	for _, d := range docs {
		resp, err = svc.UploadDocument(context.Background(), domain.DocumentRequest{VerificationID: id, DocumentType: d})
		require.NoError(t, err)
	}
	return resp
}

func TestBeginUsesBusinessTypeDefaults(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeCreator)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, v.Status)
	assert.Equal(t, []string{"government_id", "proof_of_address"}, v.RequiredDocuments)
	assert.Empty(t, v.UploadedDocuments)
	assert.Equal(t, 0, v.Progress)
	assert.True(t, v.CanModify)
	assert.Equal(t, []domain.Status{domain.StatusUnderReview}, v.NextStatuses)

	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	assert.ErrorIs(t, err, domain.ErrVerificationInProgress)
}

func TestBeginValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidTeam)

	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: "12345"})
	assert.ErrorIs(t, err, teamdomain.ErrTeamNotFound)

	teamID := f.team(t, teamdomain.BusinessTypeBrand)
	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID, RequiredDocuments: []string{"selfie"}})
	assert.ErrorIs(t, err, domain.ErrInvalidDocumentType)
}

func TestSubmitRequiresAllDocuments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeBrand)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID, RequiredDocuments: []string{"government_id", "tax_certificate"}})
	require.NoError(t, err)

	upload(t, f.svc, v.ID, "government_id")
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "UnderReview"})
	assert.ErrorIs(t, err, domain.ErrMissingDocuments)

	upload(t, f.svc, v.ID, "tax_certificate")
	submitted, err := f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "UnderReview"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)
	assert.Equal(t, 80, submitted.Progress)
	assert.False(t, submitted.CanModify)
}

// Scenario D: documents can change while more information is requested but
// not once the request has been rejected.
func TestDocumentModificationFollowsStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeCreator)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)
	upload(t, f.svc, v.ID, "government_id", "proof_of_address")

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "UnderReview"})
	require.NoError(t, err)

	_, err = f.svc.UploadDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "bank_statement"})
	assert.ErrorIs(t, err, domain.ErrNotModifiable)

	needInfo, err := f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "NeedMoreInformation", Note: "blurry scan"})
	require.NoError(t, err)
	assert.Equal(t, "blurry scan", needInfo.ReviewNote)

	resp, err := f.svc.UploadDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "bank_statement"})
	require.NoError(t, err)
	assert.Contains(t, resp.UploadedDocuments, "bank_statement")

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "Rejected"})
	require.NoError(t, err)

	_, err = f.svc.UploadDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "tax_certificate"})
	assert.ErrorIs(t, err, domain.ErrNotModifiable)
	_, err = f.svc.RemoveDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "bank_statement"})
	assert.ErrorIs(t, err, domain.ErrNotModifiable)

	// A rejected team may start again.
	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)
}

func TestDocumentChangesAreIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeRetailer)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)

	first := upload(t, f.svc, v.ID, "tax_certificate")
	second := upload(t, f.svc, v.ID, "tax_certificate")
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, []string{"tax_certificate"}, second.UploadedDocuments)

	removed, err := f.svc.RemoveDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "tax_certificate"})
	require.NoError(t, err)
	assert.Empty(t, removed.UploadedDocuments)

	again, err := f.svc.RemoveDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "tax_certificate"})
	require.NoError(t, err)
	assert.Equal(t, removed.Version, again.Version)

	_, err = f.svc.UploadDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidDocumentType)
}

func TestApprovedIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeBrand)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID, RequiredDocuments: []string{"tax_certificate"}})
	require.NoError(t, err)
	upload(t, f.svc, v.ID, "tax_certificate")

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "Approved"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "UnderReview"})
	require.NoError(t, err)
	approved, err := f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "Approved"})
	require.NoError(t, err)
	assert.Equal(t, 100, approved.Progress)
	assert.NotNil(t, approved.ReviewedAt)

	for _, target := range []string{"Draft", "UnderReview", "Rejected", "NeedMoreInformation"} {
		_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: target})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, target)
	}

	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	latest, err := f.svc.GetLatestByTeam(ctx, teamID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, latest.Status)
}

func TestTransitionRejectsStaleExpectedStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeBrand)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID, RequiredDocuments: []string{"tax_certificate"}})
	require.NoError(t, err)
	upload(t, f.svc, v.ID, "tax_certificate")
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "UnderReview"})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "NeedMoreInformation"})
	require.NoError(t, err)

	// A reviewer still looking at UnderReview must not overwrite the newer state.
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "Rejected", ExpectedStatus: "UnderReview"})
	assert.ErrorIs(t, err, domain.ErrStaleVerification)

	current, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedMoreInformation, current.Status)
}

// snapshotRepo serves reads from a fixed copy so the compare-and-swap runs
// against a row that has moved on.
type snapshotRepo struct {
	domain.Repository
	snapshot *domain.VerificationRequest
}

func (r *snapshotRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VerificationRequest, error) {
	if r.snapshot != nil {
		cp := *r.snapshot
		return &cp, nil
	}
	return r.Repository.FindByID(ctx, db, id)
}

func TestConcurrentWriteSurfacesAsStale(t *testing.T) {
	var wrapped *snapshotRepo
	f := newFixture(t, func(inner domain.Repository) domain.Repository {
		wrapped = &snapshotRepo{Repository: inner}
		return wrapped
	})
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeCreator)

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)
	id, err := snowflake.ParseString(v.ID)
	require.NoError(t, err)

	before, err := f.repo.FindByID(ctx, f.db, id)
	require.NoError(t, err)
	upload(t, f.svc, v.ID, "government_id")

	wrapped.snapshot = before
	_, err = f.svc.UploadDocument(ctx, domain.DocumentRequest{VerificationID: v.ID, DocumentType: "proof_of_address"})
	assert.ErrorIs(t, err, domain.ErrStaleVerification)

	wrapped.snapshot = nil
	current, err := f.svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"government_id"}, current.UploadedDocuments)
	assert.Equal(t, int64(2), current.Version)
}

func TestTransitionErrorsAreCounted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	teamID := f.team(t, teamdomain.BusinessTypeBrand)

	reg := prometheus.NewRegistry()
	m := metrics.NewVerificationMetrics(reg, metrics.Config{Environment: "test"})
	f.svc.(*Service).metrics = m

	v, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, domain.TransitionRequest{VerificationID: v.ID, Target: "Approved"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "marketplace_verification_transition_errors_total" {
			found = true
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)

	_, err = f.svc.Get(ctx, "0")
	assert.ErrorIs(t, err, domain.ErrInvalidVerification)
	_, err = f.svc.Get(ctx, "77")
	assert.ErrorIs(t, err, domain.ErrVerificationNotFound)
}

func TestBeginConcurrentDraftIsInProgress(t *testing.T) {
	f := newFixture(t, func(r domain.Repository) domain.Repository { return blindLatest{Repository: r} })
	require.NoError(t, migration.Apply(f.db, dbpkg.Config{Type: "sqlite"}))
	teamID := f.team(t, teamdomain.BusinessTypeBrand)
	ctx := context.Background()

	first, err := f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	require.NoError(t, err)

	_, err = f.svc.Begin(ctx, domain.BeginRequest{TeamID: teamID})
	assert.ErrorIs(t, err, domain.ErrVerificationInProgress)

	var open int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM verification_requests`).Scan(&open).Error)
	assert.Equal(t, int64(1), open)

	stored, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, stored.Status)
}
