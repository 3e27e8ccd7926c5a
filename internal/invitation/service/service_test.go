package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/invitation/domain"
	"github.com/smallbiznis/marketplace/internal/invitation/repository"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	teamrepo "github.com/smallbiznis/marketplace/internal/team/repository"
	teamsvc "github.com/smallbiznis/marketplace/internal/team/service"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockEntitlements struct {
	mock.Mock
}

func (m *mockEntitlements) SenderEntitlements(ctx context.Context, teamID snowflake.ID) (*domain.SenderEntitlements, error) {
	args := m.Called(ctx, teamID)
	if v := args.Get(0); v != nil {
		return v.(*domain.SenderEntitlements), args.Error(1)
	}
	return nil, args.Error(1)
}

// callRecorder notes the order of repository calls made inside Invite.
type callRecorder struct {
	domain.Repository
	calls []string
}

func (r *callRecorder) LockSenderTeam(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) error {
	r.calls = append(r.calls, "lock")
	return r.Repository.LockSenderTeam(ctx, db, senderTeamID)
}

func (r *callRecorder) CountOutstandingBySender(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) (int64, error) {
	r.calls = append(r.calls, "count")
	return r.Repository.CountOutstandingBySender(ctx, db, senderTeamID)
}

func (r *callRecorder) Insert(ctx context.Context, db *gorm.DB, invitation *domain.Invitation) error {
	r.calls = append(r.calls, "insert")
	return r.Repository.Insert(ctx, db, invitation)
}

type testEnv struct {
	svc          domain.Service
	repo         *callRecorder
	entitlements *mockEntitlements
	brand        string
	creator      string
	retailer     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&teamdomain.Team{}, &teamdomain.TeamMember{}, &domain.Invitation{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	teams := teamsvc.New(teamsvc.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  teamrepo.NewRepository(conn),
	})
	ctx := context.Background()
	create := func(name string, bt teamdomain.BusinessType) string {
		team, err := teams.Create(ctx, teamdomain.CreateTeamRequest{Name: name, BusinessType: bt, OwnerUserID: "7"})
		require.NoError(t, err)
		return team.ID
	}

	entitlements := new(mockEntitlements)
	env := &testEnv{
		repo:         &callRecorder{Repository: repository.Provide()},
		entitlements: entitlements,
		brand:        create("Acme Brand", teamdomain.BusinessTypeBrand),
		creator:      create("Creator Studio", teamdomain.BusinessTypeCreator),
		retailer:     create("Corner Retail", teamdomain.BusinessTypeRetailer),
	}
	env.svc = New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Repo:         env.repo,
		TeamSvc:      teams,
		Entitlements: entitlements,
	})
	return env
}

func (e *testEnv) senderHolds(maxInvites int64, perms ...permissiondomain.Permission) {
	e.senderHoldsQuotas(quota.Quotas{
		MaxConnections:   100,
		MaxInvites:       maxInvites,
		MaxProducts:      100,
		APICallsPerMonth: 10_000,
	}, perms...)
}

func (e *testEnv) senderHoldsQuotas(q quota.Quotas, perms ...permissiondomain.Permission) {
	e.entitlements.On("SenderEntitlements", mock.Anything, mock.Anything).Return(&domain.SenderEntitlements{
		CanInviteOthers: true,
		Permissions:     permissiondomain.NewSet(perms...),
		Quotas:          q,
	}, nil)
}

func (e *testEnv) inviteCreator(perms ...string) (*domain.InvitationResponse, error) {
	return e.svc.Invite(context.Background(), domain.InviteRequest{
		SenderTeamID:        e.brand,
		ReceiverTeamID:      e.creator,
		InvitedBusinessType: teamdomain.BusinessTypeCreator,
		Permissions:         perms,
		MaxProducts:         quota.Int64(25),
	})
}

func TestInviteRecordsPendingInvitation(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites, permissiondomain.AdvancedAnalytics)

	inv, err := env.inviteCreator("AdvancedAnalytics")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, inv.Status)
	assert.Equal(t, []string{"AdvancedAnalytics"}, inv.GrantedPermissions)
	require.NotNil(t, inv.MaxProducts)
	assert.Equal(t, int64(25), *inv.MaxProducts)
	assert.Nil(t, inv.MaxConnections)

	sent, err := env.svc.ListSent(context.Background(), env.brand)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, inv.ID, sent[0].ID)
	env.entitlements.AssertExpectations(t)
}

func TestInviteRejectsSenderWithoutInviteRights(t *testing.T) {
	env := newTestEnv(t)
	env.entitlements.On("SenderEntitlements", mock.Anything, mock.Anything).Return(&domain.SenderEntitlements{
		Permissions: permissiondomain.NewSet(permissiondomain.AdvancedAnalytics),
	}, nil)

	_, err := env.inviteCreator("AdvancedAnalytics")
	assert.ErrorIs(t, err, domain.ErrInviteNotPermitted)
}

func TestInviteRejectsPermissionsSenderLacks(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites)

	_, err := env.inviteCreator("WhiteLabel")
	assert.ErrorIs(t, err, domain.ErrPermissionNotHeld)
}

func TestInviteRejectsQuotasAboveSenderLimits(t *testing.T) {
	env := newTestEnv(t)
	env.senderHoldsQuotas(quota.Quotas{MaxConnections: 10, MaxInvites: 2, MaxProducts: 10, APICallsPerMonth: 500},
		permissiondomain.BasicInvites)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.InviteRequest
	}{
		{
			name: "unlimited from finite limits",
			req: domain.InviteRequest{
				MaxConnections:   quota.Int64(quota.Unlimited),
				MaxInvites:       quota.Int64(quota.Unlimited),
				APICallsPerMonth: quota.Int64(1_000_000_000),
			},
		},
		{
			name: "finite value above the sender",
			req:  domain.InviteRequest{MaxProducts: quota.Int64(11)},
		},
		{
			name: "api calls above the sender",
			req:  domain.InviteRequest{APICallsPerMonth: quota.Int64(501)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			req.SenderTeamID = env.brand
			req.ReceiverTeamID = env.creator
			req.InvitedBusinessType = teamdomain.BusinessTypeCreator
			_, err := env.svc.Invite(ctx, req)
			assert.ErrorIs(t, err, domain.ErrQuotaNotHeld)
		})
	}

	sent, err := env.svc.ListSent(ctx, env.brand)
	require.NoError(t, err)
	assert.Empty(t, sent)

	inv, err := env.svc.Invite(ctx, domain.InviteRequest{
		SenderTeamID:        env.brand,
		ReceiverTeamID:      env.creator,
		InvitedBusinessType: teamdomain.BusinessTypeCreator,
		MaxConnections:      quota.Int64(10),
		MaxInvites:          quota.Int64(0),
		APICallsPerMonth:    quota.Int64(500),
	})
	require.NoError(t, err)
	require.NotNil(t, inv.MaxConnections)
	assert.Equal(t, int64(10), *inv.MaxConnections)
}

func TestInvitePassesOnUnlimitedOnlyWhenHeld(t *testing.T) {
	env := newTestEnv(t)
	env.senderHoldsQuotas(quota.Quotas{MaxConnections: quota.Unlimited, MaxInvites: 5},
		permissiondomain.BasicInvites)

	inv, err := env.svc.Invite(context.Background(), domain.InviteRequest{
		SenderTeamID:        env.brand,
		ReceiverTeamID:      env.creator,
		InvitedBusinessType: teamdomain.BusinessTypeCreator,
		MaxConnections:      quota.Int64(quota.Unlimited),
	})
	require.NoError(t, err)
	require.NotNil(t, inv.MaxConnections)
	assert.Equal(t, quota.Unlimited, *inv.MaxConnections)
}

func TestInviteLocksSenderBeforeCounting(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites)

	_, err := env.inviteCreator()
	require.NoError(t, err)
	assert.Equal(t, []string{"lock", "count", "insert"}, env.repo.calls)
}

func TestInviteEnforcesInviteQuota(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(1, permissiondomain.BasicInvites, permissiondomain.BasicAnalytics)

	first, err := env.inviteCreator("BasicAnalytics")
	require.NoError(t, err)

	_, err = env.inviteCreator("BasicAnalytics")
	assert.ErrorIs(t, err, domain.ErrInviteLimitReached)

	// Revoking frees the slot.
	_, err = env.svc.Revoke(context.Background(), domain.RevokeRequest{InvitationID: first.ID, SenderTeamID: env.brand})
	require.NoError(t, err)
	_, err = env.inviteCreator("BasicAnalytics")
	assert.NoError(t, err)
}

func TestInviteUnlimitedQuota(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(quota.Unlimited, permissiondomain.UnlimitedInvites)

	for i := 0; i < 3; i++ {
		_, err := env.inviteCreator()
		require.NoError(t, err)
	}
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.InviteRequest
		want error
	}{
		{
			name: "self invite",
			req:  domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: env.brand, InvitedBusinessType: teamdomain.BusinessTypeBrand},
			want: domain.ErrInvalidReceiver,
		},
		{
			name: "bad sender id",
			req:  domain.InviteRequest{SenderTeamID: "acme", ReceiverTeamID: env.creator, InvitedBusinessType: teamdomain.BusinessTypeCreator},
			want: domain.ErrInvalidSender,
		},
		{
			name: "unknown business type",
			req:  domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: env.creator, InvitedBusinessType: "agency"},
			want: teamdomain.ErrInvalidBusinessType,
		},
		{
			name: "business type mismatch",
			req:  domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: env.retailer, InvitedBusinessType: teamdomain.BusinessTypeCreator},
			want: domain.ErrBusinessTypeMismatch,
		},
		{
			name: "unknown receiver",
			req:  domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: "42", InvitedBusinessType: teamdomain.BusinessTypeCreator},
			want: teamdomain.ErrTeamNotFound,
		},
		{
			name: "unknown permission",
			req: domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: env.creator,
				InvitedBusinessType: teamdomain.BusinessTypeCreator, Permissions: []string{"Teleport"}},
			want: permissiondomain.ErrInvalidPermission,
		},
		{
			name: "negative quota",
			req: domain.InviteRequest{SenderTeamID: env.brand, ReceiverTeamID: env.creator,
				InvitedBusinessType: teamdomain.BusinessTypeCreator, MaxConnections: quota.Int64(-5)},
			want: quota.ErrInvalidQuota,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Invite(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites, permissiondomain.BasicAnalytics)
	ctx := context.Background()

	inv, err := env.inviteCreator("BasicAnalytics")
	require.NoError(t, err)

	_, err = env.svc.Accept(ctx, domain.AcceptRequest{InvitationID: inv.ID, ReceiverTeamID: env.retailer})
	assert.ErrorIs(t, err, domain.ErrNotInvitationReceiver)

	first, err := env.svc.Accept(ctx, domain.AcceptRequest{InvitationID: inv.ID, ReceiverTeamID: env.creator})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, first.Status)
	require.NotNil(t, first.AcceptedAt)

	second, err := env.svc.Accept(ctx, domain.AcceptRequest{InvitationID: inv.ID, ReceiverTeamID: env.creator})
	require.NoError(t, err)
	assert.Equal(t, first.AcceptedAt.Unix(), second.AcceptedAt.Unix())
}

func TestRevokeIsIdempotentAndBlocksAccept(t *testing.T) {
	env := newTestEnv(t)
	env.senderHolds(5, permissiondomain.BasicInvites)
	ctx := context.Background()

	inv, err := env.inviteCreator()
	require.NoError(t, err)

	_, err = env.svc.Revoke(ctx, domain.RevokeRequest{InvitationID: inv.ID, SenderTeamID: env.creator})
	assert.ErrorIs(t, err, domain.ErrNotInvitationSender)

	revoked, err := env.svc.Revoke(ctx, domain.RevokeRequest{InvitationID: inv.ID, SenderTeamID: env.brand})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRevoked, revoked.Status)

	again, err := env.svc.Revoke(ctx, domain.RevokeRequest{InvitationID: inv.ID, SenderTeamID: env.brand})
	require.NoError(t, err)
	assert.Equal(t, revoked.RevokedAt.Unix(), again.RevokedAt.Unix())

	_, err = env.svc.Accept(ctx, domain.AcceptRequest{InvitationID: inv.ID, ReceiverTeamID: env.creator})
	assert.ErrorIs(t, err, domain.ErrInvitationRevoked)
}

func TestGetByIDNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetByID(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrInvitationNotFound)

	_, err = env.svc.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInvitation)
}
