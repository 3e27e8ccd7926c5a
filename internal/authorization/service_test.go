package authorization

import (
	"context"
	"testing"
	"time"

	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&teamdomain.TeamMember{}))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	members := []teamdomain.TeamMember{
		{ID: 1, TeamID: 100, UserID: 10, Role: teamdomain.RoleOwner, CreatedAt: now},
		{ID: 2, TeamID: 100, UserID: 11, Role: teamdomain.RoleMember, CreatedAt: now},
		{ID: 3, TeamID: 200, UserID: 12, Role: teamdomain.RoleAdmin, CreatedAt: now},
	}
	require.NoError(t, conn.Create(&members).Error)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	return NewService(Params{DB: conn, Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeTeamUsesMembershipRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	owner := Actor{UserID: "10"}
	member := Actor{UserID: "11"}

	assert.NoError(t, svc.AuthorizeTeam(ctx, owner, "100", ObjectInvitation, ActionInvitationSend))
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, member, "100", ObjectInvitation, ActionInvitationSend), ErrForbidden)
	assert.NoError(t, svc.AuthorizeTeam(ctx, member, "100", ObjectVerification, ActionVerificationSubmit))

	// Membership in one team grants nothing in another.
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, owner, "200", ObjectInvitation, ActionInvitationSend), ErrForbidden)
	assert.NoError(t, svc.AuthorizeTeam(ctx, Actor{UserID: "12"}, "200", ObjectSubscription, ActionSubscriptionManage))
}

func TestAuthorizeTeamSystemActor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	system := Actor{Role: RoleSystem}
	assert.NoError(t, svc.AuthorizeTeam(ctx, system, "100", ObjectSubscription, ActionSubscriptionManage))
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, system, "100", ObjectInvitation, ActionInvitationSend), ErrForbidden)
}

func TestAuthorizeTeamValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, Actor{UserID: "x"}, "100", ObjectTeam, ActionTeamManageMembers), ErrInvalidActor)
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, Actor{UserID: "10"}, "", ObjectTeam, ActionTeamManageMembers), ErrInvalidTeam)
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, Actor{UserID: "10"}, "100", "", ActionTeamManageMembers), ErrInvalidObject)
	assert.ErrorIs(t, svc.AuthorizeTeam(ctx, Actor{UserID: "10"}, "100", ObjectTeam, " "), ErrInvalidAction)
}

func TestAuthorizePlatformReviewer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	reviewer := Actor{UserID: "500", Role: RoleReviewer}
	assert.NoError(t, svc.AuthorizePlatform(ctx, reviewer, ObjectVerification, ActionVerificationReview))
	assert.ErrorIs(t, svc.AuthorizePlatform(ctx, reviewer, ObjectPlan, ActionPlanCreate), ErrForbidden)

	admin := Actor{UserID: "501", Role: RolePlatformAdmin}
	assert.NoError(t, svc.AuthorizePlatform(ctx, admin, ObjectPlan, ActionPlanCreate))

	// Team roles carry no platform authority.
	assert.ErrorIs(t, svc.AuthorizePlatform(ctx, Actor{UserID: "10", Role: teamdomain.RoleOwner}, ObjectVerification, ActionVerificationReview), ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizePlatform(ctx, Actor{UserID: "10"}, ObjectVerification, ActionVerificationReview), ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizePlatform(ctx, Actor{}, ObjectVerification, ActionVerificationReview), ErrInvalidActor)
}
