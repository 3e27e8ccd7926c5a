package authorization

import (
	"context"
	"errors"
)

const (
	ObjectTeam         = "team"
	ObjectPlan         = "plan"
	ObjectSubscription = "subscription"
	ObjectInvitation   = "invitation"
	ObjectVerification = "verification"
)

const (
	ActionTeamManageMembers = "team.manage_members"

	ActionPlanCreate = "plan.create"

	ActionSubscriptionManage = "subscription.manage"

	ActionInvitationSend   = "invitation.send"
	ActionInvitationAccept = "invitation.accept"
	ActionInvitationRevoke = "invitation.revoke"

	ActionVerificationSubmit = "verification.submit"
	ActionVerificationReview = "verification.review"
)

// Platform roles arrive with the request; team roles come from membership.
const (
	RoleSystem        = "system"
	RoleReviewer      = "reviewer"
	RolePlatformAdmin = "platform_admin"
)

// Actor is the caller as identified by the HTTP layer.
type Actor struct {
	UserID string
	Role   string
}

type Service interface {
	// AuthorizeTeam checks an action on a team's resources. Users are
	// resolved to their membership role; the system role is always scoped
	// to the team being acted on.
	AuthorizeTeam(ctx context.Context, actor Actor, teamID string, object string, action string) error
	// AuthorizePlatform checks an action that is not owned by any team, such
	// as reviewing verification requests or publishing plans.
	AuthorizePlatform(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTeam   = errors.New("invalid_team")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
