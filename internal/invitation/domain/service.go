package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
)

type Service interface {
	Invite(ctx context.Context, req InviteRequest) (*InvitationResponse, error)
	Accept(ctx context.Context, req AcceptRequest) (*InvitationResponse, error)
	Revoke(ctx context.Context, req RevokeRequest) (*InvitationResponse, error)
	GetByID(ctx context.Context, id string) (*InvitationResponse, error)
	ListSent(ctx context.Context, teamID string) ([]InvitationResponse, error)
}

// InviteRequest grants Permissions to ReceiverTeamID. The sender must be able
// to invite, must itself hold every granted permission, and may not hand out
// a quota above its own resolved limit.
type InviteRequest struct {
	SenderTeamID        string                  `json:"-"`
	ReceiverTeamID      string                  `json:"receiver_team_id"`
	InvitedBusinessType teamdomain.BusinessType `json:"invited_business_type"`
	Permissions         []string                `json:"granted_permissions"`
	MaxConnections      *int64                  `json:"max_connections,omitempty"`
	MaxInvites          *int64                  `json:"max_invites,omitempty"`
	MaxProducts         *int64                  `json:"max_products,omitempty"`
	APICallsPerMonth    *int64                  `json:"api_calls_per_month,omitempty"`
}

type AcceptRequest struct {
	InvitationID   string `json:"-"`
	ReceiverTeamID string `json:"team_id"`
}

type RevokeRequest struct {
	InvitationID string `json:"-"`
	SenderTeamID string `json:"team_id"`
}

type InvitationResponse struct {
	ID                  string                  `json:"id"`
	SenderTeamID        string                  `json:"sender_team_id"`
	ReceiverTeamID      string                  `json:"receiver_team_id"`
	InvitedBusinessType teamdomain.BusinessType `json:"invited_business_type"`
	GrantedPermissions  []string                `json:"granted_permissions"`
	MaxConnections      *int64                  `json:"max_connections,omitempty"`
	MaxInvites          *int64                  `json:"max_invites,omitempty"`
	MaxProducts         *int64                  `json:"max_products,omitempty"`
	APICallsPerMonth    *int64                  `json:"api_calls_per_month,omitempty"`
	Status              Status                  `json:"status"`
	AcceptedAt          *time.Time              `json:"accepted_at,omitempty"`
	RevokedAt           *time.Time              `json:"revoked_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

// SenderEntitlements is what the invite checks need to know about the
// sending team.
type SenderEntitlements struct {
	CanInviteOthers bool
	Permissions     permissiondomain.Set
	Quotas          quota.Quotas
}

// EntitlementSource resolves the sender's current entitlements.
type EntitlementSource interface {
	SenderEntitlements(ctx context.Context, teamID snowflake.ID) (*SenderEntitlements, error)
}

var (
	ErrInvalidInvitation     = errors.New("invalid_invitation")
	ErrInvalidSender         = errors.New("invalid_sender")
	ErrInvalidReceiver       = errors.New("invalid_receiver")
	ErrInviteNotPermitted    = errors.New("invite_not_permitted")
	ErrPermissionNotHeld     = errors.New("permission_not_held")
	ErrQuotaNotHeld          = errors.New("quota_not_held")
	ErrInviteLimitReached    = errors.New("invite_limit_reached")
	ErrBusinessTypeMismatch  = errors.New("business_type_mismatch")
	ErrInvitationRevoked     = errors.New("invitation_revoked")
	ErrNotInvitationReceiver = errors.New("not_invitation_receiver")
	ErrNotInvitationSender   = errors.New("not_invitation_sender")
	ErrInvitationNotFound    = errors.New("invitation_not_found")
)
