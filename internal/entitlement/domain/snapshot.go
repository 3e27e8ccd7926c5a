// Package domain computes a team's effective entitlements from its
// subscription, accepted invitations, usage and verification state.
package domain

import (
	"context"
	"time"

	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
)

type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Snapshot, error)
	Capabilities(ctx context.Context, req ResolveRequest) (*permissiondomain.CapabilityRecord, error)
}

// ResolveRequest names the team explicitly. UserID is optional; when set the
// user must belong to the team.
type ResolveRequest struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id,omitempty"`
}

type UsageLimit struct {
	LimitType    quota.Field `json:"limit_type"`
	CurrentUsage int64       `json:"current_usage"`
	LimitValue   int64       `json:"limit_value"`
	ResetDate    *time.Time  `json:"reset_date,omitempty"`
}

// Remaining is the headroom left, or quota.Unlimited.
func (u UsageLimit) Remaining() int64 {
	if quota.IsUnlimited(u.LimitValue) {
		return quota.Unlimited
	}
	if left := u.LimitValue - u.CurrentUsage; left > 0 {
		return left
	}
	return 0
}

func (u UsageLimit) Exceeded() bool {
	return !quota.IsUnlimited(u.LimitValue) && u.CurrentUsage > u.LimitValue
}

// Snapshot is the read-only projection of what a team may do. Permission
// sets serialize sorted, so equal inputs yield identical JSON.
type Snapshot struct {
	TeamID                  string               `json:"team_id"`
	UserID                  string               `json:"user_id,omitempty"`
	SubscriptionPermissions permissiondomain.Set `json:"subscription_permissions"`
	InvitedPermissions      permissiondomain.Set `json:"invited_permissions"`
	EffectivePermissions    permissiondomain.Set `json:"effective_permissions"`
	quota.Quotas
	CanInviteOthers    bool                      `json:"can_invite_others"`
	UsageLimits        []UsageLimit              `json:"usage_limits"`
	VerificationStatus verificationdomain.Status `json:"verification_status,omitempty"`
	Verified           bool                      `json:"verified"`
}

func (s Snapshot) Has(p permissiondomain.Permission) bool {
	return s.EffectivePermissions.Contains(p)
}

func (s Snapshot) UsageLimit(f quota.Field) (UsageLimit, bool) {
	for _, u := range s.UsageLimits {
		if u.LimitType == f {
			return u, true
		}
	}
	return UsageLimit{}, false
}
