package domain

import (
	"time"

	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
)

// Inputs is everything read from the stores for one resolution. Sources are
// read independently, so Inputs may mix slightly different points in time.
type Inputs struct {
	Subscription *subscriptiondomain.Subscription
	Plan         *plandomain.Plan
	Invitations  []invitationdomain.Invitation
	Usage        map[quota.Field]int64
	Verification *verificationdomain.VerificationRequest
	Now          time.Time
}

// SubscriptionGrants reports whether the subscription currently contributes.
func (in Inputs) SubscriptionGrants() bool {
	return in.Subscription != nil && in.Plan != nil && in.Subscription.GrantsAt(in.Now)
}

// Compute is pure: the same inputs always produce the same snapshot.
func Compute(teamID, userID string, in Inputs) Snapshot {
	subscriptionPerms := permissiondomain.NewSet()
	var sources []quota.Source
	if in.SubscriptionGrants() {
		subscriptionPerms = in.Plan.PermissionSet()
		sources = append(sources, in.Plan.QuotaSource())
	}

	invited := make([]permissiondomain.Set, 0, len(in.Invitations))
	for _, inv := range in.Invitations {
		if !inv.Contributes() {
			continue
		}
		invited = append(invited, inv.PermissionSet())
		sources = append(sources, inv.QuotaSource())
	}
	invitedPerms := permissiondomain.NewSet().Union(invited...)
	effective := subscriptionPerms.Union(invitedPerms)

	quotas := quota.Resolve(sources)

	snapshot := Snapshot{
		TeamID:                  teamID,
		UserID:                  userID,
		SubscriptionPermissions: subscriptionPerms,
		InvitedPermissions:      invitedPerms,
		EffectivePermissions:    effective,
		Quotas:                  quotas,
		CanInviteOthers:         effective.ContainsAny(permissiondomain.BasicInvites, permissiondomain.UnlimitedInvites),
		UsageLimits:             usageLimits(quotas, in.Usage, in.Now),
	}
	if in.Verification != nil {
		snapshot.VerificationStatus = in.Verification.Status
		snapshot.Verified = in.Verification.Verified()
	}
	return snapshot
}

func usageLimits(q quota.Quotas, usage map[quota.Field]int64, now time.Time) []UsageLimit {
	limits := make([]UsageLimit, 0, len(quota.Fields()))
	for _, f := range quota.Fields() {
		limit := UsageLimit{
			LimitType:    f,
			CurrentUsage: usage[f],
			LimitValue:   q.Get(f),
		}
		if f == quota.FieldAPICalls {
			reset := quota.NextMonthlyReset(now)
			limit.ResetDate = &reset
		}
		limits = append(limits, limit)
	}
	return limits
}
