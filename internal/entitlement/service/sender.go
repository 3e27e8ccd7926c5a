package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
)

type senderSource struct {
	resolver entitlementdomain.Resolver
}

// NewSenderSource exposes resolved entitlements to the invitation checks.
func NewSenderSource(resolver entitlementdomain.Resolver) invitationdomain.EntitlementSource {
	return &senderSource{resolver: resolver}
}

func (s *senderSource) SenderEntitlements(ctx context.Context, teamID snowflake.ID) (*invitationdomain.SenderEntitlements, error) {
	snapshot, err := s.resolver.Resolve(ctx, entitlementdomain.ResolveRequest{TeamID: teamID.String()})
	if err != nil {
		return nil, err
	}
	return &invitationdomain.SenderEntitlements{
		CanInviteOthers: snapshot.CanInviteOthers,
		Permissions:     snapshot.EffectivePermissions,
		Quotas:          snapshot.Quotas,
	}, nil
}
