package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/invitation/domain"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	TeamSvc      teamdomain.Service
	Entitlements domain.EntitlementSource
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	teamsvc      teamdomain.Service
	entitlements domain.EntitlementSource
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invitation.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		teamsvc:      p.TeamSvc,
		entitlements: p.Entitlements,
		metrics:      p.Metrics,
	}
}

func (s *Service) Invite(ctx context.Context, req domain.InviteRequest) (*domain.InvitationResponse, error) {
	senderID, err := parseID(req.SenderTeamID, domain.ErrInvalidSender)
	if err != nil {
		return nil, err
	}
	receiverID, err := parseID(req.ReceiverTeamID, domain.ErrInvalidReceiver)
	if err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, domain.ErrInvalidReceiver
	}
	if !req.InvitedBusinessType.Valid() {
		return nil, teamdomain.ErrInvalidBusinessType
	}

	if _, err := s.teamsvc.Lookup(ctx, senderID); err != nil {
		return nil, err
	}
	receiver, err := s.teamsvc.Lookup(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver.BusinessType != req.InvitedBusinessType {
		return nil, domain.ErrBusinessTypeMismatch
	}

	granted, err := permissiondomain.ParseAll(req.Permissions)
	if err != nil {
		return nil, err
	}
	overrides := quota.Source{
		MaxConnections:   req.MaxConnections,
		MaxInvites:       req.MaxInvites,
		MaxProducts:      req.MaxProducts,
		APICallsPerMonth: req.APICallsPerMonth,
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}

	sender, err := s.entitlements.SenderEntitlements(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if !sender.CanInviteOthers {
		return nil, domain.ErrInviteNotPermitted
	}
	if missing := granted.Difference(sender.Permissions); !missing.IsEmpty() {
		obslogger.WithContext(ctx, s.log).Debug("invite grants permissions the sender lacks",
			zap.String("team_id", senderID.String()),
			zap.Strings("missing", missing.Strings()),
		)
		return nil, domain.ErrPermissionNotHeld
	}
	if over := overrides.Exceeding(sender.Quotas); len(over) > 0 {
		fields := make([]string, 0, len(over))
		for _, f := range over {
			fields = append(fields, string(f))
		}
		obslogger.WithContext(ctx, s.log).Debug("invite grants quotas above the sender's limits",
			zap.String("team_id", senderID.String()),
			zap.Strings("fields", fields),
		)
		return nil, domain.ErrQuotaNotHeld
	}

	now := s.clock.Now()
	invitation := &domain.Invitation{
		ID:                  s.genID.Generate(),
		SenderTeamID:        senderID,
		ReceiverTeamID:      receiverID,
		InvitedBusinessType: req.InvitedBusinessType,
		GrantedPermissions:  datatypes.JSONSlice[string](granted.Strings()),
		MaxConnections:      req.MaxConnections,
		MaxInvites:          req.MaxInvites,
		MaxProducts:         req.MaxProducts,
		APICallsPerMonth:    req.APICallsPerMonth,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.LockSenderTeam(ctx, tx, senderID); err != nil {
			return err
		}
		outstanding, err := s.repo.CountOutstandingBySender(ctx, tx, senderID)
		if err != nil {
			return err
		}
		if !quota.Allows(sender.Quotas.MaxInvites, outstanding, 1) {
			return domain.ErrInviteLimitReached
		}
		return s.repo.Insert(ctx, tx, invitation)
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("invitation sent",
		zap.String("invitation_id", invitation.ID.String()),
		zap.String("sender_team_id", senderID.String()),
		zap.String("receiver_team_id", receiverID.String()),
	)
	s.metrics.RecordInvitationEvent(ctx, "sent")

	return toResponse(invitation), nil
}

// Accept is idempotent: accepting an accepted invitation returns it unchanged.
func (s *Service) Accept(ctx context.Context, req domain.AcceptRequest) (*domain.InvitationResponse, error) {
	invitationID, err := parseID(req.InvitationID, domain.ErrInvalidInvitation)
	if err != nil {
		return nil, err
	}
	receiverID, err := parseID(req.ReceiverTeamID, domain.ErrInvalidReceiver)
	if err != nil {
		return nil, err
	}

	var accepted *domain.Invitation
	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := s.lockInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		if invitation.ReceiverTeamID != receiverID {
			return domain.ErrNotInvitationReceiver
		}

		switch invitation.Status() {
		case domain.StatusRevoked:
			return domain.ErrInvitationRevoked
		case domain.StatusAccepted:
			accepted = invitation
			return nil
		}

		now := s.clock.Now()
		invitation.AcceptedAt = &now
		invitation.UpdatedAt = now
		if err := s.repo.UpdateState(ctx, tx, invitation); err != nil {
			return err
		}
		accepted = invitation
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		obslogger.WithContext(ctx, s.log).Info("invitation accepted",
			zap.String("invitation_id", accepted.ID.String()),
			zap.String("receiver_team_id", receiverID.String()),
		)
		s.metrics.RecordInvitationEvent(ctx, "accepted")
	}
	return toResponse(accepted), nil
}

// Revoke withdraws the grant. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, req domain.RevokeRequest) (*domain.InvitationResponse, error) {
	invitationID, err := parseID(req.InvitationID, domain.ErrInvalidInvitation)
	if err != nil {
		return nil, err
	}
	senderID, err := parseID(req.SenderTeamID, domain.ErrInvalidSender)
	if err != nil {
		return nil, err
	}

	var revoked *domain.Invitation
	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := s.lockInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		if invitation.SenderTeamID != senderID {
			return domain.ErrNotInvitationSender
		}
		revoked = invitation
		if invitation.RevokedAt != nil {
			return nil
		}

		now := s.clock.Now()
		invitation.RevokedAt = &now
		invitation.UpdatedAt = now
		changed = true
		return s.repo.UpdateState(ctx, tx, invitation)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		obslogger.WithContext(ctx, s.log).Info("invitation revoked",
			zap.String("invitation_id", revoked.ID.String()),
			zap.String("sender_team_id", senderID.String()),
		)
		s.metrics.RecordInvitationEvent(ctx, "revoked")
	}
	return toResponse(revoked), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.InvitationResponse, error) {
	invitationID, err := parseID(id, domain.ErrInvalidInvitation)
	if err != nil {
		return nil, err
	}
	invitation, err := s.repo.FindByID(ctx, s.db, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, domain.ErrInvitationNotFound
	}
	return toResponse(invitation), nil
}

func (s *Service) ListSent(ctx context.Context, teamID string) ([]domain.InvitationResponse, error) {
	senderID, err := parseID(teamID, domain.ErrInvalidSender)
	if err != nil {
		return nil, err
	}
	invitations, err := s.repo.ListBySender(ctx, s.db, senderID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.InvitationResponse, 0, len(invitations))
	for i := range invitations {
		resp = append(resp, *toResponse(&invitations[i]))
	}
	return resp, nil
}

func (s *Service) lockInvitation(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invitation, error) {
	invitation, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, domain.ErrInvitationNotFound
	}
	return invitation, nil
}

func toResponse(i *domain.Invitation) *domain.InvitationResponse {
	return &domain.InvitationResponse{
		ID:                  i.ID.String(),
		SenderTeamID:        i.SenderTeamID.String(),
		ReceiverTeamID:      i.ReceiverTeamID.String(),
		InvitedBusinessType: i.InvitedBusinessType,
		GrantedPermissions:  i.PermissionSet().Strings(),
		MaxConnections:      i.MaxConnections,
		MaxInvites:          i.MaxInvites,
		MaxProducts:         i.MaxProducts,
		APICallsPerMonth:    i.APICallsPerMonth,
		Status:              i.Status(),
		AcceptedAt:          i.AcceptedAt,
		RevokedAt:           i.RevokedAt,
		CreatedAt:           i.CreatedAt,
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
