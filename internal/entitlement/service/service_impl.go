package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/cache"
	"github.com/smallbiznis/marketplace/internal/clock"
	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	usagedomain "github.com/smallbiznis/marketplace/internal/usage/domain"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	TeamSvc         teamdomain.Service
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	VerificationSvc verificationdomain.Service
	InvitationRepo  invitationdomain.Repository
	Counter         usagedomain.Counter
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	teamsvc         teamdomain.Service
	plansvc         plandomain.Service
	subscriptionsvc subscriptiondomain.Service
	verificationsvc verificationdomain.Service
	invitationrepo  invitationdomain.Repository
	counter         usagedomain.Counter
	metrics         *metrics.Metrics
}

func New(p Params) entitlementdomain.Resolver {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("entitlement.service"),
		clock:           p.Clock,
		teamsvc:         p.TeamSvc,
		plansvc:         p.PlanSvc,
		subscriptionsvc: p.SubscriptionSvc,
		verificationsvc: p.VerificationSvc,
		invitationrepo:  p.InvitationRepo,
		counter:         p.Counter,
		metrics:         p.Metrics,
	}
}

// Resolve builds the team's snapshot. A team with nothing granted gets an
// empty snapshot, not an error. Results are memoized for the lifetime of a
// request context carrying cache.WithMemo and never beyond it.
func (s *Service) Resolve(ctx context.Context, req entitlementdomain.ResolveRequest) (*entitlementdomain.Snapshot, error) {
	teamID, err := parseID(req.TeamID, teamdomain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	var userID snowflake.ID
	if strings.TrimSpace(req.UserID) != "" {
		userID, err = parseID(req.UserID, teamdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
	}

	key := cache.Key("entitlement", teamID.String(), optionalID(userID))
	return cache.Load(ctx, key, func() (*entitlementdomain.Snapshot, error) {
		start := time.Now()
		snapshot, err := s.resolve(ctx, teamID, userID)
		s.metrics.RecordResolution(ctx, resolutionOutcome(snapshot, err), time.Since(start))
		return snapshot, err
	})
}

func (s *Service) Capabilities(ctx context.Context, req entitlementdomain.ResolveRequest) (*permissiondomain.CapabilityRecord, error) {
	snapshot, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	record := permissiondomain.ToFeatureFlags(snapshot.EffectivePermissions)
	return &record, nil
}

func (s *Service) resolve(ctx context.Context, teamID, userID snowflake.ID) (*entitlementdomain.Snapshot, error) {
	if _, err := s.teamsvc.Lookup(ctx, teamID); err != nil {
		return nil, err
	}
	if userID != 0 {
		member, err := s.teamsvc.IsMember(ctx, teamID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, teamdomain.ErrUserNotFound
		}
	}

	now := s.clock.Now()
	in := entitlementdomain.Inputs{Now: now}

	subscription, err := s.subscriptionsvc.Current(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if subscription != nil {
		plan, err := s.plansvc.Lookup(ctx, subscription.PlanID)
		if err != nil {
			return nil, err
		}
		in.Subscription = subscription
		in.Plan = plan
	}

	in.Invitations, err = s.invitationrepo.ListAcceptedByReceiver(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}

	in.Usage, err = s.usage(ctx, teamID, now)
	if err != nil {
		return nil, err
	}

	in.Verification, err = s.verificationsvc.Latest(ctx, teamID)
	if err != nil {
		return nil, err
	}

	snapshot := entitlementdomain.Compute(teamID.String(), optionalID(userID), in)
	return &snapshot, nil
}

// usage degrades to zero counts when the counter is unavailable; limits are
// still reported. Outstanding invites are counted from the invitation store.
func (s *Service) usage(ctx context.Context, teamID snowflake.ID, now time.Time) (map[quota.Field]int64, error) {
	usage, err := s.counter.Usage(ctx, teamID, now)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("usage counter unavailable", zap.String("team_id", teamID.String()), zap.Error(err))
		usage = make(map[quota.Field]int64, len(quota.Fields()))
	}

	invites, err := s.invitationrepo.CountOutstandingBySender(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	usage[quota.FieldInvites] = invites
	return usage, nil
}

func resolutionOutcome(snapshot *entitlementdomain.Snapshot, err error) string {
	switch {
	case err != nil:
		return "error"
	case snapshot.EffectivePermissions.IsEmpty():
		return "empty"
	default:
		return "granted"
	}
}

func optionalID(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
