package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	metrics *metrics.Metrics

	teamsvc teamdomain.Service
	plansvc plandomain.Service
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Metrics *metrics.Metrics `optional:"true"`

	Teamsvc teamdomain.Service
	Plansvc plandomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,

		teamsvc: p.Teamsvc,
		plansvc: p.Plansvc,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.SubscriptionResponse, error) {
	teamID, err := parseID(req.TeamID, subscriptiondomain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return nil, err
	}

	plan, err := s.loadCompatiblePlan(ctx, teamID, planID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	status, trialEnd, err := initialStatus(req.Status, plan, now)
	if err != nil {
		return nil, err
	}

	subscription := &subscriptiondomain.Subscription{
		ID:        s.genID.Generate(),
		TeamID:    teamID,
		PlanID:    planID,
		Status:    status,
		TrialEnd:  trialEnd,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindLiveByTeamForUpdate(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrActiveSubscriptionExists
		}
		return s.insert(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("team_id", teamID.String()),
		zap.String("plan_code", plan.Code),
		zap.String("status", string(status)),
	)
	s.metrics.RecordSubscriptionEvent(ctx, "created", string(status))

	return toResponse(subscription), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*subscriptiondomain.SubscriptionResponse, error) {
	subscriptionID, err := parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	subscription, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return toResponse(subscription), nil
}

func (s *Service) GetCurrentByTeam(ctx context.Context, teamID string) (*subscriptiondomain.SubscriptionResponse, error) {
	id, err := parseID(teamID, subscriptiondomain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	if _, err := s.teamsvc.Lookup(ctx, id); err != nil {
		return nil, err
	}

	subscription, err := s.Current(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return toResponse(subscription), nil
}

func (s *Service) Current(ctx context.Context, teamID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.repo.FindLiveByTeam(ctx, s.db, teamID)
}

func (s *Service) Transition(ctx context.Context, req subscriptiondomain.TransitionRequest) (*subscriptiondomain.SubscriptionResponse, error) {
	subscriptionID, err := parseID(req.SubscriptionID, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	target, ok := subscriptiondomain.NormalizeStatus(req.Status)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidStatus
	}

	var updated *subscriptiondomain.Subscription
	var previous subscriptiondomain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if !isTransitionAllowed(subscription.Status, target) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		previous = subscription.Status
		if target == subscriptiondomain.StatusCanceled {
			subscription.CanceledAt = &now
		}
		subscription.Status = target
		subscription.UpdatedAt = now

		if err := s.repo.UpdateStatus(ctx, tx, subscription); err != nil {
			return err
		}
		updated = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("subscription transitioned",
		zap.String("subscription_id", updated.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
	)
	s.metrics.RecordSubscriptionEvent(ctx, "transitioned", string(target))

	return toResponse(updated), nil
}

// ChangePlan cancels the live subscription and starts a new one on the target
// plan in a single transaction. A past-due team stays past due on the new plan.
func (s *Service) ChangePlan(ctx context.Context, req subscriptiondomain.ChangePlanRequest) (*subscriptiondomain.SubscriptionResponse, error) {
	teamID, err := parseID(req.TeamID, subscriptiondomain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return nil, err
	}

	plan, err := s.loadCompatiblePlan(ctx, teamID, planID)
	if err != nil {
		return nil, err
	}

	var next *subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindLiveByTeamForUpdate(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if current == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if current.PlanID == planID {
			return subscriptiondomain.ErrInvalidSamePlan
		}

		status := subscriptiondomain.StatusActive
		if current.Status == subscriptiondomain.StatusPastDue {
			status = subscriptiondomain.StatusPastDue
		}

		now := s.clock.Now()
		current.Status = subscriptiondomain.StatusCanceled
		current.CanceledAt = &now
		current.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, tx, current); err != nil {
			return err
		}

		next = &subscriptiondomain.Subscription{
			ID:        s.genID.Generate(),
			TeamID:    teamID,
			PlanID:    planID,
			Status:    status,
			StartedAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.insert(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("subscription plan changed",
		zap.String("team_id", teamID.String()),
		zap.String("subscription_id", next.ID.String()),
		zap.String("plan_code", plan.Code),
	)
	s.metrics.RecordSubscriptionEvent(ctx, "plan_changed", string(next.Status))

	return toResponse(next), nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	if err := s.repo.Insert(ctx, tx, subscription); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return subscriptiondomain.ErrActiveSubscriptionExists
		}
		return err
	}
	return nil
}

func (s *Service) loadCompatiblePlan(ctx context.Context, teamID, planID snowflake.ID) (*plandomain.Plan, error) {
	team, err := s.teamsvc.Lookup(ctx, teamID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plansvc.Lookup(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.BusinessType != team.BusinessType {
		return nil, subscriptiondomain.ErrPlanBusinessTypeMismatch
	}
	return plan, nil
}

func initialStatus(requested string, plan *plandomain.Plan, now time.Time) (subscriptiondomain.Status, *time.Time, error) {
	status := subscriptiondomain.StatusActive
	if plan.TrialDays > 0 {
		status = subscriptiondomain.StatusTrial
	}
	if strings.TrimSpace(requested) != "" {
		parsed, ok := subscriptiondomain.NormalizeStatus(requested)
		if !ok || (parsed != subscriptiondomain.StatusTrial && parsed != subscriptiondomain.StatusActive) {
			return "", nil, subscriptiondomain.ErrInvalidStatus
		}
		status = parsed
	}

	if status != subscriptiondomain.StatusTrial {
		return status, nil, nil
	}
	days := plan.TrialDays
	if days <= 0 {
		return "", nil, subscriptiondomain.ErrInvalidStatus
	}
	trialEnd := now.AddDate(0, 0, days)
	return status, &trialEnd, nil
}

func isTransitionAllowed(current, target subscriptiondomain.Status) bool {
	switch current {
	case subscriptiondomain.StatusTrial:
		return target == subscriptiondomain.StatusActive || target == subscriptiondomain.StatusCanceled
	case subscriptiondomain.StatusActive:
		return target == subscriptiondomain.StatusPastDue || target == subscriptiondomain.StatusCanceled
	case subscriptiondomain.StatusPastDue:
		return target == subscriptiondomain.StatusActive || target == subscriptiondomain.StatusCanceled
	default:
		return false
	}
}

func toResponse(s *subscriptiondomain.Subscription) *subscriptiondomain.SubscriptionResponse {
	return &subscriptiondomain.SubscriptionResponse{
		ID:         s.ID.String(),
		TeamID:     s.TeamID.String(),
		PlanID:     s.PlanID.String(),
		Status:     s.Status,
		TrialEnd:   s.TrialEnd,
		StartedAt:  s.StartedAt,
		CanceledAt: s.CanceledAt,
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
