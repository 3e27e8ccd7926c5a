package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/marketplace/internal/config"
	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	"github.com/smallbiznis/marketplace/internal/featuregate/domain"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Resolver entitlementdomain.Resolver
	Hints    *config.GateHintsHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	resolver entitlementdomain.Resolver
	hints    *config.GateHintsHolder
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("featuregate.service"),
		resolver: p.Resolver,
		hints:    p.Hints,
		metrics:  p.Metrics,
	}
}

// Evaluate resolves the team's snapshot and gates one feature against it.
func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (*domain.Decision, error) {
	feature := strings.TrimSpace(req.Feature)
	if feature == "" {
		return nil, domain.ErrInvalidFeature
	}
	level, err := domain.ParseLevel(req.Level)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.resolver.Resolve(ctx, entitlementdomain.ResolveRequest{TeamID: req.TeamID, UserID: req.UserID})
	if err != nil {
		return nil, err
	}

	decision := domain.Evaluate(*snapshot, feature, level)
	if decision.ShowUpgradePrompt || decision.ShowUpsell {
		decision.UpgradeHint = s.hints.Hint(feature)
	}

	s.metrics.RecordGateDecision(ctx, string(level), decision.Reason)
	if !decision.Allowed {
		obslogger.WithContext(ctx, s.log).Debug("feature gated",
			zap.String("team_id", snapshot.TeamID),
			zap.String("feature", feature),
			zap.String("level", string(level)),
			zap.String("reason", decision.Reason),
		)
	}
	return &decision, nil
}
