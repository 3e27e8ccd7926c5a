package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  plandomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  plandomain.Repository
}

func New(p Params) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreatePlanRequest) (*plandomain.PlanResponse, error) {
	plan, err := s.buildPlan(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrPlanCodeTaken
		}
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("plan_code", plan.Code),
		zap.Int("permissions", len(plan.Permissions)),
	)

	resp := toResponse(*plan)
	return &resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*plandomain.PlanResponse, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || planID == 0 {
		return nil, plandomain.ErrInvalidPlan
	}
	plan, err := s.Lookup(ctx, planID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*plan)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req plandomain.ListPlansRequest) ([]plandomain.PlanResponse, error) {
	if req.BusinessType != "" && !req.BusinessType.Valid() {
		return nil, teamdomain.ErrInvalidBusinessType
	}

	plans, err := s.repo.List(ctx, s.db, req.BusinessType)
	if err != nil {
		return nil, err
	}

	resp := make([]plandomain.PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toResponse(p))
	}
	return resp, nil
}

func (s *Service) Lookup(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) buildPlan(req plandomain.CreatePlanRequest) (*plandomain.Plan, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, plandomain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, plandomain.ErrInvalidName
	}
	if !req.BusinessType.Valid() {
		return nil, teamdomain.ErrInvalidBusinessType
	}
	if req.TrialDays < 0 {
		return nil, plandomain.ErrInvalidTrialDays
	}

	perms, err := permissiondomain.ParseAll(req.Permissions)
	if err != nil {
		return nil, err
	}

	src := quota.Source{
		MaxConnections:   req.MaxConnections,
		MaxInvites:       req.MaxInvites,
		MaxProducts:      req.MaxProducts,
		APICallsPerMonth: req.APICallsPerMonth,
	}
	if src.MaxConnections == nil || src.MaxInvites == nil || src.MaxProducts == nil || src.APICallsPerMonth == nil {
		return nil, plandomain.ErrMissingQuota
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	return &plandomain.Plan{
		ID:               s.genID.Generate(),
		Code:             code,
		Name:             name,
		BusinessType:     req.BusinessType,
		Permissions:      datatypes.JSONSlice[string](perms.Strings()),
		MaxConnections:   *src.MaxConnections,
		MaxInvites:       *src.MaxInvites,
		MaxProducts:      *src.MaxProducts,
		APICallsPerMonth: *src.APICallsPerMonth,
		TrialDays:        req.TrialDays,
		CreatedAt:        s.clock.Now(),
	}, nil
}

func toResponse(p plandomain.Plan) plandomain.PlanResponse {
	return plandomain.PlanResponse{
		ID:               p.ID.String(),
		Code:             p.Code,
		Name:             p.Name,
		BusinessType:     p.BusinessType,
		Permissions:      p.PermissionSet().Strings(),
		MaxConnections:   p.MaxConnections,
		MaxInvites:       p.MaxInvites,
		MaxProducts:      p.MaxProducts,
		APICallsPerMonth: p.APICallsPerMonth,
		TrialDays:        p.TrialDays,
		CreatedAt:        p.CreatedAt,
	}
}
