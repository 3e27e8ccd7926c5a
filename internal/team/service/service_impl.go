package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/marketplace/internal/clock"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/team/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("team.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTeamRequest) (*domain.TeamResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if !req.BusinessType.Valid() {
		return nil, domain.ErrInvalidBusinessType
	}
	ownerID, err := parseID(req.OwnerUserID, domain.ErrInvalidUser)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	team := domain.Team{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		BusinessType: req.BusinessType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner := domain.TeamMember{
		ID:        s.genID.Generate(),
		TeamID:    team.ID,
		UserID:    ownerID,
		Role:      domain.RoleOwner,
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateTeam(ctx, team); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}
		return repo.AddMember(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("team created",
		zap.String("team_id", team.ID.String()),
		zap.String("business_type", string(team.BusinessType)),
	)

	resp := toResponse(team)
	resp.Members = []domain.MemberResponse{{UserID: ownerID.String(), Role: domain.RoleOwner}}
	return &resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.TeamResponse, error) {
	teamID, err := parseID(id, domain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}

	team, err := s.Lookup(ctx, teamID)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	resp := toResponse(*team)
	resp.Members = make([]domain.MemberResponse, 0, len(members))
	for _, m := range members {
		resp.Members = append(resp.Members, domain.MemberResponse{UserID: m.UserID.String(), Role: m.Role})
	}
	return &resp, nil
}

func (s *Service) AddMember(ctx context.Context, req domain.AddMemberRequest) (*domain.MemberResponse, error) {
	teamID, err := parseID(req.TeamID, domain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(req.UserID, domain.ErrInvalidUser)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return nil, domain.ErrInvalidRole
	}

	if _, err := s.Lookup(ctx, teamID); err != nil {
		return nil, err
	}

	err = s.repo.AddMember(ctx, domain.TeamMember{
		ID:        s.genID.Generate(),
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrMemberExists
		}
		return nil, err
	}

	return &domain.MemberResponse{UserID: userID.String(), Role: role}, nil
}

func (s *Service) Lookup(ctx context.Context, id snowflake.ID) (*domain.Team, error) {
	if id == 0 {
		return nil, domain.ErrInvalidTeam
	}
	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, domain.ErrTeamNotFound
	}
	return team, nil
}

func (s *Service) IsMember(ctx context.Context, teamID, userID snowflake.ID) (bool, error) {
	member, err := s.repo.FindMember(ctx, teamID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func toResponse(team domain.Team) domain.TeamResponse {
	return domain.TeamResponse{
		ID:           team.ID.String(),
		Name:         team.Name,
		Slug:         team.Slug,
		BusinessType: team.BusinessType,
		CreatedAt:    team.CreatedAt,
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
