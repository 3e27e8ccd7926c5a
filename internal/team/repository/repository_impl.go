package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateTeam(ctx context.Context, team domain.Team) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO teams (id, name, slug, business_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		team.ID,
		team.Name,
		team.Slug,
		team.BusinessType,
		team.CreatedAt,
		team.UpdatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, slug, business_type, created_at, updated_at
		 FROM teams WHERE id = ?`,
		id,
	).Scan(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == 0 {
		return nil, nil
	}
	return &team, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.TeamMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO team_members (id, team_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.ID,
		member.TeamID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Error
}

func (r *repository) FindMember(ctx context.Context, teamID, userID snowflake.ID) (*domain.TeamMember, error) {
	var member domain.TeamMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, team_id, user_id, role, created_at
		 FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, teamID snowflake.ID) ([]domain.TeamMember, error) {
	var members []domain.TeamMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, team_id, user_id, role, created_at
		 FROM team_members WHERE team_id = ? ORDER BY created_at ASC, id ASC`,
		teamID,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}
