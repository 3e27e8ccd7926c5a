package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTeam(ctx context.Context, team Team) error
	FindByID(ctx context.Context, id snowflake.ID) (*Team, error)
	AddMember(ctx context.Context, member TeamMember) error
	FindMember(ctx context.Context, teamID, userID snowflake.ID) (*TeamMember, error)
	ListMembers(ctx context.Context, teamID snowflake.ID) ([]TeamMember, error)
}
