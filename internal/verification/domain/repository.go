package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, v *VerificationRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VerificationRequest, error)
	FindLatestByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*VerificationRequest, error)
	// CompareAndSwap persists v only when the stored row still has
	// expectedStatus and expectedVersion. It reports whether a row was written.
	CompareAndSwap(ctx context.Context, db *gorm.DB, v *VerificationRequest, expectedStatus Status, expectedVersion int64) (bool, error)
}
