package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invitation *Invitation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	// ListAcceptedByReceiver returns accepted, unrevoked invitations.
	ListAcceptedByReceiver(ctx context.Context, db *gorm.DB, receiverTeamID snowflake.ID) ([]Invitation, error)
	ListBySender(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) ([]Invitation, error)
	// LockSenderTeam serializes invites from one team until the transaction ends.
	LockSenderTeam(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) error
	// CountOutstandingBySender counts sent invitations that are not revoked.
	CountOutstandingBySender(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) (int64, error)
	UpdateState(ctx context.Context, db *gorm.DB, invitation *Invitation) error
}
