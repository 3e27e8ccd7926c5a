package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invitationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invitation *invitationdomain.Invitation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO team_invitations (
			id, sender_team_id, receiver_team_id, invited_business_type, granted_permissions,
			max_connections, max_invites, max_products, api_calls_per_month,
			accepted_at, revoked_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invitation.ID,
		invitation.SenderTeamID,
		invitation.ReceiverTeamID,
		invitation.InvitedBusinessType,
		invitation.GrantedPermissions,
		invitation.MaxConnections,
		invitation.MaxInvites,
		invitation.MaxProducts,
		invitation.APICallsPerMonth,
		invitation.AcceptedAt,
		invitation.RevokedAt,
		invitation.CreatedAt,
		invitation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invitationdomain.Invitation, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invitationdomain.Invitation, error) {
	return r.first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) ListAcceptedByReceiver(ctx context.Context, db *gorm.DB, receiverTeamID snowflake.ID) ([]invitationdomain.Invitation, error) {
	var invitations []invitationdomain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM team_invitations
		WHERE receiver_team_id = ? AND accepted_at IS NOT NULL AND revoked_at IS NULL
		ORDER BY accepted_at ASC, id ASC`,
		receiverTeamID,
	).Scan(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repo) ListBySender(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) ([]invitationdomain.Invitation, error) {
	var invitations []invitationdomain.Invitation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM team_invitations
		WHERE sender_team_id = ?
		ORDER BY created_at DESC, id DESC`,
		senderTeamID,
	).Scan(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// LockSenderTeam takes a row lock on the sending team. Dialects without row
// locks ignore the clause and rely on their single writer.
func (r *repo) LockSenderTeam(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) error {
	var id int64
	return db.WithContext(ctx).
		Table("teams").
		Select("id").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", senderTeamID).
		Scan(&id).Error
}

func (r *repo) CountOutstandingBySender(ctx context.Context, db *gorm.DB, senderTeamID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM team_invitations WHERE sender_team_id = ? AND revoked_at IS NULL`,
		senderTeamID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, invitation *invitationdomain.Invitation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE team_invitations SET accepted_at = ?, revoked_at = ?, updated_at = ? WHERE id = ?`,
		invitation.AcceptedAt,
		invitation.RevokedAt,
		invitation.UpdatedAt,
		invitation.ID,
	).Error
}

func (r *repo) first(query *gorm.DB) (*invitationdomain.Invitation, error) {
	var invitation invitationdomain.Invitation
	if err := query.Take(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}
