package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, team_id, plan_id, status, trial_end, started_at, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.TeamID,
		subscription.PlanID,
		subscription.Status,
		subscription.TrialEnd,
		subscription.StartedAt,
		subscription.CanceledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForUpdate locks the row on dialects that support row locks.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindLiveByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(db.WithContext(ctx).
		Where("team_id = ? AND status IN ?", teamID, subscriptiondomain.LiveStatuses()).
		Order("created_at DESC, id DESC"))
}

func (r *repo) FindLiveByTeamForUpdate(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("team_id = ? AND status IN ?", teamID, subscriptiondomain.LiveStatuses()).
		Order("created_at DESC, id DESC"))
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, canceled_at = ?, updated_at = ? WHERE id = ?`,
		subscription.Status,
		subscription.CanceledAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func (r *repo) first(query *gorm.DB) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := query.Take(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}
