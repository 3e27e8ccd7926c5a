package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/gorm"
)

const planColumns = `id, code, name, business_type, permissions, max_connections, max_invites,
	max_products, api_calls_per_month, trial_days, created_at`

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Code,
		plan.Name,
		plan.BusinessType,
		plan.Permissions,
		plan.MaxConnections,
		plan.MaxInvites,
		plan.MaxProducts,
		plan.APICallsPerMonth,
		plan.TrialDays,
		plan.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+` FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+` FROM plans WHERE code = ?`,
		code,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, businessType teamdomain.BusinessType) ([]plandomain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	args := []any{}
	if businessType != "" {
		query += ` WHERE business_type = ?`
		args = append(args, businessType)
	}
	query += ` ORDER BY business_type ASC, created_at ASC, id ASC`

	var plans []plandomain.Plan
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
