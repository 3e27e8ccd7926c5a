package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
)

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (*PlanResponse, error)
	GetByID(ctx context.Context, id string) (*PlanResponse, error)
	List(ctx context.Context, req ListPlansRequest) ([]PlanResponse, error)

	// Lookup returns the stored plan or ErrPlanNotFound.
	Lookup(ctx context.Context, id snowflake.ID) (*Plan, error)
}

// CreatePlanRequest requires every quota; use -1 for unlimited.
type CreatePlanRequest struct {
	Code             string                  `json:"code"`
	Name             string                  `json:"name"`
	BusinessType     teamdomain.BusinessType `json:"business_type"`
	Permissions      []string                `json:"permissions"`
	MaxConnections   *int64                  `json:"max_connections"`
	MaxInvites       *int64                  `json:"max_invites"`
	MaxProducts      *int64                  `json:"max_products"`
	APICallsPerMonth *int64                  `json:"api_calls_per_month"`
	TrialDays        int                     `json:"trial_days"`
}

type ListPlansRequest struct {
	BusinessType teamdomain.BusinessType
}

type PlanResponse struct {
	ID               string                  `json:"id"`
	Code             string                  `json:"code"`
	Name             string                  `json:"name"`
	BusinessType     teamdomain.BusinessType `json:"business_type"`
	Permissions      []string                `json:"permissions"`
	MaxConnections   int64                   `json:"max_connections"`
	MaxInvites       int64                   `json:"max_invites"`
	MaxProducts      int64                   `json:"max_products"`
	APICallsPerMonth int64                   `json:"api_calls_per_month"`
	TrialDays        int                     `json:"trial_days"`
	CreatedAt        time.Time               `json:"created_at"`
}

var (
	ErrInvalidCode      = errors.New("invalid_code")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidPlan      = errors.New("invalid_plan")
	ErrInvalidTrialDays = errors.New("invalid_trial_days")
	ErrMissingQuota     = errors.New("invalid_missing_quota")
	ErrPlanNotFound     = errors.New("plan_not_found")
	ErrPlanCodeTaken    = errors.New("plan_code_taken")
)
