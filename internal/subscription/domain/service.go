package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionResponse, error)
	GetByID(ctx context.Context, id string) (*SubscriptionResponse, error)
	GetCurrentByTeam(ctx context.Context, teamID string) (*SubscriptionResponse, error)
	Transition(ctx context.Context, req TransitionRequest) (*SubscriptionResponse, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) (*SubscriptionResponse, error)

	// Current returns the team's live subscription, or nil when there is none.
	Current(ctx context.Context, teamID snowflake.ID) (*Subscription, error)
}

// CreateSubscriptionRequest starts a trial when the plan defines trial days,
// unless Status asks for something else. Status accepts provider spellings.
type CreateSubscriptionRequest struct {
	TeamID string `json:"team_id"`
	PlanID string `json:"plan_id"`
	Status string `json:"status,omitempty"`
}

type TransitionRequest struct {
	SubscriptionID string `json:"-"`
	Status         string `json:"status"`
}

type ChangePlanRequest struct {
	TeamID string `json:"-"`
	PlanID string `json:"plan_id"`
}

type SubscriptionResponse struct {
	ID         string     `json:"id"`
	TeamID     string     `json:"team_id"`
	PlanID     string     `json:"plan_id"`
	Status     Status     `json:"status"`
	TrialEnd   *time.Time `json:"trial_end,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
}

var (
	ErrInvalidTeam              = errors.New("invalid_team")
	ErrInvalidPlan              = errors.New("invalid_plan")
	ErrInvalidSubscription      = errors.New("invalid_subscription")
	ErrInvalidStatus            = errors.New("invalid_status")
	ErrInvalidTransition        = errors.New("invalid_transition")
	ErrInvalidSamePlan          = errors.New("invalid_same_plan")
	ErrPlanBusinessTypeMismatch = errors.New("plan_business_type_mismatch")
	ErrSubscriptionNotFound     = errors.New("subscription_not_found")
	ErrActiveSubscriptionExists = errors.New("active_subscription_exists")
)
