// Package domain contains persistence models for team subscriptions.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// LiveStatuses are the states that occupy a team's single subscription slot.
func LiveStatuses() []Status {
	return []Status{StatusTrial, StatusActive, StatusPastDue}
}

// Subscription binds a team to a plan.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TeamID     snowflake.ID `gorm:"not null;index"`
	PlanID     snowflake.ID `gorm:"not null;index"`
	Status     Status       `gorm:"type:text;not null"`
	TrialEnd   *time.Time   `gorm:""`
	StartedAt  time.Time    `gorm:"not null"`
	CanceledAt *time.Time   `gorm:""`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// GrantsAt reports whether the subscription contributes entitlements at now.
// A trial stops granting once trial_end has passed, even before a status sync.
func (s Subscription) GrantsAt(now time.Time) bool {
	switch s.Status {
	case StatusActive:
		return true
	case StatusTrial:
		return s.TrialEnd == nil || now.Before(*s.TrialEnd)
	default:
		return false
	}
}

// NormalizeStatus accepts internal statuses and payment provider spellings.
func NormalizeStatus(value string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trial", "trialing":
		return StatusTrial, true
	case "active":
		return StatusActive, true
	case "past_due", "unpaid":
		return StatusPastDue, true
	case "canceled", "cancelled", "incomplete_expired":
		return StatusCanceled, true
	default:
		return "", false
	}
}
