// Package domain contains the immutable subscription plan catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/datatypes"
)

// Plan is never updated after creation; a plan change moves the team to a
// different plan through a new subscription.
type Plan struct {
	ID               snowflake.ID                `gorm:"primaryKey"`
	Code             string                      `gorm:"type:text;not null;uniqueIndex:ux_plans_code"`
	Name             string                      `gorm:"type:text;not null"`
	BusinessType     teamdomain.BusinessType     `gorm:"type:text;not null;index"`
	Permissions      datatypes.JSONSlice[string] `gorm:"not null"`
	MaxConnections   int64                       `gorm:"not null"`
	MaxInvites       int64                       `gorm:"not null"`
	MaxProducts      int64                       `gorm:"not null"`
	APICallsPerMonth int64                       `gorm:"column:api_calls_per_month;not null"`
	TrialDays        int                         `gorm:"not null;default:0"`
	CreatedAt        time.Time                   `gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// PermissionSet drops tokens the catalog no longer knows so a stale row can
// never grant something undefined.
func (p Plan) PermissionSet() permissiondomain.Set {
	perms := make([]permissiondomain.Permission, 0, len(p.Permissions))
	for _, raw := range p.Permissions {
		if perm := permissiondomain.Permission(raw); permissiondomain.IsValid(perm) {
			perms = append(perms, perm)
		}
	}
	return permissiondomain.NewSet(perms...)
}

// QuotaSource defines every quota field.
func (p Plan) QuotaSource() quota.Source {
	return quota.Source{
		MaxConnections:   quota.Int64(p.MaxConnections),
		MaxInvites:       quota.Int64(p.MaxInvites),
		MaxProducts:      quota.Int64(p.MaxProducts),
		APICallsPerMonth: quota.Int64(p.APICallsPerMonth),
	}
}
