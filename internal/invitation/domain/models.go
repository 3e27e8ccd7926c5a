// Package domain models team-to-team invitations that grant permissions and
// optional quota overrides to the receiving team.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
)

// Invitation grants permissions from a sender team to a receiver team. It
// contributes to the receiver's entitlements only while accepted and not
// revoked. Nil quota columns do not participate in limit resolution.
type Invitation struct {
	ID                  snowflake.ID                `gorm:"primaryKey"`
	SenderTeamID        snowflake.ID                `gorm:"not null;index"`
	ReceiverTeamID      snowflake.ID                `gorm:"not null;index"`
	InvitedBusinessType teamdomain.BusinessType     `gorm:"type:text;not null"`
	GrantedPermissions  datatypes.JSONSlice[string] `gorm:"not null"`
	MaxConnections      *int64
	MaxInvites          *int64
	MaxProducts         *int64
	APICallsPerMonth    *int64 `gorm:"column:api_calls_per_month"`
	AcceptedAt          *time.Time
	RevokedAt           *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "team_invitations" }

func (i Invitation) Status() Status {
	switch {
	case i.RevokedAt != nil:
		return StatusRevoked
	case i.AcceptedAt != nil:
		return StatusAccepted
	default:
		return StatusPending
	}
}

// Contributes reports whether the invitation currently adds to the
// receiver's entitlements.
func (i Invitation) Contributes() bool {
	return i.Status() == StatusAccepted
}

func (i Invitation) PermissionSet() permissiondomain.Set {
	perms := make([]permissiondomain.Permission, 0, len(i.GrantedPermissions))
	for _, raw := range i.GrantedPermissions {
		p := permissiondomain.Permission(raw)
		if permissiondomain.IsValid(p) {
			perms = append(perms, p)
		}
	}
	return permissiondomain.NewSet(perms...)
}

func (i Invitation) QuotaSource() quota.Source {
	return quota.Source{
		MaxConnections:   i.MaxConnections,
		MaxInvites:       i.MaxInvites,
		MaxProducts:      i.MaxProducts,
		APICallsPerMonth: i.APICallsPerMonth,
	}
}
