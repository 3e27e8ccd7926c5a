// Package domain contains persistence models for teams and their members.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BusinessType is the marketplace role a team trades under.
type BusinessType string

const (
	BusinessTypeBrand    BusinessType = "brand"
	BusinessTypeCreator  BusinessType = "creator"
	BusinessTypeRetailer BusinessType = "retailer"
)

func (b BusinessType) Valid() bool {
	switch b {
	case BusinessTypeBrand, BusinessTypeCreator, BusinessTypeRetailer:
		return true
	}
	return false
}

// Team is the unit that holds subscriptions, invitations and verifications.
type Team struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex:ux_teams_slug" json:"slug"`
	BusinessType BusinessType `gorm:"type:text;not null" json:"business_type"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

// TeamMember represents membership of a user in a team.
type TeamMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TeamID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_team_user,priority:1" json:"team_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_team_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (TeamMember) TableName() string { return "team_members" }
