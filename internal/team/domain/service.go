package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Service interface {
	Create(ctx context.Context, req CreateTeamRequest) (*TeamResponse, error)
	GetByID(ctx context.Context, id string) (*TeamResponse, error)
	AddMember(ctx context.Context, req AddMemberRequest) (*MemberResponse, error)

	// Lookup returns the team or ErrTeamNotFound.
	Lookup(ctx context.Context, id snowflake.ID) (*Team, error)
	// IsMember reports whether the user belongs to the team.
	IsMember(ctx context.Context, teamID, userID snowflake.ID) (bool, error)
}

type CreateTeamRequest struct {
	Name         string       `json:"name"`
	BusinessType BusinessType `json:"business_type"`
	OwnerUserID  string       `json:"owner_user_id"`
}

type AddMemberRequest struct {
	TeamID string `json:"-"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type TeamResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	BusinessType BusinessType     `json:"business_type"`
	Members      []MemberResponse `json:"members,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

type MemberResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidBusinessType = errors.New("invalid_business_type")
	ErrInvalidTeam         = errors.New("invalid_team")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrTeamNotFound        = errors.New("team_not_found")
	ErrUserNotFound        = errors.New("user_not_found")
	ErrSlugTaken           = errors.New("team_slug_taken")
	ErrMemberExists        = errors.New("member_exists")
)
