// Package domain declares current-usage counters consulted when building
// usage limits.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/quota"
)

// Counter tracks how much of each quota a team has used. Monthly fields are
// bucketed by the UTC calendar month of now.
type Counter interface {
	Usage(ctx context.Context, teamID snowflake.ID, now time.Time) (map[quota.Field]int64, error)
	// Add moves a counter by delta and returns the new value. Counters never
	// drop below zero.
	Add(ctx context.Context, teamID snowflake.ID, field quota.Field, delta int64, now time.Time) (int64, error)
}

var ErrUnknownField = errors.New("invalid_limit_type")
