package counter

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/quota"
	usagedomain "github.com/smallbiznis/marketplace/internal/usage/domain"
)

// Noop reports zero usage. It backs deployments without Redis.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Usage(context.Context, snowflake.ID, time.Time) (map[quota.Field]int64, error) {
	usage := make(map[quota.Field]int64, len(quota.Fields()))
	for _, f := range quota.Fields() {
		usage[f] = 0
	}
	return usage, nil
}

func (Noop) Add(_ context.Context, _ snowflake.ID, field quota.Field, _ int64, _ time.Time) (int64, error) {
	if !isField(field) {
		return 0, usagedomain.ErrUnknownField
	}
	return 0, nil
}
