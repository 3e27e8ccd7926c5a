package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/marketplace/internal/quota"
	usagedomain "github.com/smallbiznis/marketplace/internal/usage/domain"
)

const (
	keyUsageGauge   = "marketplace:usage:%s:%s"
	keyUsageMonthly = "marketplace:usage:%s:%s:%s"
)

// Monthly buckets outlive their month by a day so a late read at the
// boundary still sees the closing value.
const monthlyRetention = 24 * time.Hour

const addScript = `
local v = redis.call("INCRBY", KEYS[1], ARGV[1])
if v < 0 then
  redis.call("SET", KEYS[1], 0, "KEEPTTL")
  v = 0
end
local expireAt = tonumber(ARGV[2])
if expireAt > 0 then
  redis.call("PEXPIREAT", KEYS[1], expireAt)
end
return v
`

type Redis struct {
	client *redis.Client
	script *redis.Script
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		script: redis.NewScript(addScript),
	}
}

func (r *Redis) Usage(ctx context.Context, teamID snowflake.ID, now time.Time) (map[quota.Field]int64, error) {
	fields := quota.Fields()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = usageKey(teamID, f, now)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	usage := make(map[quota.Field]int64, len(fields))
	for i, f := range fields {
		usage[f] = parseCount(values[i])
	}
	return usage, nil
}

func (r *Redis) Add(ctx context.Context, teamID snowflake.ID, field quota.Field, delta int64, now time.Time) (int64, error) {
	if !isField(field) {
		return 0, usagedomain.ErrUnknownField
	}

	var expireAt int64
	if isMonthly(field) {
		expireAt = quota.NextMonthlyReset(now).Add(monthlyRetention).UnixMilli()
	}

	v, err := r.script.Run(ctx, r.client, []string{usageKey(teamID, field, now)}, delta, expireAt).Int64()
	if err != nil {
		return 0, err
	}
	return v, nil
}

func usageKey(teamID snowflake.ID, field quota.Field, now time.Time) string {
	if isMonthly(field) {
		return fmt.Sprintf(keyUsageMonthly, teamID, field, now.UTC().Format("2006-01"))
	}
	return fmt.Sprintf(keyUsageGauge, teamID, field)
}

func isMonthly(field quota.Field) bool {
	return field == quota.FieldAPICalls
}

func isField(field quota.Field) bool {
	for _, f := range quota.Fields() {
		if f == field {
			return true
		}
	}
	return false
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

