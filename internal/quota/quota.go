// Package quota merges numeric limits from every entitlement source.
package quota

import (
	"errors"
	"time"
)

// Unlimited is the sentinel limit value. Any other negative is invalid.
const Unlimited int64 = -1

var ErrInvalidQuota = errors.New("invalid_quota")

// Field names one quota dimension; the value doubles as the usage limit type.
type Field string

const (
	FieldConnections Field = "connections"
	FieldInvites     Field = "invites"
	FieldProducts    Field = "products"
	FieldAPICalls    Field = "api_calls"
)

// Fields lists the quota dimensions in display order.
func Fields() []Field {
	return []Field{FieldConnections, FieldInvites, FieldProducts, FieldAPICalls}
}

// Source is one contributor of limits. A nil field means the source does not
// define that quota and does not participate in it.
type Source struct {
	MaxConnections   *int64
	MaxInvites       *int64
	MaxProducts      *int64
	APICallsPerMonth *int64
}

// Quotas is the resolved, fully populated limit set.
type Quotas struct {
	MaxConnections   int64 `json:"max_connections"`
	MaxInvites       int64 `json:"max_invites"`
	MaxProducts      int64 `json:"max_products"`
	APICallsPerMonth int64 `json:"api_calls_per_month"`
}

func (s Source) Validate() error {
	for _, v := range s.values() {
		if v != nil && *v < Unlimited {
			return ErrInvalidQuota
		}
	}
	return nil
}

// Exceeding lists the fields s defines above what held allows. Unlimited
// may only be passed on by a holder that is itself unlimited.
func (s Source) Exceeding(held Quotas) []Field {
	var over []Field
	for _, f := range Fields() {
		v := s.value(f)
		if v == nil {
			continue
		}
		limit := held.Get(f)
		switch {
		case IsUnlimited(limit):
		case IsUnlimited(*v), *v > limit:
			over = append(over, f)
		}
	}
	return over
}

func (s Source) value(f Field) *int64 {
	switch f {
	case FieldConnections:
		return s.MaxConnections
	case FieldInvites:
		return s.MaxInvites
	case FieldProducts:
		return s.MaxProducts
	case FieldAPICalls:
		return s.APICallsPerMonth
	}
	return nil
}

func (s Source) values() []*int64 {
	return []*int64{s.MaxConnections, s.MaxInvites, s.MaxProducts, s.APICallsPerMonth}
}

// Resolve combines sources field by field: Unlimited wins, otherwise the
// largest finite value wins, and a field nobody defines resolves to 0.
// Values below Unlimited are ignored; they are rejected by Validate on write.
func Resolve(sources []Source) Quotas {
	return Quotas{
		MaxConnections:   resolveField(sources, FieldConnections),
		MaxInvites:       resolveField(sources, FieldInvites),
		MaxProducts:      resolveField(sources, FieldProducts),
		APICallsPerMonth: resolveField(sources, FieldAPICalls),
	}
}

func resolveField(sources []Source, f Field) int64 {
	var best int64
	for _, src := range sources {
		v := src.value(f)
		if v == nil {
			continue
		}
		switch {
		case *v == Unlimited:
			return Unlimited
		case *v > best:
			best = *v
		}
	}
	return best
}

func (q Quotas) Get(f Field) int64 {
	switch f {
	case FieldConnections:
		return q.MaxConnections
	case FieldInvites:
		return q.MaxInvites
	case FieldProducts:
		return q.MaxProducts
	case FieldAPICalls:
		return q.APICallsPerMonth
	}
	return 0
}

func IsUnlimited(limit int64) bool {
	return limit == Unlimited
}

// Allows reports whether usage can grow by n without passing limit.
func Allows(limit, usage, n int64) bool {
	if IsUnlimited(limit) {
		return true
	}
	return usage+n <= limit
}

// Int64 returns a pointer for building sources from literals.
func Int64(v int64) *int64 {
	return &v
}

// NextMonthlyReset is the first instant of the next UTC calendar month, when
// monthly quotas such as API calls start over.
func NextMonthlyReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
