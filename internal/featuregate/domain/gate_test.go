package domain

import (
	"testing"

	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(verified bool, perms ...permissiondomain.Permission) entitlementdomain.Snapshot {
	set := permissiondomain.NewSet(perms...)
	return entitlementdomain.Snapshot{
		TeamID:               "1",
		EffectivePermissions: set,
		Verified:             verified,
	}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		snapshot entitlementdomain.Snapshot
		feature  string
		level    Level
		want     Decision
	}{
		{
			name:     "hard granted",
			snapshot: snapshotWith(false, permissiondomain.AdvancedAnalytics),
			feature:  "AdvancedAnalytics",
			level:    LevelHard,
			want:     Decision{Allowed: true, Reason: ReasonGranted, RenderContent: true},
		},
		{
			name:     "hard missing blocks content",
			snapshot: snapshotWith(false, permissiondomain.BasicAnalytics),
			feature:  "AdvancedAnalytics",
			level:    LevelHard,
			want:     Decision{Reason: ReasonMissingPermission, ShowUpgradePrompt: true},
		},
		{
			name:     "soft missing renders with upsell",
			snapshot: snapshotWith(false, permissiondomain.BasicAnalytics),
			feature:  "AdvancedAnalytics",
			level:    LevelSoft,
			want:     Decision{Reason: ReasonMissingPermission, RenderContent: true, ShowUpsell: true},
		},
		{
			name:     "soft granted has no upsell",
			snapshot: snapshotWith(false, permissiondomain.BasicAnalytics),
			feature:  "BasicAnalytics",
			level:    LevelSoft,
			want:     Decision{Allowed: true, Reason: ReasonGranted, RenderContent: true},
		},
		{
			name:     "verified only feature without verification",
			snapshot: snapshotWith(false, permissiondomain.WhiteLabel),
			feature:  "WhiteLabel",
			level:    LevelHard,
			want:     Decision{Reason: ReasonVerificationRequired, ShowUpgradePrompt: true},
		},
		{
			name:     "verified only feature once verified",
			snapshot: snapshotWith(true, permissiondomain.WhiteLabel),
			feature:  "WhiteLabel",
			level:    LevelHard,
			want:     Decision{Allowed: true, Reason: ReasonGranted, RenderContent: true},
		},
		{
			name:     "unknown feature hard",
			snapshot: snapshotWith(true, permissiondomain.WhiteLabel),
			feature:  "Teleport",
			level:    LevelHard,
			want:     Decision{Reason: ReasonUnknownFeature},
		},
		{
			name:     "unknown feature soft still renders",
			snapshot: snapshotWith(true),
			feature:  "Teleport",
			level:    LevelSoft,
			want:     Decision{Reason: ReasonUnknownFeature, RenderContent: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.snapshot, tc.feature, tc.level)
			tc.want.Feature = tc.feature
			tc.want.Level = tc.level
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	snap := snapshotWith(false, permissiondomain.BasicCampaigns)
	first := Evaluate(snap, "AdvancedCampaigns", LevelSoft)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(snap, "AdvancedCampaigns", LevelSoft))
	}
}

func TestEvaluateUnknownLevelIsHard(t *testing.T) {
	got := Evaluate(snapshotWith(false), "AdvancedAnalytics", Level("medium"))
	assert.Equal(t, LevelHard, got.Level)
	assert.False(t, got.RenderContent)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelHard, level)

	level, err = ParseLevel(" Soft ")
	require.NoError(t, err)
	assert.Equal(t, LevelSoft, level)

	_, err = ParseLevel("medium")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
