// Package domain decides whether a team may see a guarded feature.
package domain

import (
	"context"
	"errors"
	"strings"

	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
)

// Level selects how a missing feature is presented.
type Level string

const (
	LevelHard Level = "hard"
	LevelSoft Level = "soft"
)

// ParseLevel defaults an empty level to hard.
func ParseLevel(value string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(value))); l {
	case "":
		return LevelHard, nil
	case LevelHard, LevelSoft:
		return l, nil
	}
	return "", ErrInvalidLevel
}

const (
	ReasonGranted              = "granted"
	ReasonMissingPermission    = "missing_permission"
	ReasonVerificationRequired = "verification_required"
	ReasonUnknownFeature       = "unknown_feature"
)

type Decision struct {
	Feature           string `json:"feature"`
	Level             Level  `json:"level"`
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason"`
	RenderContent     bool   `json:"render_content"`
	ShowUpgradePrompt bool   `json:"show_upgrade_prompt"`
	ShowUpsell        bool   `json:"show_upsell"`
	UpgradeHint       string `json:"upgrade_hint,omitempty"`
}

// Evaluate never fails. Unknown tokens are denied without an upgrade
// affordance since no plan can grant them.
func Evaluate(snapshot entitlementdomain.Snapshot, feature string, level Level) Decision {
	if level != LevelSoft {
		level = LevelHard
	}
	d := Decision{
		Feature: strings.TrimSpace(feature),
		Level:   level,
	}

	perm := permissiondomain.Permission(d.Feature)
	switch {
	case !permissiondomain.IsValid(perm):
		d.Reason = ReasonUnknownFeature
		d.RenderContent = level == LevelSoft
		return d
	case !snapshot.Has(perm):
		d.Reason = ReasonMissingPermission
	case permissiondomain.RequiresVerification(perm) && !snapshot.Verified:
		d.Reason = ReasonVerificationRequired
	default:
		d.Allowed = true
		d.Reason = ReasonGranted
		d.RenderContent = true
		return d
	}

	if level == LevelHard {
		d.ShowUpgradePrompt = true
	} else {
		d.RenderContent = true
		d.ShowUpsell = true
	}
	return d
}

type Service interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (*Decision, error)
}

type EvaluateRequest struct {
	TeamID  string `json:"-"`
	UserID  string `json:"-"`
	Feature string `json:"feature"`
	Level   string `json:"level"`
}

var (
	ErrInvalidLevel   = errors.New("invalid_level")
	ErrInvalidFeature = errors.New("invalid_feature")
)
