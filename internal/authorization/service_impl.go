package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const platformDomain = "platform"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) AuthorizeTeam(ctx context.Context, actor Actor, teamID string, object string, action string) error {
	object, action, err := normalizeRequest(object, action)
	if err != nil {
		return err
	}
	parsedTeamID, err := snowflake.ParseString(strings.TrimSpace(teamID))
	if err != nil || parsedTeamID == 0 {
		return ErrInvalidTeam
	}

	subject, roleName, err := s.resolveTeamActor(ctx, actor, parsedTeamID)
	if err != nil {
		s.logDenied(actor, fmt.Sprintf("team:%s", parsedTeamID), object, action)
		return err
	}
	return s.enforce(actor, subject, roleName, fmt.Sprintf("team:%s", parsedTeamID), object, action)
}

func (s *ServiceImpl) AuthorizePlatform(ctx context.Context, actor Actor, object string, action string) error {
	object, action, err := normalizeRequest(object, action)
	if err != nil {
		return err
	}

	role := strings.ToLower(strings.TrimSpace(actor.Role))
	switch role {
	case RoleSystem, RoleReviewer, RolePlatformAdmin:
	case "":
		if strings.TrimSpace(actor.UserID) == "" {
			return ErrInvalidActor
		}
		s.logDenied(actor, platformDomain, object, action)
		return ErrForbidden
	default:
		s.logDenied(actor, platformDomain, object, action)
		return ErrForbidden
	}

	subject, err := actorSubject(actor)
	if err != nil {
		return err
	}
	return s.enforce(actor, subject, "role:"+role, platformDomain, object, action)
}

func (s *ServiceImpl) enforce(actor Actor, subject, roleName, domain, object, action string) error {
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logDenied(actor, domain, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveTeamActor(ctx context.Context, actor Actor, teamID snowflake.ID) (string, string, error) {
	if strings.EqualFold(strings.TrimSpace(actor.Role), RoleSystem) {
		return RoleSystem, "role:system", nil
	}

	subject, err := actorSubject(actor)
	if err != nil {
		return "", "", err
	}
	userID, _ := snowflake.ParseString(strings.TrimPrefix(subject, "user:"))

	role, err := s.roleForUser(ctx, teamID, userID)
	if err != nil {
		return subject, "", err
	}
	return subject, fmt.Sprintf("role:%s", strings.ToLower(role)), nil
}

func (s *ServiceImpl) roleForUser(ctx context.Context, teamID snowflake.ID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM team_members
		 WHERE team_id = ? AND user_id = ?
		 LIMIT 1`,
		teamID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps exactly one role link per subject and domain, so a
// membership role change takes effect on the next check.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) logDenied(actor Actor, domain, object, action string) {
	s.log.Info("authorization denied",
		zap.String("actor_id", actor.UserID),
		zap.String("actor_role", actor.Role),
		zap.String("domain", domain),
		zap.String("object", object),
		zap.String("action", action),
	)
}

func actorSubject(actor Actor) (string, error) {
	if strings.EqualFold(strings.TrimSpace(actor.Role), RoleSystem) && strings.TrimSpace(actor.UserID) == "" {
		return RoleSystem, nil
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(actor.UserID))
	if err != nil || userID == 0 {
		return "", ErrInvalidActor
	}
	return fmt.Sprintf("user:%s", userID), nil
}

func normalizeRequest(object, action string) (string, string, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return "", "", ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return "", "", ErrInvalidAction
	}
	return object, action, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions
		{"role:member", ObjectVerification, ActionVerificationSubmit},
		{"role:member", ObjectInvitation, ActionInvitationAccept},

		// Admin permissions
		{"role:admin", ObjectTeam, ActionTeamManageMembers},
		{"role:admin", ObjectSubscription, ActionSubscriptionManage},
		{"role:admin", ObjectInvitation, ActionInvitationSend},
		{"role:admin", ObjectInvitation, ActionInvitationAccept},
		{"role:admin", ObjectInvitation, ActionInvitationRevoke},
		{"role:admin", ObjectVerification, ActionVerificationSubmit},

		// Owner permissions
		{"role:owner", ObjectTeam, ActionTeamManageMembers},
		{"role:owner", ObjectSubscription, ActionSubscriptionManage},
		{"role:owner", ObjectInvitation, ActionInvitationSend},
		{"role:owner", ObjectInvitation, ActionInvitationAccept},
		{"role:owner", ObjectInvitation, ActionInvitationRevoke},
		{"role:owner", ObjectVerification, ActionVerificationSubmit},

		// Platform staff
		{"role:reviewer", ObjectVerification, ActionVerificationReview},
		{"role:platform_admin", ObjectVerification, ActionVerificationReview},
		{"role:platform_admin", ObjectPlan, ActionPlanCreate},

		// System permissions (billing provider callbacks and automation)
		{"role:system", ObjectSubscription, ActionSubscriptionManage},
		{"role:system", ObjectPlan, ActionPlanCreate},
		{"role:system", ObjectTeam, ActionTeamManageMembers},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
