package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/config"
	entitlementsvc "github.com/smallbiznis/marketplace/internal/entitlement/service"
	featuregatesvc "github.com/smallbiznis/marketplace/internal/featuregate/service"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/marketplace/internal/invitation/repository"
	invitationsvc "github.com/smallbiznis/marketplace/internal/invitation/service"
	"github.com/smallbiznis/marketplace/internal/observability"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	planrepo "github.com/smallbiznis/marketplace/internal/plan/repository"
	plansvc "github.com/smallbiznis/marketplace/internal/plan/service"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/marketplace/internal/subscription/repository"
	subscriptionsvc "github.com/smallbiznis/marketplace/internal/subscription/service"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	teamrepo "github.com/smallbiznis/marketplace/internal/team/repository"
	teamsvc "github.com/smallbiznis/marketplace/internal/team/service"
	"github.com/smallbiznis/marketplace/internal/usage/counter"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	verificationrepo "github.com/smallbiznis/marketplace/internal/verification/repository"
	verificationsvc "github.com/smallbiznis/marketplace/internal/verification/service"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type headers map[string]string

func owner(userID string) headers {
	return headers{"X-User-Id": userID}
}

func staff(role, userID string) headers {
	return headers{"X-User-Id": userID, "X-Actor-Role": role}
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&invitationdomain.Invitation{},
		&verificationdomain.VerificationRequest{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	teams := teamsvc.New(teamsvc.Params{DB: conn, Log: log, GenID: node, Clock: fake, Repo: teamrepo.NewRepository(conn)})
	plans := plansvc.New(plansvc.Params{DB: conn, Log: log, GenID: node, Clock: fake, Repo: planrepo.Provide()})
	subs := subscriptionsvc.NewService(subscriptionsvc.ServiceParam{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: subscriptionrepo.Provide(),
		Teamsvc: teams, Plansvc: plans,
	})
	verifications := verificationsvc.New(verificationsvc.Params{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: verificationrepo.Provide(), TeamSvc: teams,
	})
	invRepo := invitationrepo.Provide()
	resolver := entitlementsvc.New(entitlementsvc.Params{
		DB:              conn,
		Log:             log,
		Clock:           fake,
		TeamSvc:         teams,
		PlanSvc:         plans,
		SubscriptionSvc: subs,
		VerificationSvc: verifications,
		InvitationRepo:  invRepo,
		Counter:         counter.NewNoop(),
	})
	invitations := invitationsvc.New(invitationsvc.Params{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: invRepo,
		TeamSvc: teams, Entitlements: entitlementsvc.NewSenderSource(resolver),
	})
	gate := featuregatesvc.New(featuregatesvc.Params{
		Log:      log,
		Resolver: resolver,
		Hints:    config.NewStaticGateHints(config.GateHints{DefaultHint: "Upgrade to unlock"}),
		Metrics:  metrics.NewNoop(),
	})

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer})

	engine := NewEngine(observability.Config{ServiceName: "marketplace-test", LogLevel: "error"}, zap.NewNop(), nil)
	NewServer(ServerParams{
		Gin:             engine,
		AuthzSvc:        authz,
		TeamSvc:         teams,
		PlanSvc:         plans,
		SubscriptionSvc: subs,
		InvitationSvc:   invitations,
		Resolver:        resolver,
		GateSvc:         gate,
		VerificationSvc: verifications,
	})
	return engine
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error errorPayload    `json:"error"`
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, h headers, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var out envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

type snapshotView struct {
	EffectivePermissions []string `json:"effective_permissions"`
	CanInviteOthers      bool     `json:"can_invite_others"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func createTeam(t *testing.T, engine *gin.Engine, userID, name string, bt teamdomain.BusinessType) string {
	t.Helper()
	status, body := doJSON(t, engine, http.MethodPost, "/api/teams", owner(userID), teamdomain.CreateTeamRequest{
		Name:         name,
		BusinessType: bt,
	})
	require.Equal(t, http.StatusCreated, status)
	return decode[teamdomain.TeamResponse](t, body.Data).ID
}

func createPlan(t *testing.T, engine *gin.Engine, code string, bt teamdomain.BusinessType, perms []string) string {
	t.Helper()
	invites := int64(3)
	status, body := doJSON(t, engine, http.MethodPost, "/api/plans", staff(authorization.RolePlatformAdmin, "900"), plandomain.CreatePlanRequest{
		Code:         code,
		Name:         code,
		BusinessType: bt,
		Permissions:  perms,
		MaxInvites:   &invites,
	})
	require.Equal(t, http.StatusCreated, status)
	return decode[plandomain.PlanResponse](t, body.Data).ID
}

func TestHealth(t *testing.T) {
	engine := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
}

func TestCreateTeamRequiresActor(t *testing.T) {
	engine := newTestServer(t)

	status, body := doJSON(t, engine, http.MethodPost, "/api/teams", nil, teamdomain.CreateTeamRequest{
		Name:         "Anonymous",
		BusinessType: teamdomain.BusinessTypeBrand,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body.Error.Type)
}

func TestCreateTeamOwnerIsTheCaller(t *testing.T) {
	engine := newTestServer(t)

	status, body := doJSON(t, engine, http.MethodPost, "/api/teams", owner("7"), teamdomain.CreateTeamRequest{
		Name:         "Acme Brand",
		BusinessType: teamdomain.BusinessTypeBrand,
		OwnerUserID:  "99",
	})
	require.Equal(t, http.StatusCreated, status)
	team := decode[teamdomain.TeamResponse](t, body.Data)
	require.Len(t, team.Members, 1)
	assert.Equal(t, "7", team.Members[0].UserID)

	status, _ = doJSON(t, engine, http.MethodPost, "/api/teams", staff(authorization.RoleReviewer, ""), teamdomain.CreateTeamRequest{
		Name:         "No User",
		BusinessType: teamdomain.BusinessTypeBrand,
		OwnerUserID:  "99",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = doJSON(t, engine, http.MethodPost, "/api/teams", staff(authorization.RoleSystem, ""), teamdomain.CreateTeamRequest{
		Name:         "Provisioned Retail",
		BusinessType: teamdomain.BusinessTypeRetailer,
		OwnerUserID:  "99",
	})
	require.Equal(t, http.StatusCreated, status)
	team = decode[teamdomain.TeamResponse](t, body.Data)
	require.Len(t, team.Members, 1)
	assert.Equal(t, "99", team.Members[0].UserID)
}

func TestUnknownTeamIsNotFound(t *testing.T) {
	engine := newTestServer(t)

	status, body := doJSON(t, engine, http.MethodGet, "/api/teams/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "team_not_found", body.Error.Message)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/abc/entitlements", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_team", body.Error.Errors[0].Code)
}

func TestPlanCreationNeedsPlatformRole(t *testing.T) {
	engine := newTestServer(t)

	status, body := doJSON(t, engine, http.MethodPost, "/api/plans", owner("7"), plandomain.CreatePlanRequest{
		Code:         "brand-x",
		Name:         "Brand X",
		BusinessType: teamdomain.BusinessTypeBrand,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body.Error.Message)

	createPlan(t, engine, "brand-x", teamdomain.BusinessTypeBrand, []string{"BasicAnalytics"})

	status, body = doJSON(t, engine, http.MethodGet, "/api/plans?business_type=brand", nil, nil)
	require.Equal(t, http.StatusOK, status)
	listed := decode[[]plandomain.PlanResponse](t, body.Data)
	require.Len(t, listed, 1)
	assert.Equal(t, "brand-x", listed[0].Code)

	status, _ = doJSON(t, engine, http.MethodGet, "/api/plans?business_type=wholesaler", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSubscriptionFlowsIntoEntitlementsAndGate(t *testing.T) {
	engine := newTestServer(t)
	teamID := createTeam(t, engine, "7", "Acme Brand", teamdomain.BusinessTypeBrand)
	planID := createPlan(t, engine, "brand-growth", teamdomain.BusinessTypeBrand, []string{"BasicAnalytics", "BasicInvites"})

	status, _ := doJSON(t, engine, http.MethodPost, "/api/subscriptions", owner("8"), subscriptiondomain.CreateSubscriptionRequest{
		TeamID: teamID, PlanID: planID, Status: "active",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := doJSON(t, engine, http.MethodPost, "/api/subscriptions", owner("7"), subscriptiondomain.CreateSubscriptionRequest{
		TeamID: teamID, PlanID: planID, Status: "active",
	})
	require.Equal(t, http.StatusCreated, status)
	sub := decode[subscriptiondomain.SubscriptionResponse](t, body.Data)

	status, body = doJSON(t, engine, http.MethodPost, "/api/subscriptions", owner("7"), subscriptiondomain.CreateSubscriptionRequest{
		TeamID: teamID, PlanID: planID, Status: "active",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "active_subscription_exists", body.Error.Message)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/"+teamID+"/entitlements", owner("7"), nil)
	require.Equal(t, http.StatusOK, status)
	snap := decode[snapshotView](t, body.Data)
	assert.ElementsMatch(t, []string{"BasicAnalytics", "BasicInvites"}, snap.EffectivePermissions)
	assert.True(t, snap.CanInviteOthers)

	status, _ = doJSON(t, engine, http.MethodGet, "/api/teams/"+teamID+"/entitlements", owner("55"), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, engine, http.MethodPost, "/api/teams/"+teamID+"/gate", owner("7"), gin.H{
		"feature": "WhiteLabel",
		"level":   "soft",
	})
	require.Equal(t, http.StatusOK, status)
	decision := decode[struct {
		Allowed       bool   `json:"allowed"`
		Reason        string `json:"reason"`
		RenderContent bool   `json:"render_content"`
		ShowUpsell    bool   `json:"show_upsell"`
		UpgradeHint   string `json:"upgrade_hint"`
	}](t, body.Data)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "missing_permission", decision.Reason)
	assert.True(t, decision.RenderContent)
	assert.True(t, decision.ShowUpsell)
	assert.Equal(t, "Upgrade to unlock", decision.UpgradeHint)

	status, body = doJSON(t, engine, http.MethodPost, "/api/subscriptions/"+sub.ID+"/transition", staff(authorization.RoleSystem, ""), gin.H{
		"status": "canceled",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "canceled", decode[subscriptiondomain.SubscriptionResponse](t, body.Data).Status)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/"+teamID+"/entitlements", nil, nil)
	require.Equal(t, http.StatusOK, status)
	snap = decode[snapshotView](t, body.Data)
	assert.Empty(t, snap.EffectivePermissions)
}

func TestInvitationOverHTTP(t *testing.T) {
	engine := newTestServer(t)
	brandID := createTeam(t, engine, "7", "Acme Brand", teamdomain.BusinessTypeBrand)
	creatorID := createTeam(t, engine, "8", "Cleo Creates", teamdomain.BusinessTypeCreator)
	planID := createPlan(t, engine, "brand-growth", teamdomain.BusinessTypeBrand, []string{"BasicAnalytics", "BasicInvites"})

	status, _ := doJSON(t, engine, http.MethodPost, "/api/subscriptions", owner("7"), subscriptiondomain.CreateSubscriptionRequest{
		TeamID: brandID, PlanID: planID, Status: "active",
	})
	require.Equal(t, http.StatusCreated, status)

	invite := gin.H{
		"sender_team_id":        brandID,
		"receiver_team_id":      creatorID,
		"invited_business_type": "creator",
		"granted_permissions":   []string{"BasicAnalytics"},
	}
	status, _ = doJSON(t, engine, http.MethodPost, "/api/invitations", owner("8"), invite)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := doJSON(t, engine, http.MethodPost, "/api/invitations", owner("7"), invite)
	require.Equal(t, http.StatusCreated, status)
	inv := decode[invitationdomain.InvitationResponse](t, body.Data)
	assert.Equal(t, brandID, inv.SenderTeamID)

	status, _ = doJSON(t, engine, http.MethodPost, "/api/invitations/"+inv.ID+"/accept", owner("8"), gin.H{"team_id": creatorID})
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/"+creatorID+"/capabilities", owner("8"), nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[struct {
		Analytics bool `json:"analytics"`
	}](t, body.Data).Analytics)

	status, _ = doJSON(t, engine, http.MethodPost, "/api/invitations/"+inv.ID+"/revoke", owner("7"), gin.H{"team_id": brandID})
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/"+brandID+"/invitations", nil, nil)
	require.Equal(t, http.StatusOK, status)
	sent := decode[[]invitationdomain.InvitationResponse](t, body.Data)
	require.Len(t, sent, 1)
	assert.Equal(t, inv.ID, sent[0].ID)
}

func TestVerificationReviewNeedsReviewer(t *testing.T) {
	engine := newTestServer(t)
	teamID := createTeam(t, engine, "7", "Acme Brand", teamdomain.BusinessTypeBrand)

	status, body := doJSON(t, engine, http.MethodPost, "/api/verifications", owner("7"), verificationdomain.BeginRequest{
		TeamID:            teamID,
		RequiredDocuments: []string{"business_registration"},
	})
	require.Equal(t, http.StatusCreated, status)
	v := decode[verificationdomain.VerificationResponse](t, body.Data)
	base := "/api/verifications/" + v.ID

	status, body = doJSON(t, engine, http.MethodPost, base+"/transition", owner("7"), gin.H{"status": "UnderReview"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "missing_documents", body.Error.Message)

	status, _ = doJSON(t, engine, http.MethodPut, base+"/documents/business_registration", owner("9"), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, engine, http.MethodPut, base+"/documents/business_registration", owner("7"), nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, engine, http.MethodPost, base+"/transition", owner("7"), gin.H{"status": "UnderReview"})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, engine, http.MethodPost, base+"/transition", owner("7"), gin.H{"status": "Approved"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = doJSON(t, engine, http.MethodPost, base+"/transition", staff(authorization.RoleReviewer, "900"), gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, verificationdomain.StatusApproved, decode[verificationdomain.VerificationResponse](t, body.Data).Status)

	status, body = doJSON(t, engine, http.MethodGet, "/api/teams/"+teamID+"/verification", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, v.ID, decode[verificationdomain.VerificationResponse](t, body.Data).ID)

	status, _ = doJSON(t, engine, http.MethodPost, base+"/transition", staff(authorization.RoleReviewer, "900"), gin.H{"status": "Finished"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{invitationdomain.ErrPermissionNotHeld, http.StatusForbidden, "forbidden"},
		{invitationdomain.ErrQuotaNotHeld, http.StatusForbidden, "forbidden"},
		{verificationdomain.ErrVerificationInProgress, http.StatusConflict, "conflict"},
		{teamdomain.ErrTeamNotFound, http.StatusNotFound, "not_found"},
		{verificationdomain.ErrInvalidTransition, http.StatusConflict, "conflict"},
		{invitationdomain.ErrInviteLimitReached, http.StatusConflict, "conflict"},
		{teamdomain.ErrInvalidBusinessType, http.StatusBadRequest, "validation_error"},
		{invalidRequestError(), http.StatusBadRequest, "validation_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}
