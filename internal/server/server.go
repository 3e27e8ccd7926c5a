package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/marketplace/internal/authorization"
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/entitlement"
	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	"github.com/smallbiznis/marketplace/internal/featuregate"
	featuregatedomain "github.com/smallbiznis/marketplace/internal/featuregate/domain"
	"github.com/smallbiznis/marketplace/internal/invitation"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	"github.com/smallbiznis/marketplace/internal/observability"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	obstracing "github.com/smallbiznis/marketplace/internal/observability/tracing"
	"github.com/smallbiznis/marketplace/internal/plan"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	"github.com/smallbiznis/marketplace/internal/team"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"github.com/smallbiznis/marketplace/internal/usage"
	"github.com/smallbiznis/marketplace/internal/verification"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	team.Module,
	plan.Module,
	subscription.Module,
	invitation.Module,
	verification.Module,
	usage.Module,
	entitlement.Module,
	featuregate.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Logger:          log,
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())
	r.Use(RequestMemo())
	r.Use(ActorContext())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	metricsPath := obsCfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, log.Named("http"), httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine              *gin.Engine
	authzSvc            authorization.Service
	teamSvc             teamdomain.Service
	planSvc             plandomain.Service
	subscriptionSvc     subscriptiondomain.Service
	invitationSvc       invitationdomain.Service
	resolver            entitlementdomain.Resolver
	gateSvc             featuregatedomain.Service
	verificationSvc     verificationdomain.Service
	verificationMetrics *obsmetrics.VerificationMetrics
}

type ServerParams struct {
	fx.In

	Gin                 *gin.Engine
	AuthzSvc            authorization.Service
	TeamSvc             teamdomain.Service
	PlanSvc             plandomain.Service
	SubscriptionSvc     subscriptiondomain.Service
	InvitationSvc       invitationdomain.Service
	Resolver            entitlementdomain.Resolver
	GateSvc             featuregatedomain.Service
	VerificationSvc     verificationdomain.Service
	VerificationMetrics *obsmetrics.VerificationMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:              p.Gin,
		authzSvc:            p.AuthzSvc,
		teamSvc:             p.TeamSvc,
		planSvc:             p.PlanSvc,
		subscriptionSvc:     p.SubscriptionSvc,
		invitationSvc:       p.InvitationSvc,
		resolver:            p.Resolver,
		gateSvc:             p.GateSvc,
		verificationSvc:     p.VerificationSvc,
		verificationMetrics: p.VerificationMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Teams --------
	api.POST("/teams", s.CreateTeam)
	api.GET("/teams/:id", s.GetTeamByID)
	api.POST("/teams/:id/members", s.authorizeTeamParam(authorization.ObjectTeam, authorization.ActionTeamManageMembers), s.AddTeamMember)

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.GET("/plans/:id", s.GetPlanByID)
	api.POST("/plans", s.authorizePlatformAction(authorization.ObjectPlan, authorization.ActionPlanCreate), s.CreatePlan)

	// -------- Subscriptions --------
	api.POST("/subscriptions", s.CreateSubscription)
	api.POST("/subscriptions/:id/transition", s.TransitionSubscription)
	api.GET("/teams/:id/subscription", s.GetTeamSubscription)
	api.POST("/teams/:id/subscription/change-plan", s.authorizeTeamParam(authorization.ObjectSubscription, authorization.ActionSubscriptionManage), s.ChangePlan)

	// -------- Invitations --------
	api.POST("/invitations", s.SendInvitation)
	api.GET("/invitations/:id", s.GetInvitationByID)
	api.POST("/invitations/:id/accept", s.AcceptInvitation)
	api.POST("/invitations/:id/revoke", s.RevokeInvitation)
	api.GET("/teams/:id/invitations", s.ListSentInvitations)

	// -------- Entitlements --------
	api.GET("/teams/:id/entitlements", s.GetEntitlements)
	api.GET("/teams/:id/capabilities", s.GetCapabilities)
	api.POST("/teams/:id/gate", s.EvaluateGate)

	// -------- Verifications --------
	api.POST("/verifications", s.BeginVerification)
	api.GET("/verifications/:id", s.GetVerificationByID)
	api.GET("/teams/:id/verification", s.GetTeamVerification)
	api.PUT("/verifications/:id/documents/:type", s.UploadVerificationDocument)
	api.DELETE("/verifications/:id/documents/:type", s.RemoveVerificationDocument)
	api.POST("/verifications/:id/transition", s.TransitionVerification)
}
