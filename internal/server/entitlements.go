package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/marketplace/internal/entitlement/domain"
	featuregatedomain "github.com/smallbiznis/marketplace/internal/featuregate/domain"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
)

// resolveRequest scopes resolution to the calling user when one is named.
func resolveRequest(c *gin.Context) entitlementdomain.ResolveRequest {
	return entitlementdomain.ResolveRequest{
		TeamID: c.Param("id"),
		UserID: strings.TrimSpace(c.GetHeader(obslogger.HeaderUserID)),
	}
}

func (s *Server) GetEntitlements(c *gin.Context) {
	resp, err := s.resolver.Resolve(c.Request.Context(), resolveRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCapabilities(c *gin.Context) {
	resp, err := s.resolver.Capabilities(c.Request.Context(), resolveRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EvaluateGate(c *gin.Context) {
	var req featuregatedomain.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	scope := resolveRequest(c)
	req.TeamID = scope.TeamID
	req.UserID = scope.UserID
	c.Set("gate_feature", req.Feature)

	resp, err := s.gateSvc.Evaluate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
