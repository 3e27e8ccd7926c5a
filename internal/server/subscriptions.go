package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authorizeTeam(c, req.TeamID, authorization.ObjectSubscription, authorization.ActionSubscriptionManage); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// TransitionSubscription is called by the billing provider as well as by
// team admins, so the team is read from the stored subscription.
func (s *Server) TransitionSubscription(c *gin.Context) {
	var req subscriptiondomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubscriptionID = c.Param("id")

	ctx := c.Request.Context()
	current, err := s.subscriptionSvc.GetByID(ctx, req.SubscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorizeTeam(c, current.TeamID, authorization.ObjectSubscription, authorization.ActionSubscriptionManage); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Transition(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeamSubscription(c *gin.Context) {
	resp, err := s.subscriptionSvc.GetCurrentByTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ChangePlan(c *gin.Context) {
	var req subscriptiondomain.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TeamID = c.Param("id")

	resp, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
