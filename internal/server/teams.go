package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
)

// CreateTeam makes the caller the owner. Only the system actor may name
// another owner in the body.
func (s *Server) CreateTeam(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req teamdomain.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	switch {
	case actor.Role == authorization.RoleSystem:
		if strings.TrimSpace(req.OwnerUserID) == "" {
			req.OwnerUserID = actor.UserID
		}
	case actor.UserID == "":
		AbortWithError(c, ErrUnauthorized)
		return
	default:
		req.OwnerUserID = actor.UserID
	}

	resp, err := s.teamSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetTeamByID(c *gin.Context) {
	resp, err := s.teamSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddTeamMember(c *gin.Context) {
	var req teamdomain.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TeamID = c.Param("id")

	resp, err := s.teamSvc.AddMember(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
