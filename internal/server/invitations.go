package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
)

type sendInvitationRequest struct {
	SenderTeamID string `json:"sender_team_id"`
	invitationdomain.InviteRequest
}

func (s *Server) SendInvitation(c *gin.Context) {
	var body sendInvitationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authorizeTeam(c, body.SenderTeamID, authorization.ObjectInvitation, authorization.ActionInvitationSend); err != nil {
		AbortWithError(c, err)
		return
	}

	req := body.InviteRequest
	req.SenderTeamID = body.SenderTeamID

	resp, err := s.invitationSvc.Invite(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetInvitationByID(c *gin.Context) {
	resp, err := s.invitationSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	var req invitationdomain.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvitationID = c.Param("id")

	if err := s.authorizeTeam(c, req.ReceiverTeamID, authorization.ObjectInvitation, authorization.ActionInvitationAccept); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invitationSvc.Accept(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	var req invitationdomain.RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.InvitationID = c.Param("id")

	if err := s.authorizeTeam(c, req.SenderTeamID, authorization.ObjectInvitation, authorization.ActionInvitationRevoke); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invitationSvc.Revoke(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSentInvitations(c *gin.Context) {
	resp, err := s.invitationSvc.ListSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
