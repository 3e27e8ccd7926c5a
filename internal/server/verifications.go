package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
)

func (s *Server) BeginVerification(c *gin.Context) {
	var req verificationdomain.BeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authorizeTeam(c, req.TeamID, authorization.ObjectVerification, authorization.ActionVerificationSubmit); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.verificationSvc.Begin(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetVerificationByID(c *gin.Context) {
	resp, err := s.verificationSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeamVerification(c *gin.Context) {
	resp, err := s.verificationSvc.GetLatestByTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UploadVerificationDocument(c *gin.Context) {
	s.changeVerificationDocument(c, s.verificationSvc.UploadDocument)
}

func (s *Server) RemoveVerificationDocument(c *gin.Context) {
	s.changeVerificationDocument(c, s.verificationSvc.RemoveDocument)
}

type documentChangeFunc func(ctx context.Context, req verificationdomain.DocumentRequest) (*verificationdomain.VerificationResponse, error)

func (s *Server) changeVerificationDocument(c *gin.Context, change documentChangeFunc) {
	ctx := c.Request.Context()
	current, err := s.verificationSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorizeTeam(c, current.TeamID, authorization.ObjectVerification, authorization.ActionVerificationSubmit); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := change(ctx, verificationdomain.DocumentRequest{
		VerificationID: c.Param("id"),
		DocumentType:   c.Param("type"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// TransitionVerification lets the team submit its own request. Reviewers
// decide the outcome.
func (s *Server) TransitionVerification(c *gin.Context) {
	var req verificationdomain.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.VerificationID = c.Param("id")

	target, ok := verificationdomain.ParseStatus(strings.TrimSpace(req.Target))
	if !ok {
		AbortWithError(c, verificationdomain.ErrInvalidStatus)
		return
	}

	ctx := c.Request.Context()
	current, err := s.verificationSvc.Get(ctx, req.VerificationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if verificationdomain.ReviewerOnly(target) {
		err = s.authorizePlatform(c, authorization.ObjectVerification, authorization.ActionVerificationReview)
	} else {
		err = s.authorizeTeam(c, current.TeamID, authorization.ObjectVerification, authorization.ActionVerificationSubmit)
	}
	if err != nil {
		s.verificationMetrics.IncTransitionError(string(target), err)
		AbortWithError(c, err)
		return
	}

	resp, err := s.verificationSvc.Transition(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
