package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/clock"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
	"github.com/smallbiznis/marketplace/internal/observability/metrics"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"github.com/smallbiznis/marketplace/internal/verification/domain"
	dbpkg "github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	TeamSvc teamdomain.Service
	Metrics *metrics.VerificationMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	teamsvc teamdomain.Service
	metrics *metrics.VerificationMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("verification.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		teamsvc: p.TeamSvc,
		metrics: p.Metrics,
	}
}

// Begin opens a Draft request. A team may start over after a rejection but
// not while a request is open or once it is approved.
func (s *Service) Begin(ctx context.Context, req domain.BeginRequest) (*domain.VerificationResponse, error) {
	teamID, err := parseID(req.TeamID, domain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	team, err := s.teamsvc.Lookup(ctx, teamID)
	if err != nil {
		return nil, err
	}

	required := make([]domain.DocumentType, 0, len(req.RequiredDocuments))
	for _, raw := range req.RequiredDocuments {
		doc, err := domain.ParseDocumentType(raw)
		if err != nil {
			return nil, err
		}
		required = append(required, doc)
	}
	if len(required) == 0 {
		required = domain.DefaultRequiredDocuments(team.BusinessType)
	}

	now := s.clock.Now()
	v := &domain.VerificationRequest{
		ID:                s.genID.Generate(),
		TeamID:            teamID,
		Status:            domain.StatusDraft,
		RequiredDocuments: domain.NewDocumentList(required...),
		UploadedDocuments: domain.NewDocumentList(),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.repo.FindLatestByTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if latest != nil {
			switch {
			case latest.Status == domain.StatusApproved:
				return domain.ErrAlreadyVerified
			case !latest.Status.IsTerminal():
				return domain.ErrVerificationInProgress
			}
		}
		if err := s.repo.Insert(ctx, tx, v); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return domain.ErrVerificationInProgress
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("verification started",
		zap.String("verification_id", v.ID.String()),
		zap.String("team_id", teamID.String()),
		zap.Int("required_documents", len(v.RequiredDocuments)),
	)
	return toResponse(v), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.VerificationResponse, error) {
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(v), nil
}

func (s *Service) GetLatestByTeam(ctx context.Context, teamID string) (*domain.VerificationResponse, error) {
	id, err := parseID(teamID, domain.ErrInvalidTeam)
	if err != nil {
		return nil, err
	}
	v, err := s.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrVerificationNotFound
	}
	return toResponse(v), nil
}

func (s *Service) Latest(ctx context.Context, teamID snowflake.ID) (*domain.VerificationRequest, error) {
	return s.repo.FindLatestByTeam(ctx, s.db, teamID)
}

func (s *Service) UploadDocument(ctx context.Context, req domain.DocumentRequest) (*domain.VerificationResponse, error) {
	return s.changeDocument(ctx, req, "upload")
}

func (s *Service) RemoveDocument(ctx context.Context, req domain.DocumentRequest) (*domain.VerificationResponse, error) {
	return s.changeDocument(ctx, req, "remove")
}

func (s *Service) changeDocument(ctx context.Context, req domain.DocumentRequest, action string) (*domain.VerificationResponse, error) {
	doc, err := domain.ParseDocumentType(req.DocumentType)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, req.VerificationID)
	if err != nil {
		return nil, err
	}
	if !domain.CanUserModifyVerification(current.Status) {
		return nil, domain.ErrNotModifiable
	}

	uploaded := current.HasUploaded(doc)
	if (action == "upload" && uploaded) || (action == "remove" && !uploaded) {
		return toResponse(current), nil
	}

	next := *current
	if action == "upload" {
		next.UploadedDocuments = current.WithDocument(doc)
	} else {
		next.UploadedDocuments = current.WithoutDocument(doc)
	}
	next.Version = current.Version + 1
	next.UpdatedAt = s.clock.Now()

	if err := s.swap(ctx, &next, current); err != nil {
		return nil, err
	}

	s.metrics.IncDocumentChange(action)
	obslogger.WithContext(ctx, s.log).Info("verification document changed",
		zap.String("verification_id", next.ID.String()),
		zap.String("action", action),
		zap.String("document_type", string(doc)),
	)
	return toResponse(&next), nil
}

// Transition validates the edge before touching storage. The write is a
// compare-and-swap on status and version, so a concurrent reviewer decision
// or resubmission surfaces as ErrStaleVerification instead of a lost update.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.VerificationResponse, error) {
	target, ok := domain.ParseStatus(req.Target)
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	resp, err := s.transition(ctx, req, target)
	if err != nil {
		s.metrics.IncTransitionError(string(target), err)
		return nil, err
	}
	return resp, nil
}

func (s *Service) transition(ctx context.Context, req domain.TransitionRequest, target domain.Status) (*domain.VerificationResponse, error) {
	var expected domain.Status
	if strings.TrimSpace(req.ExpectedStatus) != "" {
		parsed, ok := domain.ParseStatus(req.ExpectedStatus)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		expected = parsed
	}

	current, err := s.load(ctx, req.VerificationID)
	if err != nil {
		return nil, err
	}
	if expected != "" && expected != current.Status {
		return nil, domain.ErrStaleVerification
	}
	if !domain.CanTransitionTo(current.Status, target) {
		return nil, domain.ErrInvalidTransition
	}
	if target == domain.StatusUnderReview && len(current.MissingDocuments()) > 0 {
		return nil, domain.ErrMissingDocuments
	}

	now := s.clock.Now()
	next := *current
	next.Status = target
	next.Version = current.Version + 1
	next.UpdatedAt = now
	if target == domain.StatusUnderReview {
		next.SubmittedAt = &now
	}
	if domain.ReviewerOnly(target) {
		next.ReviewedAt = &now
		next.ReviewNote = strings.TrimSpace(req.Note)
	}

	if err := s.swap(ctx, &next, current); err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(current.Status), string(target))
	obslogger.WithContext(ctx, s.log).Info("verification transitioned",
		zap.String("verification_id", next.ID.String()),
		zap.String("team_id", next.TeamID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
	)
	return toResponse(&next), nil
}

func (s *Service) swap(ctx context.Context, next, current *domain.VerificationRequest) error {
	ok, err := s.repo.CompareAndSwap(ctx, s.db, next, current.Status, current.Version)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrStaleVerification
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.VerificationRequest, error) {
	verificationID, err := parseID(id, domain.ErrInvalidVerification)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.FindByID(ctx, s.db, verificationID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrVerificationNotFound
	}
	return v, nil
}

func toResponse(v *domain.VerificationRequest) *domain.VerificationResponse {
	missing := make([]string, 0)
	for _, d := range v.MissingDocuments() {
		missing = append(missing, string(d))
	}
	return &domain.VerificationResponse{
		ID:                v.ID.String(),
		TeamID:            v.TeamID.String(),
		Status:            v.Status,
		RequiredDocuments: append([]string{}, v.RequiredDocuments...),
		UploadedDocuments: append([]string{}, v.UploadedDocuments...),
		MissingDocuments:  missing,
		Progress:          domain.Progress(*v),
		CanModify:         domain.CanUserModifyVerification(v.Status),
		NextStatuses:      domain.NextStatuses(v.Status),
		Version:           v.Version,
		SubmittedAt:       v.SubmittedAt,
		ReviewedAt:        v.ReviewedAt,
		ReviewNote:        v.ReviewNote,
		CreatedAt:         v.CreatedAt,
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
