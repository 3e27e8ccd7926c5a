package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Begin(ctx context.Context, req BeginRequest) (*VerificationResponse, error)
	Get(ctx context.Context, id string) (*VerificationResponse, error)
	GetLatestByTeam(ctx context.Context, teamID string) (*VerificationResponse, error)
	UploadDocument(ctx context.Context, req DocumentRequest) (*VerificationResponse, error)
	RemoveDocument(ctx context.Context, req DocumentRequest) (*VerificationResponse, error)
	Transition(ctx context.Context, req TransitionRequest) (*VerificationResponse, error)

	// Latest returns the team's most recent request, or nil when none exists.
	Latest(ctx context.Context, teamID snowflake.ID) (*VerificationRequest, error)
}

type BeginRequest struct {
	TeamID            string   `json:"team_id"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
}

type DocumentRequest struct {
	VerificationID string `json:"-"`
	DocumentType   string `json:"-"`
}

// TransitionRequest moves a request to Target. When ExpectedStatus is set the
// transition is refused if the stored status has changed since it was read.
type TransitionRequest struct {
	VerificationID string `json:"-"`
	Target         string `json:"status"`
	ExpectedStatus string `json:"expected_status,omitempty"`
	Note           string `json:"note,omitempty"`
}

type VerificationResponse struct {
	ID                string     `json:"id"`
	TeamID            string     `json:"team_id"`
	Status            Status     `json:"status"`
	RequiredDocuments []string   `json:"required_documents"`
	UploadedDocuments []string   `json:"uploaded_documents"`
	MissingDocuments  []string   `json:"missing_documents"`
	Progress          int        `json:"progress"`
	CanModify         bool       `json:"can_modify"`
	NextStatuses      []Status   `json:"next_statuses"`
	Version           int64      `json:"version"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote        string     `json:"review_note,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

var (
	ErrInvalidVerification    = errors.New("invalid_verification")
	ErrInvalidTeam            = errors.New("invalid_team")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidDocumentType    = errors.New("invalid_document_type")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrNotModifiable          = errors.New("not_modifiable")
	ErrMissingDocuments       = errors.New("missing_documents")
	ErrStaleVerification      = errors.New("stale_verification")
	ErrVerificationInProgress = errors.New("verification_in_progress")
	ErrAlreadyVerified        = errors.New("already_verified")
	ErrVerificationNotFound   = errors.New("verification_not_found")
)
