// Package domain holds the document verification workflow for teams.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a verification request.
type Status string

const (
	StatusDraft               Status = "Draft"
	StatusUnderReview         Status = "UnderReview"
	StatusNeedMoreInformation Status = "NeedMoreInformation"
	StatusApproved            Status = "Approved"
	StatusRejected            Status = "Rejected"
)

// ParseStatus matches the wire spelling exactly.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.TrimSpace(value)); s {
	case StatusDraft, StatusUnderReview, StatusNeedMoreInformation, StatusApproved, StatusRejected:
		return s, true
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DocumentType identifies a kind of identity or business document. Only the
// type is tracked, never the document bytes.
type DocumentType string

const (
	DocumentBusinessRegistration DocumentType = "business_registration"
	DocumentTaxCertificate       DocumentType = "tax_certificate"
	DocumentGovernmentID         DocumentType = "government_id"
	DocumentProofOfAddress       DocumentType = "proof_of_address"
	DocumentBankStatement        DocumentType = "bank_statement"
	DocumentBrandAuthorization   DocumentType = "brand_authorization"
)

var documentTypes = map[DocumentType]struct{}{
	DocumentBusinessRegistration: {},
	DocumentTaxCertificate:       {},
	DocumentGovernmentID:         {},
	DocumentProofOfAddress:       {},
	DocumentBankStatement:        {},
	DocumentBrandAuthorization:   {},
}

func ParseDocumentType(value string) (DocumentType, error) {
	d := DocumentType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := documentTypes[d]; !ok {
		return "", ErrInvalidDocumentType
	}
	return d, nil
}

// DefaultRequiredDocuments is used when a request is started without an
// explicit document list.
func DefaultRequiredDocuments(bt teamdomain.BusinessType) []DocumentType {
	switch bt {
	case teamdomain.BusinessTypeBrand:
		return []DocumentType{DocumentBusinessRegistration, DocumentTaxCertificate, DocumentBrandAuthorization}
	case teamdomain.BusinessTypeRetailer:
		return []DocumentType{DocumentBusinessRegistration, DocumentTaxCertificate, DocumentProofOfAddress}
	default:
		return []DocumentType{DocumentGovernmentID, DocumentProofOfAddress}
	}
}

// VerificationRequest is created in Draft and never deleted. Version is bumped
// on every write and guards concurrent updates.
type VerificationRequest struct {
	ID                snowflake.ID                `gorm:"primaryKey"`
	TeamID            snowflake.ID                `gorm:"not null;index"`
	Status            Status                      `gorm:"type:text;not null"`
	RequiredDocuments datatypes.JSONSlice[string] `gorm:"not null"`
	UploadedDocuments datatypes.JSONSlice[string] `gorm:"not null"`
	Version           int64                       `gorm:"not null"`
	SubmittedAt       *time.Time
	ReviewedAt        *time.Time
	ReviewNote        string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (VerificationRequest) TableName() string { return "verification_requests" }

func (v VerificationRequest) HasUploaded(d DocumentType) bool {
	for _, u := range v.UploadedDocuments {
		if DocumentType(u) == d {
			return true
		}
	}
	return false
}

// MissingDocuments lists required documents that have not been uploaded.
func (v VerificationRequest) MissingDocuments() []DocumentType {
	var missing []DocumentType
	for _, r := range v.RequiredDocuments {
		if !v.HasUploaded(DocumentType(r)) {
			missing = append(missing, DocumentType(r))
		}
	}
	return missing
}

func (v VerificationRequest) Verified() bool {
	return v.Status == StatusApproved
}

func normalizeDocuments(docs []DocumentType) datatypes.JSONSlice[string] {
	seen := make(map[DocumentType]struct{}, len(docs))
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, string(d))
	}
	sort.Strings(out)
	return datatypes.JSONSlice[string](out)
}

// NewDocumentList builds a sorted, deduplicated document column value.
func NewDocumentList(docs ...DocumentType) datatypes.JSONSlice[string] {
	return normalizeDocuments(docs)
}

// WithDocument returns the uploaded list with d added.
func (v VerificationRequest) WithDocument(d DocumentType) datatypes.JSONSlice[string] {
	docs := make([]DocumentType, 0, len(v.UploadedDocuments)+1)
	for _, u := range v.UploadedDocuments {
		docs = append(docs, DocumentType(u))
	}
	return normalizeDocuments(append(docs, d))
}

// WithoutDocument returns the uploaded list with d removed.
func (v VerificationRequest) WithoutDocument(d DocumentType) datatypes.JSONSlice[string] {
	docs := make([]DocumentType, 0, len(v.UploadedDocuments))
	for _, u := range v.UploadedDocuments {
		if DocumentType(u) != d {
			docs = append(docs, DocumentType(u))
		}
	}
	return normalizeDocuments(docs)
}
