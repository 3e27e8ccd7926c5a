package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() verificationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, v *verificationdomain.VerificationRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO verification_requests (
			id, team_id, status, required_documents, uploaded_documents, version,
			submitted_at, reviewed_at, review_note, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID,
		v.TeamID,
		v.Status,
		v.RequiredDocuments,
		v.UploadedDocuments,
		v.Version,
		v.SubmittedAt,
		v.ReviewedAt,
		v.ReviewNote,
		v.CreatedAt,
		v.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*verificationdomain.VerificationRequest, error) {
	var v verificationdomain.VerificationRequest
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM verification_requests WHERE id = ?`,
		id,
	).Scan(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) FindLatestByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*verificationdomain.VerificationRequest, error) {
	var v verificationdomain.VerificationRequest
	err := db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").
		Take(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, v *verificationdomain.VerificationRequest, expectedStatus verificationdomain.Status, expectedVersion int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE verification_requests
		SET status = ?, uploaded_documents = ?, version = ?, submitted_at = ?,
			reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`,
		v.Status,
		v.UploadedDocuments,
		v.Version,
		v.SubmittedAt,
		v.ReviewedAt,
		v.ReviewNote,
		v.UpdatedAt,
		v.ID,
		expectedStatus,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
