package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	featuregatedomain "github.com/smallbiznis/marketplace/internal/featuregate/domain"
	invitationdomain "github.com/smallbiznis/marketplace/internal/invitation/domain"
	permissiondomain "github.com/smallbiznis/marketplace/internal/permission/domain"
	plandomain "github.com/smallbiznis/marketplace/internal/plan/domain"
	"github.com/smallbiznis/marketplace/internal/quota"
	subscriptiondomain "github.com/smallbiznis/marketplace/internal/subscription/domain"
	teamdomain "github.com/smallbiznis/marketplace/internal/team/domain"
	usagedomain "github.com/smallbiznis/marketplace/internal/usage/domain"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError keeps the domain code as the message so clients can branch on it.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: err.Error()}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: notFoundMessage(err)}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	if payload.Type == "internal_error" {
		return payload.Type, "internal_error"
	}
	return payload.Type, payload.Message
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, invitationdomain.ErrInviteNotPermitted),
		errors.Is(err, invitationdomain.ErrPermissionNotHeld),
		errors.Is(err, invitationdomain.ErrQuotaNotHeld),
		errors.Is(err, invitationdomain.ErrNotInvitationReceiver),
		errors.Is(err, invitationdomain.ErrNotInvitationSender):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, teamdomain.ErrTeamNotFound),
		errors.Is(err, teamdomain.ErrUserNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, invitationdomain.ErrInvitationNotFound),
		errors.Is(err, verificationdomain.ErrVerificationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound) {
		return "not found"
	}
	return err.Error()
}

// Transition and modification refusals are conflicts with the stored state,
// checked before the generic invalid_ prefix rule.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrActiveSubscriptionExists),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, verificationdomain.ErrInvalidTransition),
		errors.Is(err, verificationdomain.ErrNotModifiable),
		errors.Is(err, verificationdomain.ErrMissingDocuments),
		errors.Is(err, verificationdomain.ErrStaleVerification),
		errors.Is(err, verificationdomain.ErrVerificationInProgress),
		errors.Is(err, verificationdomain.ErrAlreadyVerified),
		errors.Is(err, invitationdomain.ErrInviteLimitReached),
		errors.Is(err, invitationdomain.ErrInvitationRevoked),
		errors.Is(err, plandomain.ErrPlanCodeTaken),
		errors.Is(err, teamdomain.ErrSlugTaken),
		errors.Is(err, teamdomain.ErrMemberExists),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, permissiondomain.ErrInvalidPermission),
		errors.Is(err, quota.ErrInvalidQuota),
		errors.Is(err, usagedomain.ErrUnknownField),
		errors.Is(err, featuregatedomain.ErrInvalidLevel),
		errors.Is(err, featuregatedomain.ErrInvalidFeature),
		errors.Is(err, invitationdomain.ErrBusinessTypeMismatch),
		errors.Is(err, subscriptiondomain.ErrPlanBusinessTypeMismatch):
		return true
	}
	return strings.HasPrefix(err.Error(), "invalid_")
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "business_type_mismatch", "plan_business_type_mismatch":
		return "business_type"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "business_type_mismatch", "plan_business_type_mismatch":
		return "business type does not match"
	default:
		return "invalid value"
	}
}
