package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/marketplace/internal/authorization"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"gorm.io/gorm"
)

func TestClassifyTransitionError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: TransitionReasonDeadlineExceeded},
		{name: "invalid", err: verificationdomain.ErrInvalidTransition, want: TransitionReasonInvalidTransition},
		{name: "wrapped_missing", err: fmt.Errorf("submit: %w", verificationdomain.ErrMissingDocuments), want: TransitionReasonMissingDocuments},
		{name: "stale", err: verificationdomain.ErrStaleVerification, want: TransitionReasonStale},
		{name: "forbidden", err: authorization.ErrForbidden, want: TransitionReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: TransitionReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: TransitionReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: TransitionReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: TransitionReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyTransitionError(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIncTransition(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewVerificationMetrics(registry, Config{ServiceName: "marketplace", Environment: "test"})

	m.IncTransition("Draft", "UnderReview")
	m.IncTransition("Draft", "UnderReview")
	m.IncTransitionError("Approved", verificationdomain.ErrInvalidTransition)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("Draft", "UnderReview")); got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitionErrors.WithLabelValues("Approved", TransitionReasonInvalidTransition)); got != 1 {
		t.Fatalf("expected 1 transition error, got %v", got)
	}
}

func TestHTTPMetricsMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{Environment: "test"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/teams/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/teams/1", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/teams/:id", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}
