package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/marketplace/internal/authorization"
	verificationdomain "github.com/smallbiznis/marketplace/internal/verification/domain"
	"gorm.io/gorm"
)

const (
	TransitionReasonInvalidTransition    = "invalid_transition"
	TransitionReasonMissingDocuments     = "missing_documents"
	TransitionReasonStale                = "stale"
	TransitionReasonNotModifiable        = "not_modifiable"
	TransitionReasonForbidden            = "forbidden"
	TransitionReasonDeadlineExceeded     = "deadline_exceeded"
	TransitionReasonDBLockTimeout        = "db_lock_timeout"
	TransitionReasonSerializationFailure = "serialization_failure"
	TransitionReasonUniqueViolation      = "unique_violation"
	TransitionReasonUnknown              = "unknown"
)

// VerificationMetrics tracks the document verification workflow.
type VerificationMetrics struct {
	transitions      *prometheus.CounterVec
	transitionErrors *prometheus.CounterVec
	documentChanges  *prometheus.CounterVec
}

var (
	verificationMetricsOnce sync.Once
	verificationMetrics     *VerificationMetrics
)

// Verification returns the process-wide verification metrics registered on
// the default Prometheus registry.
func Verification(cfg Config) *VerificationMetrics {
	verificationMetricsOnce.Do(func() {
		verificationMetrics = NewVerificationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return verificationMetrics
}

// NewVerificationMetrics registers the collectors on registerer. Tests pass a
// private registry.
func NewVerificationMetrics(registerer prometheus.Registerer, cfg Config) *VerificationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := serviceLabels(cfg)

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "marketplace_verification_transitions_total",
		Help:        "Verification status transitions applied.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	transitionErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "marketplace_verification_transition_errors_total",
		Help:        "Rejected verification transitions by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"to", "reason"})
	documentChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "marketplace_verification_document_changes_total",
		Help:        "Document uploads and removals on verification requests.",
		ConstLabels: constLabels,
	}, []string{"action"})

	registerer.MustRegister(transitions, transitionErrors, documentChanges)

	return &VerificationMetrics{
		transitions:      transitions,
		transitionErrors: transitionErrors,
		documentChanges:  documentChanges,
	}
}

func (m *VerificationMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *VerificationMetrics) IncTransitionError(to string, err error) {
	if m == nil || err == nil {
		return
	}
	m.transitionErrors.WithLabelValues(normalizeLabel(to), ClassifyTransitionError(err)).Inc()
}

// IncDocumentChange counts an "upload" or "remove".
func (m *VerificationMetrics) IncDocumentChange(action string) {
	if m == nil {
		return
	}
	m.documentChanges.WithLabelValues(normalizeLabel(action)).Inc()
}

// ClassifyTransitionError maps transition failures to low-cardinality reasons.
func ClassifyTransitionError(err error) string {
	switch {
	case err == nil:
		return TransitionReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return TransitionReasonDeadlineExceeded
	case errors.Is(err, verificationdomain.ErrInvalidTransition):
		return TransitionReasonInvalidTransition
	case errors.Is(err, verificationdomain.ErrMissingDocuments):
		return TransitionReasonMissingDocuments
	case errors.Is(err, verificationdomain.ErrStaleVerification):
		return TransitionReasonStale
	case errors.Is(err, verificationdomain.ErrNotModifiable):
		return TransitionReasonNotModifiable
	case errors.Is(err, authorization.ErrForbidden):
		return TransitionReasonForbidden
	case hasPGCode(err, "55P03"):
		return TransitionReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return TransitionReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return TransitionReasonUniqueViolation
	default:
		return TransitionReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func serviceLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "marketplace"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
