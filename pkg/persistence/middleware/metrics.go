package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

type metricsMiddleware struct {
	next ports.SessionRepository

	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsMiddleware creates a middleware that records per-operation
// counters and latency histograms on the given registerer.
func NewMetricsMiddleware(reg prometheus.Registerer) Middleware {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessiontrack_repository_ops_total",
			Help: "Total repository operations by outcome",
		},
		[]string{"op", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sessiontrack_repository_op_duration_seconds",
			Help: "Duration of repository operations",
		},
		[]string{"op"},
	)
	reg.MustRegister(ops, duration)

	return func(next ports.SessionRepository) ports.SessionRepository {
		return &metricsMiddleware{next: next, ops: ops, duration: duration}
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsAmbiguous(err):
		return "ambiguous_match"
	case domain.IsValidation(err):
		return "validation_failed"
	case domain.IsStoreUnavailable(err):
		return "store_unavailable"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	m.ops.WithLabelValues(op, outcomeLabel(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) CreateSession(ctx context.Context, teamName string, memberCount int) (*domain.Session, error) {
	start := time.Now()
	sess, err := m.next.CreateSession(ctx, teamName, memberCount)
	m.observe("create_session", start, err)
	return sess, err
}

func (m *metricsMiddleware) ContainsSessionForTeam(ctx context.Context, teamName string) (bool, error) {
	start := time.Now()
	ok, err := m.next.ContainsSessionForTeam(ctx, teamName)
	m.observe("contains_session", start, err)
	return ok, err
}

func (m *metricsMiddleware) GetSessionForTeam(ctx context.Context, teamName string) (*domain.Session, error) {
	start := time.Now()
	sess, err := m.next.GetSessionForTeam(ctx, teamName)
	m.observe("get_session", start, err)
	return sess, err
}

func (m *metricsMiddleware) GetLastSessionCreated(ctx context.Context) (*domain.Session, error) {
	start := time.Now()
	sess, err := m.next.GetLastSessionCreated(ctx)
	m.observe("get_last_session", start, err)
	return sess, err
}

func (m *metricsMiddleware) GetPendingSessions(ctx context.Context) ([]domain.Session, error) {
	start := time.Now()
	sessions, err := m.next.GetPendingSessions(ctx)
	m.observe("get_pending_sessions", start, err)
	return sessions, err
}

func (m *metricsMiddleware) GetAllSessionRecords(ctx context.Context) ([]domain.Session, error) {
	start := time.Now()
	sessions, err := m.next.GetAllSessionRecords(ctx)
	m.observe("get_all_sessions", start, err)
	return sessions, err
}

func (m *metricsMiddleware) GetTeamNames(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := m.next.GetTeamNames(ctx)
	m.observe("get_team_names", start, err)
	return names, err
}

func (m *metricsMiddleware) GetAllTeamsCDL(ctx context.Context) (string, error) {
	start := time.Now()
	cdl, err := m.next.GetAllTeamsCDL(ctx)
	m.observe("get_all_teams_cdl", start, err)
	return cdl, err
}

func (m *metricsMiddleware) SetSolutionTime(ctx context.Context, teamName string, seconds int) error {
	start := time.Now()
	err := m.next.SetSolutionTime(ctx, teamName, seconds)
	m.observe("set_solution_time", start, err)
	return err
}

func (m *metricsMiddleware) SetRoomTime(ctx context.Context, teamName string, room, seconds int) error {
	start := time.Now()
	err := m.next.SetRoomTime(ctx, teamName, room, seconds)
	m.observe("set_room_time", start, err)
	return err
}

func (m *metricsMiddleware) CalculateTotalRoomTime(ctx context.Context, teamName string) (int, error) {
	start := time.Now()
	total, err := m.next.CalculateTotalRoomTime(ctx, teamName)
	m.observe("calculate_total_room_time", start, err)
	return total, err
}

func (m *metricsMiddleware) CalculateTotalSessionTime(ctx context.Context, teamName string) (int, error) {
	start := time.Now()
	total, err := m.next.CalculateTotalSessionTime(ctx, teamName)
	m.observe("calculate_total_session_time", start, err)
	return total, err
}

func (m *metricsMiddleware) DeleteTeam(ctx context.Context, teamName string, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	start := time.Now()
	outcome, err := m.next.DeleteTeam(ctx, teamName, mode)
	m.observe("delete_team", start, err)
	return outcome, err
}

func (m *metricsMiddleware) DeleteAllSessions(ctx context.Context, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	start := time.Now()
	outcome, err := m.next.DeleteAllSessions(ctx, mode)
	m.observe("delete_all_sessions", start, err)
	return outcome, err
}
