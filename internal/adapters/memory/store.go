// Package memory provides the process-memory session repository,
// used for demos and as a fallback when no table store is configured.
// Unlike the durable variant it loses everything on restart, but it
// implements the full repository contract.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

// Store implements ports.SessionRepository in process memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]*domain.Session

	sessionCounter int64
	pendingCounter int64

	logger *slog.Logger
}

var _ ports.SessionRepository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty in-memory session repository.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data:   make(map[string]*domain.Session),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func recordKey(partitionKey, rowKey string) string {
	return partitionKey + ":" + rowKey
}

// CreateSession inserts a zero-initialized record for the team.
func (s *Store) CreateSession(ctx context.Context, teamName string, memberCount int) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionCounter++
	s.pendingCounter++

	sess := domain.NewSession(
		strconv.FormatInt(s.sessionCounter, 10),
		time.Now(),
		teamName,
		memberCount,
		int(s.pendingCounter),
	)
	s.data[recordKey(sess.PartitionKey, sess.RowKey)] = sess

	out := *sess
	return &out, nil
}

// ContainsSessionForTeam reports whether at least one record exists.
func (s *Store) ContainsSessionForTeam(ctx context.Context, teamName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.data {
		if sess.TeamName == teamName {
			return true, nil
		}
	}
	return false, nil
}

// GetSessionForTeam returns the first record matching the team.
func (s *Store) GetSessionForTeam(ctx context.Context, teamName string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matchLocked(func(sess *domain.Session) bool { return sess.TeamName == teamName })
	if len(matches) == 0 {
		return nil, domain.NotFoundf("no session for team %q", teamName)
	}
	return &matches[0], nil
}

// GetLastSessionCreated returns the record with the latest timestamp,
// or nil when the table is empty.
func (s *Store) GetLastSessionCreated(ctx context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Session
	for _, sess := range s.data {
		if latest == nil || sess.Timestamp.After(latest.Timestamp) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// GetPendingSessions returns records with a non-zero pending order,
// ascending.
func (s *Store) GetPendingSessions(ctx context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := s.matchLocked(func(sess *domain.Session) bool { return sess.PendingOrder != 0 })
	sort.Slice(pending, func(i, j int) bool { return pending[i].PendingOrder < pending[j].PendingOrder })
	return pending, nil
}

// GetAllSessionRecords returns every record.
func (s *Store) GetAllSessionRecords(ctx context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.matchLocked(nil), nil
}

// GetTeamNames returns names of all records off the sentinel partition.
func (s *Store) GetTeamNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := []string{}
	for _, sess := range s.data {
		if sess.PartitionKey != domain.SentinelPartitionKey {
			names = append(names, sess.TeamName)
		}
	}
	return names, nil
}

// GetAllTeamsCDL returns team names as one comma-delimited string.
func (s *Store) GetAllTeamsCDL(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cdl := "0"
	for _, sess := range s.data {
		cdl += "," + sess.TeamName
	}
	return cdl, nil
}

// SetSolutionTime overwrites the solution time of the single record.
func (s *Store) SetSolutionTime(ctx context.Context, teamName string, seconds int) error {
	return s.updateSingle(teamName, func(sess *domain.Session) error {
		sess.SolutionTime = seconds
		return nil
	})
}

// SetRoomTime overwrites one per-room time of the single record.
func (s *Store) SetRoomTime(ctx context.Context, teamName string, room, seconds int) error {
	if room < 1 || room > domain.RoomCount {
		return domain.Validationf("room number %d is not one of 1..%d", room, domain.RoomCount)
	}
	return s.updateSingle(teamName, func(sess *domain.Session) error {
		return sess.SetRoomTime(room, seconds)
	})
}

// CalculateTotalRoomTime recomputes, persists and returns the room sum.
func (s *Store) CalculateTotalRoomTime(ctx context.Context, teamName string) (int, error) {
	return s.recalculate(teamName, func(sess *domain.Session) int {
		sess.TotalRoomTime = sess.RoomTimeSum()
		return sess.TotalRoomTime
	})
}

// CalculateTotalSessionTime recomputes, persists and returns the
// total-room-time plus solution-time sum.
func (s *Store) CalculateTotalSessionTime(ctx context.Context, teamName string) (int, error) {
	return s.recalculate(teamName, func(sess *domain.Session) int {
		sess.TotalSessionTime = sess.TotalRoomTime + sess.SolutionTime
		return sess.TotalSessionTime
	})
}

// DeleteTeam removes every record matching the team name.
// In-memory deletions cannot partially fail, so both modes behave the
// same; the outcome still reports counts for contract parity.
func (s *Store) DeleteTeam(ctx context.Context, teamName string, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	return s.deleteWhere(func(sess *domain.Session) bool { return sess.TeamName == teamName },
		"no session for team "+teamName)
}

// DeleteAllSessions removes every record in the table.
func (s *Store) DeleteAllSessions(ctx context.Context, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	return s.deleteWhere(func(sess *domain.Session) bool {
		return sess.PartitionKey != domain.SentinelPartitionKey
	}, "no session records exist")
}

// matchLocked collects copies of records passing the filter.
// Callers must hold at least the read lock.
func (s *Store) matchLocked(keep func(*domain.Session) bool) []domain.Session {
	out := []domain.Session{}
	for _, sess := range s.data {
		if keep == nil || keep(sess) {
			out = append(out, *sess)
		}
	}
	return out
}

func (s *Store) updateSingle(teamName string, mutate func(*domain.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*domain.Session
	for _, sess := range s.data {
		if sess.TeamName == teamName {
			matches = append(matches, sess)
		}
	}
	if len(matches) == 0 {
		return domain.NotFoundf("no session for team %q", teamName)
	}
	if len(matches) > 1 {
		return domain.Ambiguousf("%d sessions for team %q, expected exactly one", len(matches), teamName)
	}

	sess := matches[0]
	if err := mutate(sess); err != nil {
		return err
	}
	sess.Version++
	sess.Timestamp = time.Now()
	return nil
}

func (s *Store) recalculate(teamName string, compute func(*domain.Session) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.data {
		if sess.TeamName == teamName {
			total := compute(sess)
			sess.Version++
			sess.Timestamp = time.Now()
			return total, nil
		}
	}
	return 0, domain.NotFoundf("no session for team %q", teamName)
}

func (s *Store) deleteWhere(match func(*domain.Session) bool, missing string) (ports.DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outcome ports.DeleteOutcome
	for key, sess := range s.data {
		if match(sess) {
			outcome.Matched++
			delete(s.data, key)
			outcome.Deleted++
		}
	}
	if outcome.Matched == 0 {
		return outcome, domain.NotFoundf("%s", missing)
	}
	return outcome, nil
}
