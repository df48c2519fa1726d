// Package redis provides the production session repository backed by
// Redis acting as a partitioned table store: one hash per record keyed
// by partition/row key, SCAN cursors as continuation tokens, and a Lua
// compare-and-swap for merge writes.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	backend "github.com/redis/go-redis/v9"

	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

const (
	defaultPrefix    = "sessiontrack:"
	defaultScanCount = 100

	// mergeAttempts bounds the read-modify-merge retry loop when the
	// optimistic concurrency check keeps failing.
	mergeAttempts = 3
)

// mergeScript applies a partial update only when the record's Version
// still matches the one the caller read. ARGV[1] is the expected
// version, followed by field/value pairs.
var mergeScript = backend.NewScript(`
local current = redis.call("HGET", KEYS[1], "Version")
if current ~= ARGV[1] then
	return 0
end
for i = 2, #ARGV, 2 do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call("HINCRBY", KEYS[1], "Version", 1)
return 1
`)

// Store implements ports.SessionRepository using Redis.
type Store struct {
	client    *backend.Client
	logger    *slog.Logger
	prefix    string
	scanCount int64

	// deleteKey removes one record; swapped out in tests to simulate
	// delete failures.
	deleteKey func(ctx context.Context, key string) error

	// Lazy bootstrap gate: every operation passes through
	// ensureInitialized before touching the store. One caller at a
	// time runs the idempotent bootstrap while the rest wait on the
	// attempt channel. Success latches for the process lifetime; a
	// failed attempt wakes the waiters so any of them can retry.
	initialized atomic.Bool
	initMu      sync.Mutex
	initAttempt chan struct{}
}

var _ ports.SessionRepository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix for session records and counters.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithScanCount sets the segment size hint for paginated scans.
func WithScanCount(count int64) Option {
	return func(s *Store) { s.scanCount = count }
}

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Redis-backed session repository with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a session repository from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:    client,
		logger:    slog.Default(),
		prefix:    defaultPrefix,
		scanCount: defaultScanCount,
	}
	for _, opt := range opts {
		opt(store)
	}
	store.deleteKey = func(ctx context.Context, key string) error {
		return store.client.Del(ctx, key).Err()
	}
	return store
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) sessionKey(partitionKey, rowKey string) string {
	return s.prefix + "session:" + partitionKey + ":" + rowKey
}

func (s *Store) sessionMatch() string {
	return s.prefix + "session:*"
}

func (s *Store) counterKey(name string) string {
	return s.prefix + "counter:" + name
}

// ensureInitialized performs the one-time store bootstrap. Fast path
// returns immediately once initialized; otherwise one caller claims
// the in-flight attempt and runs the idempotent create-if-absent
// calls while concurrent callers block on its completion. Closing the
// attempt channel wakes the waiters whether the attempt succeeded or
// failed, so after a failure any of them can claim a fresh attempt
// instead of parking forever.
func (s *Store) ensureInitialized(ctx context.Context) error {
	if s.initialized.Load() {
		return nil
	}

	for {
		s.initMu.Lock()
		if s.initialized.Load() {
			s.initMu.Unlock()
			return nil
		}
		if s.initAttempt == nil {
			done := make(chan struct{})
			s.initAttempt = done
			s.initMu.Unlock()

			err := s.bootstrap(ctx)

			s.initMu.Lock()
			if err == nil {
				s.initialized.Store(true)
			}
			s.initAttempt = nil
			s.initMu.Unlock()
			close(done)

			if err != nil {
				return domain.StoreUnavailable("bootstrapping session table", err)
			}
			return nil
		}

		done := s.initAttempt
		s.initMu.Unlock()
		select {
		case <-done:
			// Attempt finished; loop to observe the outcome or retry.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// bootstrap creates the session counters if they do not exist yet.
// SETNX keeps this safe to issue more than once across processes.
func (s *Store) bootstrap(ctx context.Context) error {
	pipe := s.client.Pipeline()
	pipe.SetNX(ctx, s.counterKey("session"), 0, 0)
	pipe.SetNX(ctx, s.counterKey("pending"), 0, 0)
	_, err := pipe.Exec(ctx)
	return err
}

// encode flattens a session into hash fields. The Version field is
// written by the merge script and on insert only.
func encode(sess *domain.Session) map[string]any {
	return map[string]any{
		"PartitionKey":     sess.PartitionKey,
		"RowKey":           sess.RowKey,
		"TeamName":         sess.TeamName,
		"MemberCount":      sess.MemberCount,
		"RoomTime1":        sess.RoomTime1,
		"RoomTime2":        sess.RoomTime2,
		"RoomTime3":        sess.RoomTime3,
		"TotalRoomTime":    sess.TotalRoomTime,
		"SolutionTime":     sess.SolutionTime,
		"TotalSessionTime": sess.TotalSessionTime,
		"PendingOrder":     sess.PendingOrder,
		"Version":          sess.Version,
		"Timestamp":        sess.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// decode rebuilds a session from hash fields. Redis hands everything
// back as strings, so decoding is weakly typed.
func decode(fields map[string]string) (*domain.Session, error) {
	var sess domain.Session
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		Result:           &sess,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	return &sess, nil
}

// CreateSession inserts a zero-initialized record, drawing the
// partition key and pending order from store-managed atomic counters.
func (s *Store) CreateSession(ctx context.Context, teamName string, memberCount int) (*domain.Session, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	ordinal, err := s.client.Incr(ctx, s.counterKey("session")).Result()
	if err != nil {
		return nil, domain.StoreUnavailable("allocating session ordinal", err)
	}
	pending, err := s.client.Incr(ctx, s.counterKey("pending")).Result()
	if err != nil {
		return nil, domain.StoreUnavailable("allocating pending order", err)
	}

	sess := domain.NewSession(
		strconv.FormatInt(ordinal, 10),
		time.Now(),
		teamName,
		memberCount,
		int(pending),
	)

	key := s.sessionKey(sess.PartitionKey, sess.RowKey)
	if err := s.client.HSet(ctx, key, encode(sess)).Err(); err != nil {
		return nil, domain.StoreUnavailable("inserting session record", err)
	}
	return sess, nil
}

// ContainsSessionForTeam reports whether at least one record exists.
func (s *Store) ContainsSessionForTeam(ctx context.Context, teamName string) (bool, error) {
	matches, err := s.queryByTeam(ctx, teamName)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// GetSessionForTeam returns the first record matching the team.
func (s *Store) GetSessionForTeam(ctx context.Context, teamName string) (*domain.Session, error) {
	matches, err := s.queryByTeam(ctx, teamName)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, domain.NotFoundf("no session for team %q", teamName)
	}
	return &matches[0], nil
}

// GetLastSessionCreated scans the whole table and returns the record
// with the latest store timestamp, or nil when the table is empty.
func (s *Store) GetLastSessionCreated(ctx context.Context) (*domain.Session, error) {
	records, err := s.scanAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	var latest *domain.Session
	for i := range records {
		if latest == nil || records[i].Timestamp.After(latest.Timestamp) {
			latest = &records[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// GetPendingSessions returns records with a non-zero pending order,
// ascending by pending order.
func (s *Store) GetPendingSessions(ctx context.Context) ([]domain.Session, error) {
	pending, err := s.scanAll(ctx, func(sess *domain.Session) bool {
		return sess.PendingOrder != 0
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].PendingOrder < pending[j].PendingOrder })
	return pending, nil
}

// GetAllSessionRecords returns every record in scan encounter order.
func (s *Store) GetAllSessionRecords(ctx context.Context) ([]domain.Session, error) {
	return s.scanAll(ctx, nil)
}

// GetTeamNames returns team names of all records whose partition key
// is not the sentinel.
func (s *Store) GetTeamNames(ctx context.Context) ([]string, error) {
	records, err := s.scanAll(ctx, func(sess *domain.Session) bool {
		return sess.PartitionKey != domain.SentinelPartitionKey
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, len(records))
	for i, sess := range records {
		names[i] = sess.TeamName
	}
	return names, nil
}

// GetAllTeamsCDL returns every team name folded into one
// comma-delimited string with the leading "0" marker.
func (s *Store) GetAllTeamsCDL(ctx context.Context) (string, error) {
	records, err := s.scanAll(ctx, nil)
	if err != nil {
		return "", err
	}

	cdl := "0"
	for _, sess := range records {
		cdl += "," + sess.TeamName
	}
	return cdl, nil
}

// SetSolutionTime overwrites the solution time of the team's single
// record via the read-modify-merge protocol.
func (s *Store) SetSolutionTime(ctx context.Context, teamName string, seconds int) error {
	return s.updateSingle(ctx, teamName, func(sess *domain.Session) (map[string]any, error) {
		return map[string]any{"SolutionTime": seconds}, nil
	})
}

// SetRoomTime overwrites one per-room time of the team's single record.
func (s *Store) SetRoomTime(ctx context.Context, teamName string, room, seconds int) error {
	if room < 1 || room > domain.RoomCount {
		return domain.Validationf("room number %d is not one of 1..%d", room, domain.RoomCount)
	}
	return s.updateSingle(ctx, teamName, func(sess *domain.Session) (map[string]any, error) {
		if err := sess.SetRoomTime(room, seconds); err != nil {
			return nil, err
		}
		return map[string]any{fmt.Sprintf("RoomTime%d", room): seconds}, nil
	})
}

// CalculateTotalRoomTime recomputes the room-time sum from the first
// matching record and persists it. A failed or lost merge is logged
// and the computed value still returned; the next recalculation heals
// the stored field.
func (s *Store) CalculateTotalRoomTime(ctx context.Context, teamName string) (int, error) {
	return s.recalculate(ctx, teamName, "TotalRoomTime", func(sess *domain.Session) int {
		return sess.RoomTimeSum()
	})
}

// CalculateTotalSessionTime recomputes total room time plus solution
// time and persists it, with the same best-effort merge as
// CalculateTotalRoomTime.
func (s *Store) CalculateTotalSessionTime(ctx context.Context, teamName string) (int, error) {
	return s.recalculate(ctx, teamName, "TotalSessionTime", func(sess *domain.Session) int {
		return sess.TotalRoomTime + sess.SolutionTime
	})
}

// DeleteTeam removes every record matching the team name.
func (s *Store) DeleteTeam(ctx context.Context, teamName string, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	matches, err := s.queryByTeam(ctx, teamName)
	if err != nil {
		return ports.DeleteOutcome{}, err
	}
	if len(matches) == 0 {
		return ports.DeleteOutcome{}, domain.NotFoundf("no session for team %q", teamName)
	}
	return s.deleteRecords(ctx, matches, mode)
}

// DeleteAllSessions removes every record off the sentinel partition.
func (s *Store) DeleteAllSessions(ctx context.Context, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	records, err := s.scanAll(ctx, func(sess *domain.Session) bool {
		return sess.PartitionKey != domain.SentinelPartitionKey
	})
	if err != nil {
		return ports.DeleteOutcome{}, err
	}
	if len(records) == 0 {
		return ports.DeleteOutcome{}, domain.NotFoundf("no session records exist")
	}
	return s.deleteRecords(ctx, records, mode)
}

func (s *Store) deleteRecords(ctx context.Context, records []domain.Session, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	outcome := ports.DeleteOutcome{Matched: len(records)}
	for _, sess := range records {
		key := s.sessionKey(sess.PartitionKey, sess.RowKey)
		if err := s.deleteKey(ctx, key); err != nil {
			outcome.Failed++
			if mode == ports.DeleteAllOrNothing {
				return outcome, domain.StoreUnavailable("deleting session record "+key, err)
			}
			s.logger.Error("session delete failed", "key", key, "err", err)
			continue
		}
		outcome.Deleted++
	}
	return outcome, nil
}

// scanSegment fetches one bounded segment of session keys. The
// returned cursor is the continuation token; zero means the scan is
// complete.
func (s *Store) scanSegment(ctx context.Context, cursor uint64) ([]string, uint64, error) {
	keys, next, err := s.client.Scan(ctx, cursor, s.sessionMatch(), s.scanCount).Result()
	if err != nil {
		return nil, 0, err
	}
	return keys, next, nil
}

// scanAll runs the full-scan pagination protocol: issue a segment
// scan, accumulate records passing the filter, and follow the
// continuation token until none remains. SCAN may hand back the same
// key more than once within one full iteration, so repeats are
// dropped before reading. Encounter order within each segment is
// preserved; global order is store-defined.
func (s *Store) scanAll(ctx context.Context, keep func(*domain.Session) bool) ([]domain.Session, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	out := []domain.Session{}
	seen := map[string]struct{}{}
	var cursor uint64
	for {
		keys, next, err := s.scanSegment(ctx, cursor)
		if err != nil {
			return nil, domain.StoreUnavailable("scanning session table", err)
		}

		batch, err := s.readRecords(ctx, keys, seen, keep)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)

		if next == 0 {
			break
		}
		cursor = next
	}
	return out, nil
}

// readRecords loads the hashes behind one segment of scanned keys.
// Keys already present in seen are skipped and every processed key is
// added to it, so a key surfacing in two segments yields one record.
func (s *Store) readRecords(ctx context.Context, keys []string, seen map[string]struct{}, keep func(*domain.Session) bool) ([]domain.Session, error) {
	out := []domain.Session{}
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, domain.StoreUnavailable("reading session record "+key, err)
		}
		if len(fields) == 0 {
			// Deleted between the segment scan and the read.
			continue
		}
		sess, err := decode(fields)
		if err != nil {
			return nil, domain.StoreUnavailable("decoding session record "+key, err)
		}
		if keep == nil || keep(sess) {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *Store) queryByTeam(ctx context.Context, teamName string) ([]domain.Session, error) {
	return s.scanAll(ctx, func(sess *domain.Session) bool {
		return sess.TeamName == teamName
	})
}

// merge issues the compare-and-swap partial update. It reports whether
// the write was applied; a false return means the record's version
// moved (or the record vanished) since the caller read it.
func (s *Store) merge(ctx context.Context, sess *domain.Session, fields map[string]any) (bool, error) {
	key := s.sessionKey(sess.PartitionKey, sess.RowKey)

	args := make([]any, 0, 2*len(fields)+3)
	args = append(args, strconv.FormatInt(sess.Version, 10))
	for field, value := range fields {
		args = append(args, field, fmt.Sprint(value))
	}
	args = append(args, "Timestamp", time.Now().UTC().Format(time.RFC3339Nano))

	applied, err := mergeScript.Run(ctx, s.client, []string{key}, args...).Int()
	if err != nil {
		return false, err
	}
	return applied == 1, nil
}

// updateSingle implements the hardened point-query-then-merge
// protocol: locate the team's single record, compute the partial
// update, and retry the compare-and-swap a bounded number of times
// before giving up with ErrConflict.
func (s *Store) updateSingle(ctx context.Context, teamName string, mutate func(*domain.Session) (map[string]any, error)) error {
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		matches, err := s.queryByTeam(ctx, teamName)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return domain.NotFoundf("no session for team %q", teamName)
		}
		if len(matches) > 1 {
			return domain.Ambiguousf("%d sessions for team %q, expected exactly one", len(matches), teamName)
		}

		sess := &matches[0]
		fields, err := mutate(sess)
		if err != nil {
			return err
		}

		applied, err := s.merge(ctx, sess, fields)
		if err != nil {
			return domain.StoreUnavailable("merging session record for team "+teamName, err)
		}
		if applied {
			return nil
		}
		s.logger.Debug("session merge lost version race, retrying", "team", teamName, "attempt", attempt+1)
	}
	return fmt.Errorf("updating session for team %q: %w", teamName, domain.ErrConflict)
}

// recalculate reads the first matching record, computes a derived
// total, persists it through a single merge attempt, and returns the
// computed value regardless of the merge outcome.
func (s *Store) recalculate(ctx context.Context, teamName, field string, compute func(*domain.Session) int) (int, error) {
	matches, err := s.queryByTeam(ctx, teamName)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, domain.NotFoundf("no session for team %q", teamName)
	}

	sess := &matches[0]
	total := compute(sess)

	applied, err := s.merge(ctx, sess, map[string]any{field: total})
	if err != nil || !applied {
		s.logger.Warn("recalculated total not persisted", "team", teamName, "field", field, "err", err)
	}
	return total, nil
}
