package ports

import (
	"context"

	"github.com/venuekit/sessiontrack/pkg/domain"
)

// DeleteMode selects how bulk deletions treat per-record failures.
type DeleteMode int

const (
	// DeleteBestEffort keeps deleting past failures and reports how
	// many records could not be removed.
	DeleteBestEffort DeleteMode = iota
	// DeleteAllOrNothing aborts on the first failed deletion and
	// returns the store error alongside the partial outcome.
	DeleteAllOrNothing
)

// DeleteOutcome describes what a bulk deletion actually did.
// Matched == 0 is reported as a not-found error by implementations,
// which keeps "nothing to delete" distinguishable from a run that
// matched records but failed part-way.
type DeleteOutcome struct {
	Matched int `json:"matched"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SessionRepository is the data-access contract for team session
// records. It owns the session lifecycle exclusively; no other
// component constructs or mutates records directly.
//
// Implementations surface failures through the tagged domain.Error
// taxonomy rather than bare booleans, so callers can distinguish
// not-found, ambiguous-match, validation and store outages.
type SessionRepository interface {
	// CreateSession inserts a zero-initialized record for the team,
	// assigning the partition key and the next pending order from
	// store-managed counters.
	CreateSession(ctx context.Context, teamName string, memberCount int) (*domain.Session, error)

	// ContainsSessionForTeam reports whether at least one record
	// exists for the team.
	ContainsSessionForTeam(ctx context.Context, teamName string) (bool, error)

	// GetSessionForTeam returns the first record matching the team.
	// Returns a not-found error on zero matches.
	GetSessionForTeam(ctx context.Context, teamName string) (*domain.Session, error)

	// GetLastSessionCreated returns the record with the latest
	// store-managed timestamp, or nil (with nil error) when the table
	// is empty.
	GetLastSessionCreated(ctx context.Context) (*domain.Session, error)

	// GetPendingSessions returns all records with a non-zero pending
	// order, ascending by pending order.
	GetPendingSessions(ctx context.Context) ([]domain.Session, error)

	// GetAllSessionRecords returns every record in store order.
	GetAllSessionRecords(ctx context.Context) ([]domain.Session, error)

	// GetTeamNames returns the team names of all records whose
	// partition key is not the sentinel value.
	GetTeamNames(ctx context.Context) ([]string, error)

	// GetAllTeamsCDL returns the team names as a single
	// comma-delimited string with a leading "0" marker.
	GetAllTeamsCDL(ctx context.Context) (string, error)

	// SetSolutionTime overwrites the solution time of the team's
	// single record. Requires exactly one match.
	SetSolutionTime(ctx context.Context, teamName string, seconds int) error

	// SetRoomTime overwrites one per-room elapsed time of the team's
	// single record. Room must be within 1..domain.RoomCount.
	SetRoomTime(ctx context.Context, teamName string, room, seconds int) error

	// CalculateTotalRoomTime recomputes the sum of the three room
	// times, persists it, and returns it. A failed persist is logged
	// and the computed value still returned.
	CalculateTotalRoomTime(ctx context.Context, teamName string) (int, error)

	// CalculateTotalSessionTime recomputes total room time plus
	// solution time, persists it, and returns it. Persistence follows
	// the same best-effort rule as CalculateTotalRoomTime.
	CalculateTotalSessionTime(ctx context.Context, teamName string) (int, error)

	// DeleteTeam removes every record matching the team name.
	DeleteTeam(ctx context.Context, teamName string, mode DeleteMode) (DeleteOutcome, error)

	// DeleteAllSessions removes every record in the table.
	DeleteAllSessions(ctx context.Context, mode DeleteMode) (DeleteOutcome, error)
}
