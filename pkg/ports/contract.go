package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/sessiontrack/pkg/domain"
)

// RunSessionRepositoryContract runs a suite of tests verifying that a
// SessionRepository implementation adheres to the interface contract.
// Adapters call this from their own test packages so both the table
// store variant and the in-memory variant stay in lockstep.
func RunSessionRepositoryContract(t *testing.T, repo SessionRepository) {
	ctx := context.Background()

	reset := func(t *testing.T) {
		t.Helper()
		if _, err := repo.DeleteAllSessions(ctx, DeleteBestEffort); err != nil && !domain.IsNotFound(err) {
			t.Fatalf("reset failed: %v", err)
		}
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		reset(t)

		created, err := repo.CreateSession(ctx, "night-owls", 4)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.NotEmpty(t, created.PartitionKey)
		assert.NotEqual(t, domain.SentinelPartitionKey, created.PartitionKey)
		assert.Len(t, created.RowKey, len(domain.RowKeyLayout))

		got, err := repo.GetSessionForTeam(ctx, "night-owls")
		require.NoError(t, err)
		assert.Equal(t, "night-owls", got.TeamName)
		assert.Equal(t, 4, got.MemberCount)
		assert.Zero(t, got.RoomTime1)
		assert.Zero(t, got.RoomTime2)
		assert.Zero(t, got.RoomTime3)
		assert.Zero(t, got.TotalRoomTime)
		assert.Zero(t, got.SolutionTime)
		assert.Zero(t, got.TotalSessionTime)
		assert.NotZero(t, got.PendingOrder)
	})

	t.Run("PendingOrderIncreases", func(t *testing.T) {
		reset(t)

		first, err := repo.CreateSession(ctx, "team-a", 2)
		require.NoError(t, err)
		second, err := repo.CreateSession(ctx, "team-b", 3)
		require.NoError(t, err)

		assert.Equal(t, first.PendingOrder+1, second.PendingOrder)
	})

	t.Run("ContainsSessionForTeam", func(t *testing.T) {
		reset(t)

		ok, err := repo.ContainsSessionForTeam(ctx, "ghosts")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.CreateSession(ctx, "ghosts", 5)
		require.NoError(t, err)

		ok, err = repo.ContainsSessionForTeam(ctx, "ghosts")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GetSessionForTeamNotFound", func(t *testing.T) {
		reset(t)

		_, err := repo.GetSessionForTeam(ctx, "nobody")
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("RoomTimesAndTotals", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "puzzlers", 3)
		require.NoError(t, err)

		require.NoError(t, repo.SetRoomTime(ctx, "puzzlers", 1, 120))
		require.NoError(t, repo.SetRoomTime(ctx, "puzzlers", 2, 240))
		require.NoError(t, repo.SetRoomTime(ctx, "puzzlers", 3, 60))

		got, err := repo.GetSessionForTeam(ctx, "puzzlers")
		require.NoError(t, err)
		assert.Equal(t, 120, got.RoomTime1)
		assert.Equal(t, 240, got.RoomTime2)
		assert.Equal(t, 60, got.RoomTime3)
		// Derived total is not recomputed until asked for.
		assert.Zero(t, got.TotalRoomTime)

		total, err := repo.CalculateTotalRoomTime(ctx, "puzzlers")
		require.NoError(t, err)
		assert.Equal(t, 420, total)

		require.NoError(t, repo.SetSolutionTime(ctx, "puzzlers", 300))

		sessionTotal, err := repo.CalculateTotalSessionTime(ctx, "puzzlers")
		require.NoError(t, err)
		assert.Equal(t, 720, sessionTotal)

		got, err = repo.GetSessionForTeam(ctx, "puzzlers")
		require.NoError(t, err)
		assert.Equal(t, 420, got.TotalRoomTime)
		assert.Equal(t, 720, got.TotalSessionTime)
	})

	t.Run("SetRoomTimeRejectsUnknownRoom", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "walls", 2)
		require.NoError(t, err)

		err = repo.SetRoomTime(ctx, "walls", 4, 10)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))

		got, err := repo.GetSessionForTeam(ctx, "walls")
		require.NoError(t, err)
		assert.Zero(t, got.RoomTime1)
		assert.Zero(t, got.RoomTime2)
		assert.Zero(t, got.RoomTime3)
	})

	t.Run("UpdateMissingTeam", func(t *testing.T) {
		reset(t)

		err := repo.SetSolutionTime(ctx, "missing", 30)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))

		err = repo.SetRoomTime(ctx, "missing", 1, 30)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("UpdateAmbiguousTeam", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "twins", 2)
		require.NoError(t, err)
		_, err = repo.CreateSession(ctx, "twins", 2)
		require.NoError(t, err)

		err = repo.SetSolutionTime(ctx, "twins", 45)
		require.Error(t, err)
		assert.True(t, domain.IsAmbiguous(err))
	})

	t.Run("GetLastSessionCreated", func(t *testing.T) {
		reset(t)

		latest, err := repo.GetLastSessionCreated(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest, "empty table yields no record, not a fault")

		_, err = repo.CreateSession(ctx, "early", 2)
		require.NoError(t, err)
		_, err = repo.CreateSession(ctx, "late", 2)
		require.NoError(t, err)

		latest, err = repo.GetLastSessionCreated(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "late", latest.TeamName)
	})

	t.Run("GetPendingSessionsSorted", func(t *testing.T) {
		reset(t)

		for _, name := range []string{"one", "two", "three"} {
			_, err := repo.CreateSession(ctx, name, 2)
			require.NoError(t, err)
		}

		pending, err := repo.GetPendingSessions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		for i := 1; i < len(pending); i++ {
			assert.Less(t, pending[i-1].PendingOrder, pending[i].PendingOrder)
		}
	})

	t.Run("TeamNameListings", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "alpha", 2)
		require.NoError(t, err)
		_, err = repo.CreateSession(ctx, "beta", 3)
		require.NoError(t, err)

		names, err := repo.GetTeamNames(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alpha", "beta"}, names)

		cdl, err := repo.GetAllTeamsCDL(ctx)
		require.NoError(t, err)
		assert.Contains(t, []string{"0,alpha,beta", "0,beta,alpha"}, cdl)

		all, err := repo.GetAllSessionRecords(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("DeleteTeam", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "leavers", 2)
		require.NoError(t, err)

		outcome, err := repo.DeleteTeam(ctx, "leavers", DeleteBestEffort)
		require.NoError(t, err)
		assert.Equal(t, DeleteOutcome{Matched: 1, Deleted: 1}, outcome)

		ok, err := repo.ContainsSessionForTeam(ctx, "leavers")
		require.NoError(t, err)
		assert.False(t, ok)

		outcome, err = repo.DeleteTeam(ctx, "leavers", DeleteBestEffort)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
		assert.Zero(t, outcome.Matched)
	})

	t.Run("DeleteAllSessionsIdempotence", func(t *testing.T) {
		reset(t)

		_, err := repo.CreateSession(ctx, "gone", 2)
		require.NoError(t, err)
		_, err = repo.CreateSession(ctx, "gone-too", 2)
		require.NoError(t, err)

		outcome, err := repo.DeleteAllSessions(ctx, DeleteAllOrNothing)
		require.NoError(t, err)
		assert.Equal(t, DeleteOutcome{Matched: 2, Deleted: 2}, outcome)

		// Second run finds nothing; distinguishable from a partial failure.
		outcome, err = repo.DeleteAllSessions(ctx, DeleteAllOrNothing)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
		assert.Zero(t, outcome.Matched)
		assert.Zero(t, outcome.Failed)
	})
}
