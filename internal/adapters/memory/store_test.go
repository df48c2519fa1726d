package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionRepositoryContract(t, NewStore())
}

func TestGetPendingSessions_ExcludesZeroOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.CreateSession(ctx, "queued", 2)
	require.NoError(t, err)

	// A finished session carries pending order 0; plant one directly.
	done := domain.NewSession("99", time.Now(), "finished", 3, 0)
	store.data[recordKey(done.PartitionKey, done.RowKey)] = done

	pending, err := store.GetPendingSessions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "queued", pending[0].TeamName)

	all, err := store.GetAllSessionRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetTeamNames_SkipsSentinelPartition(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.CreateSession(ctx, "real", 2)
	require.NoError(t, err)

	ghost := domain.NewSession(domain.SentinelPartitionKey, time.Now(), "ghost", 1, 1)
	store.data[recordKey(ghost.PartitionKey, ghost.RowKey)] = ghost

	names, err := store.GetTeamNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"real"}, names)
}

func TestUpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	created, err := store.CreateSession(ctx, "vers", 2)
	require.NoError(t, err)

	require.NoError(t, store.SetSolutionTime(ctx, "vers", 90))

	got, err := store.GetSessionForTeam(ctx, "vers")
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, got.Version)
	assert.True(t, got.Timestamp.After(created.Timestamp) || got.Timestamp.Equal(created.Timestamp))
}
