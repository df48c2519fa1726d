package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpAdapter "github.com/venuekit/sessiontrack/internal/adapters/http"
	"github.com/venuekit/sessiontrack/internal/adapters/memory"
	"github.com/venuekit/sessiontrack/internal/logging"
	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := httpAdapter.NewHandler(memory.NewStore(), logging.NewNop())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func post(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestTeamLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Unknown team is a 404.
	resp := get(t, srv, "/api/sessions/night-owls")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Create.
	resp = post(t, srv, "/api/sessions/add_team?team_name=night-owls&member_count=4")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created bool
	decodeInto(t, resp, &created)
	assert.True(t, created)

	// has_team sees it.
	resp = post(t, srv, "/api/sessions/has_team?team_name=night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var has bool
	decodeInto(t, resp, &has)
	assert.True(t, has)

	// Round-trip the record.
	resp = get(t, srv, "/api/sessions/night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess domain.Session
	decodeInto(t, resp, &sess)
	assert.Equal(t, "night-owls", sess.TeamName)
	assert.Equal(t, 4, sess.MemberCount)
	assert.Zero(t, sess.RoomTime1)
	assert.Zero(t, sess.RoomTime2)
	assert.Zero(t, sess.RoomTime3)

	// Record times and recalculate totals.
	for _, q := range []string{
		"room_number=1&time_in_seconds=100",
		"room_number=2&time_in_seconds=200",
		"room_number=3&time_in_seconds=300",
	} {
		resp = post(t, srv, "/api/sessions/add_room_time?team_name=night-owls&"+q)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = post(t, srv, "/api/sessions/add_solution_time?team_name=night-owls&time_in_seconds=60")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/sessions/get_total_room_time?team_name=night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totalRoom int
	decodeInto(t, resp, &totalRoom)
	assert.Equal(t, 600, totalRoom)

	resp = get(t, srv, "/api/sessions/get_total_session_time?team_name=night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var totalSession int
	decodeInto(t, resp, &totalSession)
	assert.Equal(t, 660, totalSession)

	// Delete and verify.
	resp = get(t, srv, "/api/sessions/delete?team_name=night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted bool
	decodeInto(t, resp, &deleted)
	assert.True(t, deleted)

	resp = post(t, srv, "/api/sessions/has_team?team_name=night-owls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &has)
	assert.False(t, has)
}

func TestListingEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/api/sessions/latestSession")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest *domain.Session
	decodeInto(t, resp, &latest)
	assert.Nil(t, latest, "empty table serializes as null")

	for _, team := range []string{"alpha", "beta"} {
		resp = post(t, srv, "/api/sessions/add_team?team_name="+team+"&member_count=2")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = get(t, srv, "/api/sessions/latestSession")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &latest)
	require.NotNil(t, latest)
	assert.Equal(t, "beta", latest.TeamName)

	resp = get(t, srv, "/api/sessions/pending_teams")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending []domain.Session
	decodeInto(t, resp, &pending)
	require.Len(t, pending, 2)
	assert.Equal(t, "alpha", pending[0].TeamName)
	assert.Equal(t, "beta", pending[1].TeamName)

	resp = get(t, srv, "/api/sessions/allSessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []domain.Session
	decodeInto(t, resp, &all)
	assert.Len(t, all, 2)

	resp = get(t, srv, "/api/sessions/team_names_array")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var names []string
	decodeInto(t, resp, &names)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)

	resp = get(t, srv, "/api/sessions/all_teams_cdl")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cdl string
	decodeInto(t, resp, &cdl)
	assert.Contains(t, []string{"0,alpha,beta", "0,beta,alpha"}, cdl)

	resp = get(t, srv, "/api/sessions/delete_all_sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wiped bool
	decodeInto(t, resp, &wiped)
	assert.True(t, wiped)

	// A second wipe finds nothing and reports false.
	resp = get(t, srv, "/api/sessions/delete_all_sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &wiped)
	assert.False(t, wiped)
}

func TestValidationRejections(t *testing.T) {
	srv := newTestServer(t)

	badRequests := []string{
		"/api/sessions/add_team?team_name=&member_count=4",
		"/api/sessions/add_team?team_name=x&member_count=0",
		"/api/sessions/add_team?team_name=x&member_count=-1",
		"/api/sessions/add_team?team_name=x&member_count=abc",
		"/api/sessions/add_solution_time?team_name=x&time_in_seconds=-5",
		"/api/sessions/add_room_time?team_name=x&room_number=1&time_in_seconds=-5",
		"/api/sessions/has_team?team_name=",
	}
	for _, path := range badRequests {
		resp := post(t, srv, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for %s", path)
	}

	// Unknown room number is rejected before touching the record.
	resp := post(t, srv, "/api/sessions/add_team?team_name=walls&member_count=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "/api/sessions/add_room_time?team_name=walls&room_number=4&time_in_seconds=10")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, srv, "/api/sessions/walls")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess domain.Session
	decodeInto(t, resp, &sess)
	assert.Zero(t, sess.RoomTime1+sess.RoomTime2+sess.RoomTime3)
}

// partialDeleteRepo reports deletes that matched records but left
// some of them behind.
type partialDeleteRepo struct {
	ports.SessionRepository
}

func (partialDeleteRepo) DeleteTeam(ctx context.Context, teamName string, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	return ports.DeleteOutcome{Matched: 2, Deleted: 1, Failed: 1}, nil
}

func (partialDeleteRepo) DeleteAllSessions(ctx context.Context, mode ports.DeleteMode) (ports.DeleteOutcome, error) {
	return ports.DeleteOutcome{Matched: 3, Deleted: 2, Failed: 1}, nil
}

func TestDeleteEndpointsReportFalseOnPartialFailure(t *testing.T) {
	repo := partialDeleteRepo{memory.NewStore()}
	srv := httptest.NewServer(httpAdapter.NewHandler(repo, logging.NewNop()))
	t.Cleanup(srv.Close)

	resp := get(t, srv, "/api/sessions/delete?team_name=anyone")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok bool
	decodeInto(t, resp, &ok)
	assert.False(t, ok, "a delete that left records behind must not report success")

	resp = get(t, srv, "/api/sessions/delete_all_sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &ok)
	assert.False(t, ok, "a wipe that left records behind must not report success")
}

func TestBooleanEndpointsReportFalseOnFailure(t *testing.T) {
	srv := newTestServer(t)

	// Updates against a missing team surface as false, not an error status.
	resp := post(t, srv, "/api/sessions/add_solution_time?team_name=nobody&time_in_seconds=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok bool
	decodeInto(t, resp, &ok)
	assert.False(t, ok)

	resp = get(t, srv, "/api/sessions/delete?team_name=nobody")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &ok)
	assert.False(t, ok)
}
