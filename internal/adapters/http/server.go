// Package http exposes the session repository over the admin JSON API.
// Controllers stay thin: parse and validate parameters, call one
// repository operation, serialize the result.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venuekit/sessiontrack/pkg/domain"
	"github.com/venuekit/sessiontrack/pkg/ports"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Server holds the handler dependencies.
type Server struct {
	repo   ports.SessionRepository
	logger *slog.Logger
}

// NewHandler builds the HTTP handler for the session API.
func NewHandler(repo ports.SessionRepository, logger *slog.Logger) http.Handler {
	s := &Server{repo: repo, logger: logger}
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/pending_teams", s.getPendingTeams)
		r.Get("/latestSession", s.getLatestSession)
		r.Get("/allSessions", s.getAllSessions)
		r.Get("/team_names_array", s.getTeamNames)
		r.Get("/all_teams_cdl", s.getAllTeamsCDL)
		r.Get("/delete_all_sessions", s.deleteAllSessions)
		r.Get("/delete", s.deleteTeam)
		r.Get("/get_total_room_time", s.getTotalRoomTime)
		r.Get("/get_total_session_time", s.getTotalSessionTime)
		r.Post("/add_team", s.addTeam)
		r.Post("/add_solution_time", s.addSolutionTime)
		r.Post("/add_room_time", s.addRoomTime)
		r.Post("/has_team", s.hasTeam)
		r.Get("/{team_name}", s.getSession)
	})

	return r
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>sessiontrack API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// writeBool serializes the boolean-outcome contract: internal
// repository failures become false, not an error status.
func (s *Server) writeBool(w http.ResponseWriter, op string, err error) {
	if err != nil {
		s.logger.Warn("operation reported failure", "op", op, "err", err)
		s.writeJSON(w, http.StatusOK, false)
		return
	}
	s.writeJSON(w, http.StatusOK, true)
}

func intQuery(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0, false
	}
	return v, true
}

// GET /api/sessions/{team_name}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	teamName := chi.URLParam(r, "team_name")

	sess, err := s.repo.GetSessionForTeam(r.Context(), teamName)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "team not found", http.StatusNotFound)
			return
		}
		s.logger.Error("get session failed", "team", teamName, "err", err)
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// GET /api/sessions/pending_teams
func (s *Server) getPendingTeams(w http.ResponseWriter, r *http.Request) {
	pending, err := s.repo.GetPendingSessions(r.Context())
	if err != nil {
		s.logger.Error("pending sessions failed", "err", err)
		http.Error(w, "pending sessions lookup failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, pending)
}

// GET /api/sessions/latestSession
func (s *Server) getLatestSession(w http.ResponseWriter, r *http.Request) {
	latest, err := s.repo.GetLastSessionCreated(r.Context())
	if err != nil {
		s.logger.Error("latest session failed", "err", err)
		http.Error(w, "latest session lookup failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, latest)
}

// GET /api/sessions/allSessions
func (s *Server) getAllSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.GetAllSessionRecords(r.Context())
	if err != nil {
		s.logger.Error("all sessions failed", "err", err)
		http.Error(w, "session listing failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

// GET /api/sessions/team_names_array
func (s *Server) getTeamNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.repo.GetTeamNames(r.Context())
	if err != nil {
		s.logger.Error("team names failed", "err", err)
		http.Error(w, "team name listing failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

// GET /api/sessions/all_teams_cdl
func (s *Server) getAllTeamsCDL(w http.ResponseWriter, r *http.Request) {
	cdl, err := s.repo.GetAllTeamsCDL(r.Context())
	if err != nil {
		s.logger.Error("teams cdl failed", "err", err)
		http.Error(w, "team name listing failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, cdl)
}

// GET /api/sessions/delete_all_sessions
func (s *Server) deleteAllSessions(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.repo.DeleteAllSessions(r.Context(), ports.DeleteBestEffort)
	if err != nil || outcome.Failed > 0 {
		s.logger.Warn("delete all sessions incomplete", "outcome", outcome, "err", err)
		s.writeJSON(w, http.StatusOK, false)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome.Deleted > 0)
}

// GET /api/sessions/delete?team_name=
func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")

	outcome, err := s.repo.DeleteTeam(r.Context(), teamName, ports.DeleteBestEffort)
	if err != nil {
		s.logger.Warn("delete team failed", "team", teamName, "err", err)
		s.writeJSON(w, http.StatusOK, false)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome.Deleted > 0 && outcome.Failed == 0)
}

// GET /api/sessions/get_total_room_time?team_name=
func (s *Server) getTotalRoomTime(w http.ResponseWriter, r *http.Request) {
	s.respondTotal(w, r, s.repo.CalculateTotalRoomTime)
}

// GET /api/sessions/get_total_session_time?team_name=
func (s *Server) getTotalSessionTime(w http.ResponseWriter, r *http.Request) {
	s.respondTotal(w, r, s.repo.CalculateTotalSessionTime)
}

func (s *Server) respondTotal(w http.ResponseWriter, r *http.Request, calc func(context.Context, string) (int, error)) {
	teamName := r.URL.Query().Get("team_name")

	total, err := calc(r.Context(), teamName)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "team not found", http.StatusNotFound)
			return
		}
		s.logger.Error("total recalculation failed", "team", teamName, "err", err)
		http.Error(w, "total recalculation failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, total)
}

// POST /api/sessions/add_team?team_name=&member_count=
func (s *Server) addTeam(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")
	memberCount, ok := intQuery(r, "member_count")

	if teamName == "" || !ok || memberCount <= 0 {
		http.Error(w, "team_name and a positive member_count are required", http.StatusBadRequest)
		return
	}

	_, err := s.repo.CreateSession(r.Context(), teamName, memberCount)
	s.writeBool(w, "add_team", err)
}

// POST /api/sessions/add_solution_time?team_name=&time_in_seconds=
func (s *Server) addSolutionTime(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")
	seconds, ok := intQuery(r, "time_in_seconds")

	if !ok || seconds < 0 {
		http.Error(w, "time_in_seconds must be a non-negative integer", http.StatusBadRequest)
		return
	}

	err := s.repo.SetSolutionTime(r.Context(), teamName, seconds)
	s.writeBool(w, "add_solution_time", err)
}

// POST /api/sessions/add_room_time?team_name=&room_number=&time_in_seconds=
func (s *Server) addRoomTime(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")
	room, roomOK := intQuery(r, "room_number")
	seconds, secondsOK := intQuery(r, "time_in_seconds")

	if !secondsOK || seconds < 0 {
		http.Error(w, "time_in_seconds must be a non-negative integer", http.StatusBadRequest)
		return
	}
	if !roomOK {
		http.Error(w, "room_number must be an integer", http.StatusBadRequest)
		return
	}

	err := s.repo.SetRoomTime(r.Context(), teamName, room, seconds)
	if domain.IsValidation(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeBool(w, "add_room_time", err)
}

// POST /api/sessions/has_team?team_name=
func (s *Server) hasTeam(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")
	if teamName == "" {
		http.Error(w, "team_name is required", http.StatusBadRequest)
		return
	}

	ok, err := s.repo.ContainsSessionForTeam(r.Context(), teamName)
	if err != nil {
		s.logger.Warn("has team failed", "team", teamName, "err", err)
		s.writeJSON(w, http.StatusOK, false)
		return
	}
	s.writeJSON(w, http.StatusOK, ok)
}
