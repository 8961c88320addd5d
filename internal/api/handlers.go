package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/protocol"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/roster"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frames.Frame())
}

// playerResponse is one entry of GET /v1/players.
type playerResponse struct {
	roster.PlayerRecord
	Result    string `json:"result,omitempty"`
	HeartRate int    `json:"heart_rate,omitempty"`
}

func (s *Server) player(rec roster.PlayerRecord) playerResponse {
	p := playerResponse{PlayerRecord: rec}
	if rec.Completed() {
		p.Result = rec.ResultText()
	}
	if s.heartRates != nil {
		p.HeartRate = s.heartRates.Latest()[rec.PlayerID].BPM
	}
	return p
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	records := s.roster.Records()
	out := make([]playerResponse, len(records))
	for i, rec := range records {
		out[i] = s.player(rec)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	rec, err := s.roster.Record(id)
	if errors.Is(err, roster.ErrUnknownPlayer) {
		s.writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to get player")
		return
	}
	s.writeJSON(w, http.StatusOK, s.player(rec))
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.roster.Stats())
}

type levelResponse struct {
	protocol.Level
	RepetitionSeconds float64 `json:"repetition_s"`
	CumulativeMeters  float64 `json:"cumulative_m"`
}

// protocolResponse is the JSON response for GET /v1/protocol.
type protocolResponse struct {
	ShuttleMeters float64         `json:"shuttle_m"`
	TotalShuttles int             `json:"total_shuttles"`
	TotalSeconds  float64         `json:"total_s"`
	Levels        []levelResponse `json:"levels"`
}

func (s *Server) handleGetProtocol(w http.ResponseWriter, r *http.Request) {
	resp := protocolResponse{
		ShuttleMeters: protocol.ShuttleMeters,
		TotalShuttles: protocol.TotalShuttles(),
		TotalSeconds:  protocol.TotalDuration().Seconds(),
	}
	for _, l := range protocol.Levels() {
		d, _ := protocol.DurationForSpeed(l.SpeedKmh)
		dist, _ := protocol.DistanceAt(l.Number, l.Shuttles)
		resp.Levels = append(resp.Levels, levelResponse{
			Level:             l,
			RepetitionSeconds: d.Seconds(),
			CumulativeMeters:  dist,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "no results store configured")
		return
	}
	sessions, err := s.store.Sessions(r.Context())
	if err != nil {
		s.logger.Printf("API: List sessions: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": sessions})
}

func (s *Server) handleGetSessionResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotFound, "no results store configured")
		return
	}
	res, err := s.store.ListSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Printf("API: List session results: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if len(res) == 0 {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("API: Encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
