package scoring

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/piyachat/chainflow/pipeline"
)

// Service exposes the scorer as the mocked scoring endpoint.
type Service struct {
	scorer *Scorer
}

func NewService(scorer *Scorer) *Service {
	return &Service{scorer: scorer}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/score", s.handleScore)
}

type scoreRequest struct {
	Model string                 `json:"model"`
	Data  []pipeline.Opportunity `json:"data"`
}

type scoreResponse struct {
	Scored []pipeline.Opportunity `json:"scored"`
}

func (s *Service) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid score request: "+err.Error())
		return
	}

	log.Debug().Str("model", req.Model).Int("records", len(req.Data)).Msg("scoring batch")
	writeJSON(w, http.StatusOK, scoreResponse{Scored: s.scorer.ScoreAll(req.Data)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
