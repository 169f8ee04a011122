// Package crm is the mocked CRM: opportunity field updates and follow-up
// task creation, stored in process memory.
package crm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type OpportunityUpdate struct {
	WinProbability  float64   `json:"winProbability"`
	NextBestProduct string    `json:"nextBestProduct"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Task struct {
	SubjectEntityID string    `json:"subjectEntityId"`
	Subject         string    `json:"subject"`
	DueDate         string    `json:"dueDate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Service is the CRM mock.
type Service struct {
	mu            sync.Mutex
	opportunities map[string]OpportunityUpdate
	tasks         map[string]Task
}

func NewService() *Service {
	return &Service{
		opportunities: make(map[string]OpportunityUpdate),
		tasks:         make(map[string]Task),
	}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Patch("/crm/opportunity/{id}", s.handleUpdateOpportunity)
	r.Post("/crm/task", s.handleCreateTask)
}

type updateRequest struct {
	WinProbability  float64 `json:"winProbability"`
	NextBestProduct string  `json:"nextBestProduct"`
}

func (s *Service) handleUpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "opportunity id is required")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update request: "+err.Error())
		return
	}

	s.mu.Lock()
	s.opportunities[id] = OpportunityUpdate{
		WinProbability:  req.WinProbability,
		NextBestProduct: req.NextBestProduct,
		UpdatedAt:       time.Now(),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "updated": true})
}

type taskRequest struct {
	SubjectEntityID string `json:"subjectEntityId"`
	Subject         string `json:"subject"`
	DueDate         string `json:"dueDate"`
}

func (s *Service) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task request: "+err.Error())
		return
	}
	if req.SubjectEntityID == "" {
		writeError(w, http.StatusBadRequest, "subjectEntityId is required")
		return
	}

	s.mu.Lock()
	taskID := fmt.Sprintf("task_%03d", len(s.tasks)+1)
	s.tasks[taskID] = Task{
		SubjectEntityID: req.SubjectEntityID,
		Subject:         req.Subject,
		DueDate:         req.DueDate,
		CreatedAt:       time.Now(),
	}
	s.mu.Unlock()

	log.Debug().Str("task_id", taskID).Str("subject_entity", req.SubjectEntityID).Msg("follow-up task created")
	writeJSON(w, http.StatusOK, map[string]any{"id": taskID, "created": true})
}

// Opportunities returns a copy of all recorded updates, for debugging.
func (s *Service) Opportunities() map[string]OpportunityUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]OpportunityUpdate, len(s.opportunities))
	for k, v := range s.opportunities {
		out[k] = v
	}
	return out
}

// Tasks returns a copy of all created tasks, for debugging.
func (s *Service) Tasks() map[string]Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Task, len(s.tasks))
	for k, v := range s.tasks {
		out[k] = v
	}
	return out
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
