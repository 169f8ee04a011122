package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	statex "github.com/piyachat/chainflow/agent/state"
)

type queryRequest struct {
	Input     string `json:"input"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type tokenUsage struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type responseMetadata struct {
	TokenUsage   tokenUsage `json:"token_usage"`
	ModelName    string     `json:"model_name"`
	FinishReason string     `json:"finish_reason"`
}

type queryOutput struct {
	Content          string           `json:"content"`
	AgentUsed        string           `json:"agent_used"`
	Error            string           `json:"error,omitempty"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type queryResponse struct {
	Output    queryOutput `json:"output"`
	SessionID string      `json:"session_id"`
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	ctx := r.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newSessionID()
	}

	sctx, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrSessionNotFound) {
			log.Error().Err(err).Str("session_id", sessionID).Msg("session load failed")
			writeError(w, http.StatusInternalServerError, "session store unavailable")
			return
		}
		sctx = statex.NewContext(req.Role, s.refData.Load())
	}

	sctx.LastError = ""
	sctx.AppendHistory(statex.RoleUser, req.Input)

	st, err := s.dispatcher.Handle(ctx, statex.New(req.Input, sctx))
	if err != nil {
		// Both the handler chain and the fallback completion failed. The
		// session keeps the user turn so a retry with the same id resumes
		// the conversation instead of starting over.
		msg := fmt.Sprintf("Error processing request: %s", err)
		log.Error().Err(err).Str("session_id", sessionID).Msg("query processing failed")
		sctx.ClearOutput()
		sctx.LastError = err.Error()
		if saveErr := s.sessions.Save(ctx, sessionID, sctx); saveErr != nil {
			log.Error().Err(saveErr).Str("session_id", sessionID).Msg("session save failed")
		}
		writeJSON(w, http.StatusOK, queryResponse{
			SessionID: sessionID,
			Output: queryOutput{
				Content:   msg,
				AgentUsed: agentUsed(sctx),
				Error:     err.Error(),
				ResponseMetadata: responseMetadata{
					TokenUsage: tokenUsage{
						PromptTokens: estimateTokens(req.Input),
						TotalTokens:  estimateTokens(req.Input),
					},
					ModelName:    s.modelName,
					FinishReason: "error",
				},
			},
		})
		return
	}

	sctx = st.Context
	content := "I'm sorry, there was an error processing your request."
	if len(sctx.Messages) > 0 {
		content = sctx.Messages[len(sctx.Messages)-1].Content
	}
	degraded := sctx.LastError

	sctx.AppendHistory(statex.RoleAssistant, content)
	sctx.ClearOutput()
	if err := s.sessions.Save(ctx, sessionID, sctx); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("session save failed")
	}

	finishReason := "stop"
	if degraded != "" {
		finishReason = "error"
	}
	writeJSON(w, http.StatusOK, queryResponse{
		SessionID: sessionID,
		Output: queryOutput{
			Content:   content,
			AgentUsed: agentUsed(sctx),
			Error:     degraded,
			ResponseMetadata: responseMetadata{
				TokenUsage: tokenUsage{
					CompletionTokens: estimateTokens(content),
					PromptTokens:     estimateTokens(req.Input),
					TotalTokens:      estimateTokens(content) + estimateTokens(req.Input),
				},
				ModelName:    s.modelName,
				FinishReason: finishReason,
			},
		},
	})
}

func (s *Service) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	result := s.orchestrator.Run(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) newSessionID() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("session_%s_%s", s.now().Format("20060102150405"), hex.EncodeToString(buf[:]))
}

func agentUsed(sctx *statex.Context) string {
	if sctx.NextAgent != "" {
		return string(sctx.NextAgent)
	}
	return string(statex.CapCoordinator)
}

// estimateTokens approximates token counts from whitespace-delimited words.
func estimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
