package state

import (
	"strings"
	"time"

	refdatax "github.com/piyachat/chainflow/refdata"
)

// Capability names one unit of routing behaviour. The set is closed: the
// dispatcher matches it exhaustively and treats anything else as a routing
// error instead of a silent fallthrough.
type Capability string

const (
	CapCoordinator    Capability = "coordinator"
	CapRouteOptimizer Capability = "route_optimizer"
	CapFleetMonitor   Capability = "fleet_monitor"
	CapDataRetriever  Capability = "data_retriever"
	CapNotification   Capability = "notification"
	CapDealPipeline   Capability = "deal_pipeline"

	// CapEnd is the terminal sentinel: the chain is finished and
	// Context.Messages holds the assistant-visible output.
	CapEnd Capability = "end"
)

// ParseCapability maps free text to a known capability. It scans for the
// capability name anywhere in the text, so the coordinator can feed it a
// whole completion ("I would route this to fleet_monitor because..."). The
// boolean is false when no known name is present.
func ParseCapability(text string) (Capability, bool) {
	lowered := strings.ToLower(text)
	for _, c := range []Capability{
		CapRouteOptimizer,
		CapFleetMonitor,
		CapDataRetriever,
		CapNotification,
		CapDealPipeline,
	} {
		if strings.Contains(lowered, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Message is one conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryWindow bounds how much conversation history handlers feed to the
// completion model.
const HistoryWindow = 5

// Context is the per-session state bag threaded through every handler.
// ConversationHistory is the append-only audit trail; Messages is the output
// buffer the server drains (and clears) after each top-level request.
type Context struct {
	Role                string            `json:"role"`
	ConversationHistory []Message         `json:"conversation_history"`
	Messages            []Message         `json:"messages"`
	RefData             refdatax.Snapshot `json:"ref_data"`

	// Routing metadata from the last coordinator decision.
	RoutingReason string     `json:"routing_reason,omitempty"`
	NextAgent     Capability `json:"next_agent,omitempty"`

	// Result of the most recent deal-prioritization run, kept for
	// follow-up questions within the session.
	WorkflowResult any `json:"workflow_result,omitempty"`

	// RetrievedData is the latest external-data fetch, timestamped.
	RetrievedData *RetrievedData `json:"retrieved_data,omitempty"`

	// LastError records the handler failure behind a degraded reply for
	// the current request. Cleared with the output buffer.
	LastError string `json:"last_error,omitempty"`
}

// RetrievedData captures one data-retriever result.
type RetrievedData struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
}

// NewContext builds a fresh session context for the given caller role.
func NewContext(role string, refData refdatax.Snapshot) *Context {
	if strings.TrimSpace(role) == "" {
		role = "admin"
	}
	return &Context{
		Role:    role,
		RefData: refData,
	}
}

// AppendHistory adds an entry to the audit trail.
func (c *Context) AppendHistory(role, content string) {
	c.ConversationHistory = append(c.ConversationHistory, Message{Role: role, Content: content})
}

// AppendOutput buffers an assistant-visible message for the current request.
func (c *Context) AppendOutput(content string) {
	c.Messages = append(c.Messages, Message{Role: RoleAssistant, Content: content})
}

// RecentHistory returns up to HistoryWindow of the newest history entries.
func (c *Context) RecentHistory() []Message {
	if len(c.ConversationHistory) <= HistoryWindow {
		return c.ConversationHistory
	}
	return c.ConversationHistory[len(c.ConversationHistory)-HistoryWindow:]
}

// ClearOutput drops the per-request output buffer. The conversation history
// is never cleared.
func (c *Context) ClearOutput() {
	c.Messages = nil
	c.LastError = ""
}

// State is the unit of work passed between handlers: the text being
// processed, the session context, and the declared successor capability.
type State struct {
	Input   string
	Context *Context
	Next    Capability
}

// New builds the initial state for one top-level request. The first hop is
// always the coordinator.
func New(input string, sctx *Context) *State {
	return &State{
		Input:   input,
		Context: sctx,
		Next:    CapCoordinator,
	}
}
