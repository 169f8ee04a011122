package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// Coordinator is the entry-point handler. It asks the model which specialist
// should take the request, scans the reply for a known capability name, and
// routes there. An unparseable reply routes to the route optimizer.
type Coordinator struct {
	completer    contractx.Completer
	systemPrompt string
}

func NewCoordinator(completer contractx.Completer, systemPrompt string) *Coordinator {
	return &Coordinator{completer: completer, systemPrompt: systemPrompt}
}

func (c *Coordinator) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	userContent := fmt.Sprintf(
		"User role: %s\nUser request: %s\n\nWhich agent should handle this and why?",
		sctx.Role, st.Input,
	)

	content, err := c.completer.Complete(ctx, c.systemPrompt, sctx.RecentHistory(), userContent)
	if err != nil {
		return nil, fmt.Errorf("%w: coordinator completion: %v", contractx.ErrModelInvoke, err)
	}

	next, ok := statex.ParseCapability(content)
	if !ok {
		next = statex.CapRouteOptimizer
	}

	sctx.RoutingReason = content
	sctx.NextAgent = next

	log.Debug().
		Str("next_agent", string(next)).
		Bool("parsed", ok).
		Msg("coordinator routed request")

	st.Next = next
	return st, nil
}
