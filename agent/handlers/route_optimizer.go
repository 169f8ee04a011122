package handlers

import (
	"context"
	"fmt"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// RouteOptimizer plans delivery routes over the session's reference data.
// After answering it may hand off to the data retriever or notification
// handler when the request calls for external data or an outbound message.
type RouteOptimizer struct {
	completer    contractx.Completer
	systemPrompt string
}

func NewRouteOptimizer(completer contractx.Completer, systemPrompt string) *RouteOptimizer {
	return &RouteOptimizer{completer: completer, systemPrompt: systemPrompt}
}

func (r *RouteOptimizer) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	userContent := fmt.Sprintf(`User role: %s
User request: %s

Available data:
- Orders: %d delivery orders
- Vehicles: %d vehicles in fleet
- Weather: Current conditions available
- Traffic: Real-time traffic data available

Please respond with optimized routes or relevant information.`,
		sctx.Role, st.Input,
		len(sctx.RefData.Orders), len(sctx.RefData.Vehicles),
	)

	content, err := r.completer.Complete(ctx, r.systemPrompt, sctx.RecentHistory(), userContent)
	if err != nil {
		return nil, fmt.Errorf("%w: route optimizer completion: %v", contractx.ErrModelInvoke, err)
	}

	return finishOrHandOff(st, content), nil
}
