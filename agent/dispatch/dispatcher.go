package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/piyachat/chainflow/agent/contract"
	promptx "github.com/piyachat/chainflow/agent/prompt"
	statex "github.com/piyachat/chainflow/agent/state"
)

// HopLimit bounds one request's handler chain. The longest legal chain is
// coordinator -> specialist -> side-channel -> end, so anything past four
// hops is a routing loop, not a long conversation.
const HopLimit = 4

// Dispatcher walks a state through handlers until one declares the chain
// finished. The capability set is closed: every routable capability must be
// registered at construction time.
type Dispatcher struct {
	handlers map[statex.Capability]contractx.Handler
	fallback contractx.Completer
	prompts  promptx.PromptSet
}

// New builds a dispatcher over a complete handler registry. The fallback
// completer serves degraded replies when a handler fails mid-chain.
func New(handlers map[statex.Capability]contractx.Handler, fallback contractx.Completer, prompts promptx.PromptSet) (*Dispatcher, error) {
	required := []statex.Capability{
		statex.CapCoordinator,
		statex.CapRouteOptimizer,
		statex.CapFleetMonitor,
		statex.CapDataRetriever,
		statex.CapNotification,
		statex.CapDealPipeline,
	}
	for _, c := range required {
		if _, ok := handlers[c]; !ok {
			return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, c)
		}
	}
	return &Dispatcher{handlers: handlers, fallback: fallback, prompts: prompts}, nil
}

// Handle runs the chain for one request. The returned state carries the
// buffered assistant output; a degraded reply records the underlying
// handler failure in Context.LastError instead of returning it.
func (d *Dispatcher) Handle(ctx context.Context, st *statex.State) (*statex.State, error) {
	for hops := 0; ; hops++ {
		if st.Next == statex.CapEnd {
			return st, nil
		}
		if hops >= HopLimit {
			return nil, fmt.Errorf("%w: %d hops, last capability %s", contractx.ErrHopLimit, hops, st.Next)
		}

		handler, ok := d.handlers[st.Next]
		if !ok {
			return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, st.Next)
		}

		next, err := handler.Process(ctx, st)
		if err != nil {
			return d.degrade(ctx, st, err)
		}
		st = next
	}
}

// degrade answers with a context-light completion after a handler failure.
// The original error is preserved on the session for diagnostics. If the
// fallback itself fails, both errors surface to the caller.
func (d *Dispatcher) degrade(ctx context.Context, st *statex.State, handlerErr error) (*statex.State, error) {
	log.Error().Err(handlerErr).Str("capability", string(st.Next)).Msg("handler failed, using fallback completion")

	systemPrompt := fmt.Sprintf(d.prompts.Fallback, st.Context.Role)
	content, err := d.fallback.Complete(ctx, systemPrompt, nil, st.Input)
	if err != nil {
		return nil, fmt.Errorf("fallback completion failed (%v) after handler error: %w", err, handlerErr)
	}

	st.Context.AppendOutput(content)
	st.Context.LastError = handlerErr.Error()
	st.Next = statex.CapEnd
	return st, nil
}
