package contract

import (
	"context"

	statex "github.com/piyachat/chainflow/agent/state"
)

// Handler encapsulates one capability. It returns an updated state whose
// Next field is either a known successor capability or state.CapEnd.
//
// Handlers must confine their writes to the conversation history and the
// output buffer; they never touch unrelated session keys. A handler that
// cannot complete returns an error and lets the dispatcher degrade.
type Handler interface {
	Process(ctx context.Context, st *statex.State) (*statex.State, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, st *statex.State) (*statex.State, error)

func (f HandlerFunc) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	return f(ctx, st)
}

// Completer is the text-completion capability handlers talk to.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []statex.Message, userContent string) (string, error)
}
