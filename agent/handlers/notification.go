package handlers

import (
	"context"
	"fmt"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// Notification drafts and "sends" alerts to drivers, coordinators, and
// admins. Like the data retriever it is terminal-only.
type Notification struct {
	completer    contractx.Completer
	systemPrompt string
}

func NewNotification(completer contractx.Completer, systemPrompt string) *Notification {
	return &Notification{completer: completer, systemPrompt: systemPrompt}
}

func (n *Notification) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	userContent := fmt.Sprintf(`Based on this information, prepare and send appropriate notifications:

User role: %s
Message content: %s

Please describe what notifications were sent and to whom.`, sctx.Role, st.Input)

	content, err := n.completer.Complete(ctx, n.systemPrompt, nil, userContent)
	if err != nil {
		return nil, fmt.Errorf("%w: notification completion: %v", contractx.ErrModelInvoke, err)
	}

	sctx.AppendOutput(content)

	st.Input = content
	st.Next = statex.CapEnd
	return st, nil
}
