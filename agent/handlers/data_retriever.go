package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/piyachat/chainflow/agent/contract"
	statex "github.com/piyachat/chainflow/agent/state"
)

// DataRetriever formats weather and traffic data for the current request.
// It is a side-channel handler: it always terminates the chain, never
// re-enters the coordinator.
type DataRetriever struct {
	completer    contractx.Completer
	systemPrompt string
	now          func() time.Time
}

func NewDataRetriever(completer contractx.Completer, systemPrompt string) *DataRetriever {
	return &DataRetriever{completer: completer, systemPrompt: systemPrompt, now: time.Now}
}

func (d *DataRetriever) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	weather, err := json.MarshalIndent(sctx.RefData.Weather, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal weather data: %v", contractx.ErrValidation, err)
	}
	traffic, err := json.MarshalIndent(sctx.RefData.Traffic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal traffic data: %v", contractx.ErrValidation, err)
	}

	userContent := fmt.Sprintf(`I need the following data based on this request: %s

Available data:
- Weather: %s
- Traffic: %s

Please retrieve and format the relevant information.`, st.Input, weather, traffic)

	content, err := d.completer.Complete(ctx, d.systemPrompt, nil, userContent)
	if err != nil {
		return nil, fmt.Errorf("%w: data retriever completion: %v", contractx.ErrModelInvoke, err)
	}

	sctx.RetrievedData = &statex.RetrievedData{
		Timestamp: d.now(),
		Content:   content,
		Type:      retrievalType(st.Input),
	}
	sctx.AppendOutput(content)

	st.Input = content
	st.Next = statex.CapEnd
	return st, nil
}

func retrievalType(input string) string {
	lowered := strings.ToLower(input)
	switch {
	case strings.Contains(lowered, "weather"):
		return "weather"
	case strings.Contains(lowered, "traffic"):
		return "traffic"
	default:
		return "general"
	}
}
