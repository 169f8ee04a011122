package handlers

import (
	"strings"

	statex "github.com/piyachat/chainflow/agent/state"
)

// successorFor decides whether a specialist hands off after completing its
// own work. The keywords are matched against the ORIGINAL user input, not
// the model output, so the model cannot steer routing.
func successorFor(input string) statex.Capability {
	lowered := strings.ToLower(input)
	switch {
	case strings.Contains(lowered, "weather"), strings.Contains(lowered, "traffic"):
		return statex.CapDataRetriever
	case strings.Contains(lowered, "notify"),
		strings.Contains(lowered, "alert"),
		strings.Contains(lowered, "send"):
		return statex.CapNotification
	default:
		return statex.CapEnd
	}
}

// finishOrHandOff applies the shared tail of every specialist: a terminal
// hop buffers the completion as output, a handoff forwards it as the next
// handler's input.
func finishOrHandOff(st *statex.State, content string) *statex.State {
	next := successorFor(st.Input)
	if next == statex.CapEnd {
		st.Context.AppendOutput(content)
	} else {
		st.Input = content
	}
	st.Next = next
	return st
}
