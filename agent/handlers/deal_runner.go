package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	statex "github.com/piyachat/chainflow/agent/state"
	"github.com/piyachat/chainflow/pipeline"
)

// pipelineTrigger is the phrase that starts a prioritization run. Anything
// else addressed to this handler gets usage guidance instead.
const pipelineTrigger = "run q2 prioritization"

// WorkflowRunner runs one deal-prioritization pass. Failures are reported
// inside the Result, never as a Go error, so a failed run still produces a
// conversational reply.
type WorkflowRunner interface {
	Run(ctx context.Context) pipeline.Result
}

// DealRunner bridges the conversational side to the deal-prioritization
// workflow. It is deterministic: no model call is involved.
type DealRunner struct {
	runner WorkflowRunner
}

func NewDealRunner(runner WorkflowRunner) *DealRunner {
	return &DealRunner{runner: runner}
}

func (d *DealRunner) Process(ctx context.Context, st *statex.State) (*statex.State, error) {
	sctx := st.Context

	if !strings.Contains(strings.ToLower(st.Input), pipelineTrigger) {
		sctx.AppendOutput(fmt.Sprintf(
			"I can run the deal prioritization workflow for you. Say %q to start it.",
			pipelineTrigger,
		))
		st.Next = statex.CapEnd
		return st, nil
	}

	result := d.runner.Run(ctx)
	sctx.WorkflowResult = result

	if result.Status == pipeline.StatusSuccess {
		reply := fmt.Sprintf(
			"Deal prioritization completed: %d opportunities processed, %d high-priority, total pipeline value $%.2f.",
			len(result.Opportunities),
			result.Summary.HighPriorityCount,
			result.Summary.TotalPipelineValue,
		)
		if len(result.Errors) > 0 {
			reply += fmt.Sprintf(" %d record(s) could not be updated: %s.",
				len(result.Errors), strings.Join(result.Errors, ", "))
		}
		sctx.AppendOutput(reply)
	} else {
		log.Warn().Str("message", result.Message).Msg("deal prioritization run failed")
		sctx.AppendOutput(fmt.Sprintf("Deal prioritization failed: %s", result.Message))
	}

	st.Next = statex.CapEnd
	return st, nil
}
