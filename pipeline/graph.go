package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

// compileRunGraph assembles the fixed stage chain. There is no branching:
// a stage error aborts the graph, which Run translates to an error result.
func (o *Orchestrator) compileRunGraph(ctx context.Context) (compose.Runnable[string, Result], error) {
	graph := compose.NewGraph[string, Result]()

	if err := graph.AddLambdaNode("fetch_opportunities",
		compose.InvokableLambda(o.fetchOpportunities),
	); err != nil {
		return nil, fmt.Errorf("add node fetch_opportunities: %w", err)
	}
	if err := graph.AddLambdaNode("score_opportunities",
		compose.InvokableLambda(o.scoreOpportunities),
	); err != nil {
		return nil, fmt.Errorf("add node score_opportunities: %w", err)
	}
	if err := graph.AddLambdaNode("update_records",
		compose.InvokableLambda(o.updateRecords),
	); err != nil {
		return nil, fmt.Errorf("add node update_records: %w", err)
	}
	if err := graph.AddLambdaNode("create_follow_ups",
		compose.InvokableLambda(o.createFollowUps),
	); err != nil {
		return nil, fmt.Errorf("add node create_follow_ups: %w", err)
	}
	if err := graph.AddLambdaNode("write_summary",
		compose.InvokableLambda(o.writeSummary),
	); err != nil {
		return nil, fmt.Errorf("add node write_summary: %w", err)
	}
	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(o.finalize),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	edges := [][2]string{
		{compose.START, "fetch_opportunities"},
		{"fetch_opportunities", "score_opportunities"},
		{"score_opportunities", "update_records"},
		{"update_records", "create_follow_ups"},
		{"create_follow_ups", "write_summary"},
		{"write_summary", "finalize"},
		{"finalize", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.run"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline graph: %w", err)
	}
	return runner, nil
}
