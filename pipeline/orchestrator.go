// Package pipeline runs the deal-prioritization workflow: five strictly
// ordered stages against the warehouse, scoring, and CRM collaborators,
// with per-stage retry and failure policies.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	retryx "github.com/piyachat/chainflow/pkg/retry"
)

const (
	opportunityQuery = "SELECT * FROM sales.opportunities WHERE close_date > CURRENT_DATE"
	summaryTable     = "analytics.deal_priority_summary"
	followUpSubject  = "Follow up on high-priority deal"

	defaultScoringModel = "prod_deal_scoring_v2"
)

// Config tunes a pipeline run.
type Config struct {
	ScoringModel string
	Retry        retryx.Policy
}

// Orchestrator executes the workflow. Stages run sequentially in one task;
// records within a stage are processed in input order.
type Orchestrator struct {
	warehouse Warehouse
	scorer    Scorer
	crm       CRM

	policy       retryx.Policy
	scoringModel string
	now          func() time.Time

	runner compose.Runnable[string, Result]
}

func New(warehouse Warehouse, scorer Scorer, crm CRM, cfg Config) (*Orchestrator, error) {
	if warehouse == nil {
		return nil, errors.New("warehouse client is required")
	}
	if scorer == nil {
		return nil, errors.New("scoring client is required")
	}
	if crm == nil {
		return nil, errors.New("crm client is required")
	}

	policy := cfg.Retry
	if policy.MaxRetries == 0 && policy.BackoffFactor == 0 {
		policy = retryx.Default()
	}
	scoringModel := cfg.ScoringModel
	if scoringModel == "" {
		scoringModel = defaultScoringModel
	}

	o := &Orchestrator{
		warehouse:    warehouse,
		scorer:       scorer,
		crm:          crm,
		policy:       policy,
		scoringModel: scoringModel,
		now:          time.Now,
	}

	runner, err := o.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.runner = runner
	return o, nil
}

// Run executes one full workflow. A fatal stage error short-circuits the
// remaining stages and yields a structured error result, never a partial
// silent success.
func (o *Orchestrator) Run(ctx context.Context) Result {
	log.Info().Msg("starting deal prioritization workflow")

	result, err := o.runner.Invoke(ctx, opportunityQuery)
	if err != nil {
		log.Error().Err(err).Msg("deal prioritization workflow failed")
		return Result{Status: StatusError, Message: err.Error()}
	}

	log.Info().
		Int("opportunities", len(result.Opportunities)).
		Int("tasks", len(result.Tasks)).
		Int("errors", len(result.Errors)).
		Msg("deal prioritization workflow completed")
	return result
}

// runState threads accumulated stage output through the graph.
type runState struct {
	Raw     []Opportunity
	Scored  []Opportunity
	Updated map[string]bool
	Tasks   []string
	Errors  []string
}

func (o *Orchestrator) fetchOpportunities(ctx context.Context, query string) (*runState, error) {
	var rows []Opportunity
	err := o.policy.Do(ctx, "warehouse.query", func(ctx context.Context) error {
		var qErr error
		rows, qErr = o.warehouse.Query(ctx, query)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(rows)).Msg("fetched opportunities")
	return &runState{Raw: rows}, nil
}

// scoreOpportunities enriches the batch. Partial scoring is not permitted:
// any scoring failure, 4xx included, aborts the whole run.
func (o *Orchestrator) scoreOpportunities(ctx context.Context, st *runState) (*runState, error) {
	if len(st.Raw) == 0 {
		st.Scored = nil
		return st, nil
	}

	var scored []Opportunity
	err := o.policy.Do(ctx, "scoring.score", func(ctx context.Context) error {
		var sErr error
		scored, sErr = o.scorer.Score(ctx, o.scoringModel, st.Raw)
		return sErr
	})
	if err != nil {
		return nil, err
	}

	st.Scored = scored
	log.Info().Int("count", len(scored)).Msg("scored opportunities")
	return st, nil
}

// updateRecords pushes scores into the CRM one record at a time. A 4xx for
// a record lands it on the error list; 5xx gets the inline retry loop and
// joins the error list only on exhaustion. This stage never aborts the run.
func (o *Orchestrator) updateRecords(ctx context.Context, st *runState) (*runState, error) {
	st.Updated = make(map[string]bool, len(st.Scored))

	for _, opp := range st.Scored {
		opp := opp
		err := o.policy.Do(ctx, "crm.update", func(ctx context.Context) error {
			return o.crm.UpdateOpportunity(ctx, opp.ID, opp.WinProbability, opp.NextBestProduct)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			st.Errors = append(st.Errors, opp.ID)
			log.Warn().Str("opportunity_id", opp.ID).Err(err).Msg("record update failed, continuing")
			continue
		}
		st.Updated[opp.ID] = true
	}

	return st, nil
}

// createFollowUps files a task for each successfully updated high-priority
// deal. Best effort: failures are logged and the run continues.
func (o *Orchestrator) createFollowUps(ctx context.Context, st *runState) (*runState, error) {
	dueDate := o.now().AddDate(0, 0, 1).Format("2006-01-02")

	for _, opp := range st.Scored {
		if !st.Updated[opp.ID] || !opp.HighPriority() {
			continue
		}
		taskID, err := o.crm.CreateTask(ctx, opp.ID, followUpSubject, dueDate)
		if err != nil {
			log.Warn().Str("opportunity_id", opp.ID).Err(err).Msg("follow-up task creation failed")
			continue
		}
		st.Tasks = append(st.Tasks, taskID)
	}

	return st, nil
}

func (o *Orchestrator) writeSummary(ctx context.Context, st *runState) (*runState, error) {
	err := o.policy.Do(ctx, "warehouse.insert", func(ctx context.Context) error {
		return o.warehouse.Insert(ctx, summaryTable, o.summarize(st))
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (o *Orchestrator) finalize(ctx context.Context, st *runState) (Result, error) {
	return Result{
		Status:        StatusSuccess,
		Opportunities: st.Scored,
		Tasks:         st.Tasks,
		Summary:       o.summarize(st),
		Errors:        st.Errors,
	}, nil
}

// summarize computes the run aggregate: high-priority count over all scored
// opportunities, pipeline value over those that were also updated.
func (o *Orchestrator) summarize(st *runState) SummaryRow {
	row := SummaryRow{RunDate: o.now().Format("2006-01-02")}
	for _, opp := range st.Scored {
		if !opp.HighPriority() {
			continue
		}
		row.HighPriorityCount++
		if st.Updated[opp.ID] {
			row.TotalPipelineValue += opp.Amount
		}
	}
	return row
}
