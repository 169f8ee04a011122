package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	retryx "github.com/piyachat/chainflow/pkg/retry"
)

func fastPolicy() retryx.Policy {
	return retryx.Policy{
		MaxRetries:    2,
		BackoffFactor: 1.5,
		Sleep:         func(ctx context.Context, d time.Duration) error { return nil },
	}
}

type fakeWarehouse struct {
	rows     []Opportunity
	queryErr []error // one per call, nil-padded
	queries  int

	inserted  []SummaryRow
	tables    []string
	insertErr error
}

func (f *fakeWarehouse) Query(ctx context.Context, sql string) ([]Opportunity, error) {
	call := f.queries
	f.queries++
	if call < len(f.queryErr) && f.queryErr[call] != nil {
		return nil, f.queryErr[call]
	}
	return f.rows, nil
}

func (f *fakeWarehouse) Insert(ctx context.Context, table string, row SummaryRow) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.tables = append(f.tables, table)
	f.inserted = append(f.inserted, row)
	return nil
}

type fakeScorer struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, model string, opportunities []Opportunity) ([]Opportunity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	scored := make([]Opportunity, len(opportunities))
	for i, opp := range opportunities {
		opp.WinProbability = f.scores[opp.ID]
		opp.NextBestProduct = "Analytics Suite"
		scored[i] = opp
	}
	return scored, nil
}

type fakeCRM struct {
	updateErrs map[string]error
	updates    []string
	taskErr    error
	tasks      []string
}

func (f *fakeCRM) UpdateOpportunity(ctx context.Context, id string, winProbability float64, nextBestProduct string) error {
	if err := f.updateErrs[id]; err != nil {
		return err
	}
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeCRM) CreateTask(ctx context.Context, subjectEntityID, subject, dueDate string) (string, error) {
	if f.taskErr != nil {
		return "", f.taskErr
	}
	id := fmt.Sprintf("task_%03d", len(f.tasks)+1)
	f.tasks = append(f.tasks, subjectEntityID)
	return id, nil
}

func opportunities(n int) []Opportunity {
	opps := make([]Opportunity, n)
	for i := range opps {
		opps[i] = Opportunity{
			ID:       fmt.Sprintf("opp_%03d", i+1),
			Amount:   float64((i + 1) * 100000),
			Industry: "Technology",
		}
	}
	return opps
}

func newTestOrchestrator(t *testing.T, wh *fakeWarehouse, sc *fakeScorer, crm *fakeCRM) *Orchestrator {
	t.Helper()
	o, err := New(wh, sc, crm, Config{Retry: fastPolicy()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{rows: opportunities(3)}
	sc := &fakeScorer{scores: map[string]float64{
		"opp_001": 0.85,
		"opp_002": 0.42,
		"opp_003": 0.9,
	}}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", result.Status, result.Message)
	}
	if len(result.Opportunities) != 3 {
		t.Fatalf("expected 3 scored opportunities, got %d", len(result.Opportunities))
	}
	if len(crm.updates) != 3 {
		t.Fatalf("expected 3 updates, got %v", crm.updates)
	}
	// Follow-up tasks only for the two high-priority deals.
	if len(result.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %v", result.Tasks)
	}
	if result.Summary.HighPriorityCount != 2 {
		t.Fatalf("expected 2 high-priority deals, got %d", result.Summary.HighPriorityCount)
	}
	if result.Summary.TotalPipelineValue != 100000+300000 {
		t.Fatalf("unexpected pipeline value: %v", result.Summary.TotalPipelineValue)
	}
	if len(wh.inserted) != 1 || wh.tables[0] != "analytics.deal_priority_summary" {
		t.Fatalf("expected one summary insert, got %v", wh.tables)
	}
	if wh.inserted[0].RunDate != time.Now().Format("2006-01-02") {
		t.Fatalf("unexpected run date: %s", wh.inserted[0].RunDate)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no record errors, got %v", result.Errors)
	}
}

func TestRunAbortsWhenScoringFails(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{rows: opportunities(2)}
	sc := &fakeScorer{err: retryx.NewStatusError("scoring.score", 400)}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if sc.calls != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", sc.calls)
	}
	if len(crm.updates) != 0 {
		t.Fatalf("no CRM update may happen after a scoring abort, got %v", crm.updates)
	}
	if len(wh.inserted) != 0 {
		t.Fatalf("no summary may be written after a scoring abort, got %v", wh.inserted)
	}
}

func TestRunRetriesScoringServerErrors(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{rows: opportunities(1)}
	sc := &fakeScorer{err: retryx.NewStatusError("scoring.score", 503)}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if sc.calls != 3 {
		t.Fatalf("expected 3 attempts for a persistent 5xx, got %d", sc.calls)
	}
}

func TestRunRetriesFetch(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{
		rows:     opportunities(1),
		queryErr: []error{retryx.NewStatusError("warehouse.query", 502)},
	}
	sc := &fakeScorer{scores: map[string]float64{"opp_001": 0.5}}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusSuccess {
		t.Fatalf("expected recovery after transient fetch failure, got %s: %s", result.Status, result.Message)
	}
	if wh.queries != 2 {
		t.Fatalf("expected 2 query attempts, got %d", wh.queries)
	}
}

func TestRunContinuesPastRecordUpdateFailure(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{rows: opportunities(5)}
	scores := map[string]float64{
		"opp_001": 0.85,
		"opp_002": 0.85,
		"opp_003": 0.3,
		"opp_004": 0.85,
		"opp_005": 0.6,
	}
	sc := &fakeScorer{scores: scores}
	crm := &fakeCRM{updateErrs: map[string]error{
		"opp_002": retryx.NewStatusError("crm.update", 404),
	}}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusSuccess {
		t.Fatalf("a record failure must not fail the run, got %s: %s", result.Status, result.Message)
	}
	if len(crm.updates) != 4 {
		t.Fatalf("expected 4 successful updates, got %v", crm.updates)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "opp_002" {
		t.Fatalf("expected opp_002 on the error list, got %v", result.Errors)
	}
	// Follow-ups only for updated high-priority deals: opp_001 and opp_004.
	if len(crm.tasks) != 2 || crm.tasks[0] != "opp_001" || crm.tasks[1] != "opp_004" {
		t.Fatalf("unexpected follow-up targets: %v", crm.tasks)
	}
	// The failed record still counts as high priority, but its amount stays
	// out of the updated pipeline value.
	if result.Summary.HighPriorityCount != 3 {
		t.Fatalf("expected 3 high-priority deals, got %d", result.Summary.HighPriorityCount)
	}
	if result.Summary.TotalPipelineValue != 100000+400000 {
		t.Fatalf("unexpected pipeline value: %v", result.Summary.TotalPipelineValue)
	}
	if len(wh.inserted) != 1 {
		t.Fatalf("summary must still be written, got %d inserts", len(wh.inserted))
	}
}

func TestRunFollowUpFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{rows: opportunities(1)}
	sc := &fakeScorer{scores: map[string]float64{"opp_001": 0.9}}
	crm := &fakeCRM{taskErr: retryx.NewStatusError("crm.task", 500)}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusSuccess {
		t.Fatalf("task failure must not fail the run, got %s: %s", result.Status, result.Message)
	}
	if len(result.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %v", result.Tasks)
	}
	if len(wh.inserted) != 1 {
		t.Fatalf("summary must still be written, got %d inserts", len(wh.inserted))
	}
}

func TestRunEmptyFetchStillWritesSummary(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{}
	sc := &fakeScorer{}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusSuccess {
		t.Fatalf("expected success on empty fetch, got %s: %s", result.Status, result.Message)
	}
	if sc.calls != 0 {
		t.Fatalf("scoring must be skipped on an empty batch, got %d calls", sc.calls)
	}
	if len(wh.inserted) != 1 || wh.inserted[0].HighPriorityCount != 0 || wh.inserted[0].TotalPipelineValue != 0 {
		t.Fatalf("expected a zero summary row, got %+v", wh.inserted)
	}
}

func TestRunFailsWhenSummaryWriteFails(t *testing.T) {
	t.Parallel()

	wh := &fakeWarehouse{
		rows:      opportunities(1),
		insertErr: retryx.NewStatusError("warehouse.insert", 400),
	}
	sc := &fakeScorer{scores: map[string]float64{"opp_001": 0.5}}
	crm := &fakeCRM{}

	result := newTestOrchestrator(t, wh, sc, crm).Run(context.Background())
	if result.Status != StatusError {
		t.Fatalf("expected error when summary write fails, got %s", result.Status)
	}
}
