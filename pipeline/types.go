package pipeline

import "context"

// HighPriorityThreshold is the canonical win-probability cutoff for a deal
// to count as high priority, used by both the run aggregate and any
// conversational surface reporting on it.
const HighPriorityThreshold = 0.8

// Opportunity is a sales deal record. Fetch produces it raw, Score fills in
// WinProbability and NextBestProduct, and the later stages reference it
// without further mutation.
type Opportunity struct {
	ID                 string  `json:"id"`
	Amount             float64 `json:"amount"`
	AccountID          string  `json:"accountId"`
	Stage              string  `json:"stage"`
	Industry           string  `json:"industry"`
	MonthlyVolume      float64 `json:"monthlyVolume"`
	MarketTrendScore   float64 `json:"marketTrendScore"`
	Region             string  `json:"region"`
	ContactName        string  `json:"contactName"`
	LastActivity       string  `json:"lastActivity"`
	ExpectedCloseDate  string  `json:"expectedCloseDate"`
	Product            string  `json:"product"`
	CustomerSize       string  `json:"customer_size,omitempty"`
	ExistingCustomer   bool    `json:"existing_customer"`
	DaysInCurrentStage int     `json:"days_in_current_stage"`

	WinProbability  float64 `json:"winProbability,omitempty"`
	NextBestProduct string  `json:"nextBestProduct,omitempty"`
}

// HighPriority reports whether the scored opportunity clears the canonical
// threshold.
func (o Opportunity) HighPriority() bool {
	return o.WinProbability > HighPriorityThreshold
}

// SummaryRow is the aggregate row written back to the warehouse.
type SummaryRow struct {
	RunDate            string  `json:"runDate"`
	HighPriorityCount  int     `json:"highPriorityCount"`
	TotalPipelineValue float64 `json:"totalPipelineValue"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the immutable aggregate of one pipeline run.
type Result struct {
	Status        string        `json:"status"`
	Message       string        `json:"message,omitempty"`
	Opportunities []Opportunity `json:"opportunities,omitempty"`
	Tasks         []string      `json:"tasks,omitempty"`
	Summary       SummaryRow    `json:"summary"`
	Errors        []string      `json:"errors,omitempty"`
}

// Warehouse is the data-warehouse collaborator (fetch + summary insert).
type Warehouse interface {
	Query(ctx context.Context, sql string) ([]Opportunity, error)
	Insert(ctx context.Context, table string, row SummaryRow) error
}

// Scorer is the scoring-endpoint collaborator.
type Scorer interface {
	Score(ctx context.Context, model string, opportunities []Opportunity) ([]Opportunity, error)
}

// CRM is the CRM collaborator (record updates + follow-up tasks).
type CRM interface {
	UpdateOpportunity(ctx context.Context, id string, winProbability float64, nextBestProduct string) error
	CreateTask(ctx context.Context, subjectEntityID, subject, dueDate string) (string, error)
}
