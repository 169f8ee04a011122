// Package warehouse is the mocked data warehouse: a canned opportunity
// query and a sqlite-backed append log for summary rows.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/piyachat/chainflow/pipeline"
)

// ValidSummaryTable is the only table the insert endpoint accepts.
const ValidSummaryTable = "analytics.deal_priority_summary"

// seedOpportunities is the canned result set for opportunity queries.
var seedOpportunities = []pipeline.Opportunity{
	{ID: "opp_001", Amount: 250000, AccountID: "acct_A", Stage: "Proposal", Industry: "Finance", MonthlyVolume: 120000, MarketTrendScore: 0.8, Region: "East", ContactName: "Sarah Johnson", LastActivity: "2023-05-15", ExpectedCloseDate: "2023-06-30", Product: "Enterprise Analytics", CustomerSize: "enterprise", ExistingCustomer: false, DaysInCurrentStage: 10},
	{ID: "opp_002", Amount: 75000, AccountID: "acct_B", Stage: "Negotiation", Industry: "Tech", MonthlyVolume: 50000, MarketTrendScore: 0.6, Region: "West", ContactName: "Michael Chen", LastActivity: "2023-05-10", ExpectedCloseDate: "2023-07-15", Product: "Data Integration", CustomerSize: "mid-market", ExistingCustomer: true, DaysInCurrentStage: 21},
	{ID: "opp_003", Amount: 150000, AccountID: "acct_C", Stage: "Prospecting", Industry: "Retail", MonthlyVolume: 30000, MarketTrendScore: 0.4, Region: "Central", ContactName: "Jessica Smith", LastActivity: "2023-05-12", ExpectedCloseDate: "2023-08-01", Product: "Customer Analytics", CustomerSize: "mid-market", ExistingCustomer: false, DaysInCurrentStage: 35},
	{ID: "opp_004", Amount: 320000, AccountID: "acct_D", Stage: "Discovery", Industry: "Healthcare", MonthlyVolume: 85000, MarketTrendScore: 0.75, Region: "Northeast", ContactName: "Robert Williams", LastActivity: "2023-05-08", ExpectedCloseDate: "2023-07-10", Product: "Healthcare Analytics Suite", CustomerSize: "enterprise", ExistingCustomer: true, DaysInCurrentStage: 14},
	{ID: "opp_005", Amount: 95000, AccountID: "acct_E", Stage: "Qualification", Industry: "Manufacturing", MonthlyVolume: 42000, MarketTrendScore: 0.55, Region: "South", ContactName: "Amanda Garcia", LastActivity: "2023-05-11", ExpectedCloseDate: "2023-06-25", Product: "Supply Chain Insights", CustomerSize: "smb", ExistingCustomer: false, DaysInCurrentStage: 7},
}

// Service is the warehouse mock. Summary rows are written by workflow runs
// only and read back for debugging.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the sqlite database at dbPath. Use
// ":memory:" for an ephemeral store.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open warehouse database: %w", err)
	}

	svc := &Service{db: db}
	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS summary_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_date TEXT NOT NULL,
		high_priority_count INTEGER NOT NULL,
		total_pipeline_value REAL NOT NULL,
		inserted_at INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create warehouse schema: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// SummaryRows returns all inserted summary rows in insertion order.
func (s *Service) SummaryRows(ctx context.Context) ([]pipeline.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_date, high_priority_count, total_pipeline_value FROM summary_rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query summary rows: %w", err)
	}
	defer rows.Close()

	var out []pipeline.SummaryRow
	for rows.Next() {
		var row pipeline.SummaryRow
		if err := rows.Scan(&row.RunDate, &row.HighPriorityCount, &row.TotalPipelineValue); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/warehouse/query", s.handleQuery)
	r.Post("/warehouse/insert", s.handleInsert)
}

type queryRequest struct {
	SQL string `json:"sql"`
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query request: "+err.Error())
		return
	}

	rows := []pipeline.Opportunity{}
	if strings.Contains(strings.ToLower(req.SQL), "opportunities") {
		rows = seedOpportunities
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type insertRequest struct {
	Table string              `json:"table"`
	Row   pipeline.SummaryRow `json:"row"`
}

func (s *Service) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid insert request: "+err.Error())
		return
	}
	if req.Table != ValidSummaryTable {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("table %s not found", req.Table))
		return
	}

	_, err := s.db.ExecContext(r.Context(),
		`INSERT INTO summary_rows (run_date, high_priority_count, total_pipeline_value, inserted_at) VALUES (?, ?, ?, ?)`,
		req.Row.RunDate, req.Row.HighPriorityCount, req.Row.TotalPipelineValue, time.Now().Unix())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "insert summary row: "+err.Error())
		return
	}

	log.Debug().Str("run_date", req.Row.RunDate).Msg("summary row inserted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
