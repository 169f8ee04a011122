package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryx "github.com/piyachat/chainflow/pkg/retry"
)

const maxClientResponseBytes = 4 << 20

// ClientConfig configures the HTTP clients for all three external systems,
// which share one base URL in this deployment (the mock services are
// mounted on the API mux).
type ClientConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(cfg ClientConfig) (*httpClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid client base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// do posts payload to path and decodes the JSON response into out. Non-2xx
// statuses come back as *retry.StatusError so the policy can classify them.
func (c *httpClient) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s request: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxClientResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return retryx.NewStatusError(method+" "+path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// WarehouseClient talks to the data-warehouse query/insert endpoints.
type WarehouseClient struct {
	*httpClient
}

var _ Warehouse = (*WarehouseClient)(nil)

func NewWarehouseClient(cfg ClientConfig) (*WarehouseClient, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &WarehouseClient{httpClient: hc}, nil
}

func (c *WarehouseClient) Query(ctx context.Context, sql string) ([]Opportunity, error) {
	var out struct {
		Rows []Opportunity `json:"rows"`
	}
	err := c.do(ctx, http.MethodPost, "/warehouse/query", map[string]string{"sql": sql}, &out)
	if err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *WarehouseClient) Insert(ctx context.Context, table string, row SummaryRow) error {
	payload := struct {
		Table string     `json:"table"`
		Row   SummaryRow `json:"row"`
	}{Table: table, Row: row}
	var out struct {
		Status string `json:"status"`
	}
	return c.do(ctx, http.MethodPost, "/warehouse/insert", payload, &out)
}

// ScoringClient talks to the scoring endpoint.
type ScoringClient struct {
	*httpClient
}

var _ Scorer = (*ScoringClient)(nil)

func NewScoringClient(cfg ClientConfig) (*ScoringClient, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ScoringClient{httpClient: hc}, nil
}

func (c *ScoringClient) Score(ctx context.Context, model string, opportunities []Opportunity) ([]Opportunity, error) {
	payload := struct {
		Model string        `json:"model"`
		Data  []Opportunity `json:"data"`
	}{Model: model, Data: opportunities}
	var out struct {
		Scored []Opportunity `json:"scored"`
	}
	if err := c.do(ctx, http.MethodPost, "/score", payload, &out); err != nil {
		return nil, err
	}
	return out.Scored, nil
}

// CRMClient talks to the CRM update/task endpoints.
type CRMClient struct {
	*httpClient
}

var _ CRM = (*CRMClient)(nil)

func NewCRMClient(cfg ClientConfig) (*CRMClient, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return &CRMClient{httpClient: hc}, nil
}

func (c *CRMClient) UpdateOpportunity(ctx context.Context, id string, winProbability float64, nextBestProduct string) error {
	payload := struct {
		WinProbability  float64 `json:"winProbability"`
		NextBestProduct string  `json:"nextBestProduct"`
	}{WinProbability: winProbability, NextBestProduct: nextBestProduct}
	var out struct {
		ID      string `json:"id"`
		Updated bool   `json:"updated"`
	}
	return c.do(ctx, http.MethodPatch, "/crm/opportunity/"+url.PathEscape(id), payload, &out)
}

func (c *CRMClient) CreateTask(ctx context.Context, subjectEntityID, subject, dueDate string) (string, error) {
	payload := struct {
		SubjectEntityID string `json:"subjectEntityId"`
		Subject         string `json:"subject"`
		DueDate         string `json:"dueDate"`
	}{SubjectEntityID: subjectEntityID, Subject: subject, DueDate: dueDate}
	var out struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/crm/task", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
