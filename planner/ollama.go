package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Defaults for the local Ollama endpoint, overridable via OLLAMA_URL and
// OLLAMA_MODEL.
const (
	DefaultOllamaURL   = "http://localhost:11434/api/chat"
	DefaultOllamaModel = "llama3:latest"
)

const systemPrompt = `You are an analytics planner for a tabular sales/churn dataset. Convert the user's request into a JSON plan of tool calls.

ALWAYS return ONLY valid JSON like:
{ "steps": [ { "tool": "query" | "chart" | "narrate", "args": { ... } }, ... ] }

Tools:

- query.args = {
  "select": [string],
  "filters": [ { "col": "string", "op": "==|!=|>|<|>=|<=|in|between|contains", "value": any } ],
  "time_window": { "start": "YYYY-MM-DD", "end": "YYYY-MM-DD" } | null,
  "group_by": [string],
  "order_by": [ { "col": "string", "desc": true|false } ],
  "limit": int | null,
  "computed": true|false,
  "aggregations": { "col": "sum|mean|count|nunique" }
}

- chart.args = {
  "kind": "auto|bar|line",
  "x": "string|null",
  "y": "string|null",
  "title": "string|null"
}

- narrate.args = { "focus": "string" }

Rules & heuristics:
1) If the user mentions "revenue" and no time window, use time_window={start:"2000-01-01", end:"2100-01-01"} and computed=true.
2) For "top N by revenue": aggregations={"period_revenue_usd":"sum"}, group_by=["company_name"], order_by desc, limit N.
3) For churn rate by a dimension: aggregations={"churn":"mean"}, group_by on that dimension, order desc on "churn".
4) ALWAYS include a chart step after the query. Prefer "kind":"auto" with x/y left null unless obvious.
5) ALWAYS include a narrate step after chart.

Schema hints:
company_name, industry, segment, region, tier, channel,
churn (0/1), churn_probability_percent (1-100),
mrr_usd, period_revenue_usd (computed),
signup_date, contract_start, contract_end,
feature_adoption_rate, utilization_rate_90d,
support_tickets_90d, failed_payments_180d, discount_pct`

// OllamaClient plans questions through a local Ollama chat endpoint.
type OllamaClient struct {
	URL        string
	Model      string
	HTTPClient *http.Client
}

// NewOllamaClient builds a client from the environment, falling back to
// the local defaults.
func NewOllamaClient() *OllamaClient {
	url := os.Getenv("OLLAMA_URL")
	if url == "" {
		url = DefaultOllamaURL
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaClient{
		URL:        url,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Plan asks the model to turn a question into a plan. The model's output
// often wraps the JSON in prose, so everything between the first opening
// and last closing brace is what gets parsed.
func (c *OllamaClient) Plan(ctx context.Context, userText string) (*Plan, error) {
	req := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: strings.TrimSpace(userText)},
		},
		Stream:  false,
		Options: map[string]interface{}{"temperature": 0.2, "num_ctx": 4096},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	return extractPlan(chat.Message.Content)
}

// extractPlan pulls the JSON object out of the model's reply.
func extractPlan(content string) (*Plan, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	return ParsePlan([]byte(content[start : end+1]))
}
