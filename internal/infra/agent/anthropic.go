// Anthropic Claude adapter implementing the Provider interface.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const anthropicMaxTokens = 1024

// Anthropic answers decisions through the Anthropic messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	budget     *BudgetGate

	statsMu sync.Mutex
	stats   UsageStats
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropic creates a Claude adapter.
func NewAnthropic(apiKey, model string, budget *BudgetGate) *Anthropic {
	if model == "" {
		model = "claude-3-5-haiku-20241022" // Cheap and fast enough for turns
	}
	return &Anthropic{
		apiKey:     apiKey,
		baseURL:    "https://api.anthropic.com/v1/messages",
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		budget:     budget,
	}
}

// Name returns the provider name.
func (p *Anthropic) Name() string {
	return "anthropic"
}

// Available checks if the API key is configured.
func (p *Anthropic) Available() bool {
	return p.apiKey != ""
}

// Decide asks Claude for one decision. The system prompt travels in the
// top-level system field, as the messages API requires.
func (p *Anthropic) Decide(ctx context.Context, req Request) (*Reply, error) {
	if !p.Available() {
		return nil, fmt.Errorf("Anthropic API key not configured")
	}

	estimated := p.estimateCost()
	if !p.budget.CanSpend(estimated) {
		return nil, fmt.Errorf("%w: %s", ErrOverBudget, p.budget.Status())
	}

	anthReq := anthropicRequest{
		Model:     p.model,
		MaxTokens: anthropicMaxTokens,
		System:    ArenaSystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildDecisionPrompt(req)},
		},
	}

	body, err := json.Marshal(anthReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anthropic error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(respBody, &anthResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(anthResp.Content) == 0 {
		return nil, fmt.Errorf("no response content returned")
	}

	reply, err := ParseReply(anthResp.Content[0].Text, req)
	if err != nil {
		return nil, err
	}

	totalTokens := anthResp.Usage.InputTokens + anthResp.Usage.OutputTokens
	cost := p.calculateCost(totalTokens, p.model)
	p.budget.RecordSpend(cost)
	p.recordUsage(totalTokens, cost)

	reply.Model = anthResp.Model
	reply.TokensUsed = totalTokens
	reply.LatencyMs = latency.Milliseconds()
	reply.CostUSD = cost
	return reply, nil
}

// estimateCost estimates cost before making a request.
func (p *Anthropic) estimateCost() float64 {
	estimatedTokens := 2000 + anthropicMaxTokens
	return p.calculateCost(estimatedTokens, p.model)
}

// calculateCost computes actual cost based on tokens.
func (p *Anthropic) calculateCost(tokens int, model string) float64 {
	// Claude 3.5 Sonnet: ~$3/1M input, ~$15/1M output
	// Averaged: ~$0.009 per 1K tokens
	switch model {
	case "claude-3-5-sonnet-20241022":
		return float64(tokens) * 0.000009
	case "claude-3-5-haiku-20241022", "claude-3-haiku-20240307":
		return float64(tokens) * 0.0000005 // Much cheaper
	default:
		return float64(tokens) * 0.00001
	}
}

func (p *Anthropic) recordUsage(tokens int, cost float64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.TotalRequests++
	p.stats.TotalTokens += tokens
	p.stats.TotalCostUSD += cost
}

// Usage returns current usage statistics.
func (p *Anthropic) Usage() UsageStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Ensure Anthropic implements Provider
var _ Provider = (*Anthropic)(nil)
