// OpenAI adapter implementing the Provider interface.
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

const openAIMaxTokens = 1024

// OpenAI answers decisions through the OpenAI chat completions API, or any
// compatible endpoint.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	budget     *BudgetGate

	statsMu sync.Mutex
	stats   UsageStats
}

// OpenAI API request/response structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

// NewOpenAI creates an OpenAI adapter. The key and model come from config so
// the same binary can point different agents at different deployments.
func NewOpenAI(apiKey, model string, budget *BudgetGate) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini" // Cost-effective default
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1/chat/completions",
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		budget:     budget,
	}
}

// Name returns the provider name.
func (p *OpenAI) Name() string {
	return "openai"
}

// Available checks if the API key is configured.
func (p *OpenAI) Available() bool {
	return p.apiKey != ""
}

// Decide asks the model for one decision and validates the answer against
// the offered options before returning it.
func (p *OpenAI) Decide(ctx context.Context, req Request) (*Reply, error) {
	if !p.Available() {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	estimated := p.estimateCost()
	if !p.budget.CanSpend(estimated) {
		return nil, fmt.Errorf("%w: %s", ErrOverBudget, p.budget.Status())
	}

	oaiReq := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: ArenaSystemPrompt},
			{Role: "user", Content: BuildDecisionPrompt(req)},
		},
		MaxTokens:   openAIMaxTokens,
		Temperature: 0.7,
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		return nil, fmt.Errorf("OpenAI error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var oaiResp openAIResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	reply, err := ParseReply(oaiResp.Choices[0].Message.Content, req)
	if err != nil {
		return nil, err
	}

	cost := p.calculateCost(oaiResp.Usage.TotalTokens, p.model)
	p.budget.RecordSpend(cost)
	p.recordUsage(oaiResp.Usage.TotalTokens, cost)

	reply.Model = oaiResp.Model
	reply.TokensUsed = oaiResp.Usage.TotalTokens
	reply.LatencyMs = latency.Milliseconds()
	reply.CostUSD = cost
	return reply, nil
}

// estimateCost estimates the cost before making a request.
func (p *OpenAI) estimateCost() float64 {
	// Rough estimate: assume average prompt size
	estimatedTokens := 1000 + openAIMaxTokens
	return p.calculateCost(estimatedTokens, p.model)
}

// calculateCost computes the actual cost based on tokens and model.
func (p *OpenAI) calculateCost(tokens int, model string) float64 {
	// GPT-4o-mini pricing (as of 2024): ~$0.15/1M input, ~$0.60/1M output
	// Simplified: average ~$0.0003 per 1K tokens
	switch model {
	case "gpt-4o":
		return float64(tokens) * 0.00003 // $30/1M tokens average
	case "gpt-4o-mini":
		return float64(tokens) * 0.0000005 // $0.50/1M tokens average
	default:
		return float64(tokens) * 0.00001 // Conservative estimate
	}
}

func (p *OpenAI) recordUsage(tokens int, cost float64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.TotalRequests++
	p.stats.TotalTokens += tokens
	p.stats.TotalCostUSD += cost
}

// Usage returns current usage statistics.
func (p *OpenAI) Usage() UsageStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Ensure OpenAI implements Provider
var _ Provider = (*OpenAI)(nil)
