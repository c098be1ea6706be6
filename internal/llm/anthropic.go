package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type AnthropicClient struct {
	apiKey string
	client *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 3 * time.Minute, // report generation can take time for large fleets
		},
	}
}

func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	// Test by making a minimal API call
	req := map[string]interface{}{
		"model":      "claude-3-5-haiku-20241022",
		"max_tokens": 10,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": "test",
			},
		},
	}

	_, err := c.callAPI(ctx, req)
	return err
}

// ListModels returns known Anthropic models.
// NOTE: Anthropic does not provide a model listing API endpoint.
// This list must be manually updated when new models are released.
// See: https://docs.anthropic.com/en/docs/models-overview
func (c *AnthropicClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{
			ID:          "claude-opus-4-6",
			Name:        "Claude Opus 4.6",
			Description: "Most capable model for complex analysis",
		},
		{
			ID:          "claude-sonnet-4-5",
			Name:        "Claude Sonnet 4.5",
			Description: "Balanced performance and cost",
		},
		{
			ID:          "claude-3-5-haiku-20241022",
			Name:        "Claude 3.5 Haiku",
			Description: "Fast and cost-effective",
		},
	}, nil
}

func (c *AnthropicClient) GenerateFuelReport(ctx context.Context, model string, analysisData interface{}) (string, error) {
	analysisJSON, err := json.MarshalIndent(analysisData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis data: %w", err)
	}

	userPrompt := fmt.Sprintf("Fleet fuel data:\n\n%s\n\nProvide a comprehensive fuel efficiency report.", string(analysisJSON))

	req := map[string]interface{}{
		"model":      model,
		"max_tokens": 4000,
		"system":     reportPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": userPrompt,
			},
		},
	}

	resp, err := c.callAPI(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	// Extract text from response
	content, ok := resp["content"].([]interface{})
	if !ok || len(content) == 0 {
		return "", errors.New("no response from anthropic")
	}

	firstBlock, ok := content[0].(map[string]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	text, ok := firstBlock["text"].(string)
	if !ok {
		return "", errors.New("no text in response")
	}

	return text, nil
}

func (c *AnthropicClient) callAPI(ctx context.Context, reqBody map[string]interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	return result, nil
}
