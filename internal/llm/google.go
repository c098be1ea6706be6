package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GoogleClient struct {
	apiKey string
}

func NewGoogleClient(apiKey string) *GoogleClient {
	return &GoogleClient{
		apiKey: apiKey,
	}
}

func (c *GoogleClient) TestConnection(ctx context.Context) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return err
	}
	defer client.Close()

	// List models to verify connection
	iter := client.ListModels(ctx)
	_, err = iter.Next()
	if err != nil && err.Error() != "no more items in iterator" {
		return err
	}

	return nil
}

func (c *GoogleClient) ListModels(ctx context.Context) ([]Model, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var models []Model
	iter := client.ListModels(ctx)
	for {
		m, err := iter.Next()
		if err != nil {
			if err.Error() == "no more items in iterator" {
				break
			}
			return nil, err
		}

		if m.Name != "" {
			models = append(models, Model{
				ID:          m.Name,
				Name:        m.DisplayName,
				Description: m.Description,
			})
		}
	}

	return models, nil
}

func (c *GoogleClient) GenerateFuelReport(ctx context.Context, model string, analysisData interface{}) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	analysisJSON, err := json.MarshalIndent(analysisData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis data: %w", err)
	}

	// Extract model name (remove "models/" prefix if present)
	modelName := strings.TrimPrefix(model, "models/")

	genModel := client.GenerativeModel(modelName)

	userPrompt := fmt.Sprintf("Fleet fuel data:\n\n%s\n\nProvide a comprehensive fuel efficiency report.", string(analysisJSON))

	resp, err := genModel.GenerateContent(ctx, genai.Text(reportPrompt+"\n\n"+userPrompt))
	if err != nil {
		return "", fmt.Errorf("google api error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from google")
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result += string(text)
		}
	}

	if result == "" {
		return "", errors.New("empty response from google")
	}

	return result, nil
}
