package question

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"treacherest/internal/model"
)

// HTTPProvider is a Provider backed by an OpenAI-compatible chat
// completions endpoint, configured the way other_examples' AutoDM
// agent configures its LLM router (BaseURL/APIKey/Model, one HTTP call
// per request). Stdlib net/http only: none of the example repos wire a
// dedicated REST client library for an LLM call, they reach for
// net/http directly and let the caller bound it with context.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewHTTPProvider wires a Provider against baseURL (e.g.
// "https://api.openai.com/v1") using model for every request.
func NewHTTPProvider(baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{BaseURL: baseURL, APIKey: apiKey, Model: model, Client: http.DefaultClient}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the configured model for n trivia questions in category
// at difficulty, returning its raw reply text for ParseProviderOutput.
func (p *HTTPProvider) Generate(ctx context.Context, category string, difficulty model.Difficulty, n int) (string, error) {
	prompt := fmt.Sprintf(
		"Generate %d multiple-choice trivia questions about %q at %s difficulty. "+
			"Reply with only a JSON array of objects: "+
			`{"text":"...","options":{"A":"...","B":"...","C":"...","D":"..."},"correctAnswer":"A","timeLimit":0}.`,
		n, category, difficulty)

	body, err := json.Marshal(chatRequest{
		Model:    p.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("question: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("question: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("question: provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("question: provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("question: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("question: provider returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
