package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TextGenerator is the single call the analysis flow needs: instructions plus
// a prompt in, plain text out.
type TextGenerator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
	Model() string
}

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultModel           = "gpt-5.1"
	defaultReasoningEffort = "medium"
	defaultMaxOutputTokens = 8000
)

// OpenAIClient issues Responses API calls. The response envelope shape is not
// stable (reasoning models may emit a reasoning item before the message
// item), so text extraction walks a fallback chain instead of trusting one
// field.
type OpenAIClient struct {
	httpClient      *http.Client
	apiKey          string
	baseURL         string
	model           string
	reasoningEffort string
	maxOutputTokens int
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAIClient{
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		apiKey:          apiKey,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		model:           model,
		reasoningEffort: defaultReasoningEffort,
		maxOutputTokens: defaultMaxOutputTokens,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

type responsesRequest struct {
	Model           string          `json:"model"`
	Instructions    string          `json:"instructions"`
	Input           string          `json:"input"`
	Reasoning       reasoningConfig `json:"reasoning"`
	MaxOutputTokens int             `json:"max_output_tokens"`
	Text            textConfig      `json:"text"`
}

type reasoningConfig struct {
	Effort string `json:"effort"`
}

type textConfig struct {
	Format formatConfig `json:"format"`
}

type formatConfig struct {
	Type string `json:"type"`
}

type responseEnvelope struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
	Error      *apiError    `json:"error"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *OpenAIClient) Generate(ctx context.Context, instructions, input string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model:           c.model,
		Instructions:    instructions,
		Input:           input,
		Reasoning:       reasoningConfig{Effort: c.reasoningEffort},
		MaxOutputTokens: c.maxOutputTokens,
		Text:            textConfig{Format: formatConfig{Type: "text"}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("responses call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if env.Error != nil && env.Error.Message != "" {
			return "", fmt.Errorf("responses call: %s (%s)", env.Error.Message, resp.Status)
		}
		return "", fmt.Errorf("responses call: %s", resp.Status)
	}

	return extractOutputText(&env)
}

var errNoOutputText = errors.New("no output text in response envelope")

// extractOutputText tries, in order: the flattened convenience field, the
// second output item's first content text (reasoning item precedes the
// message), the first output item's first content text, any item tagged as a
// message, and finally any content text longer than 100 characters.
func extractOutputText(env *responseEnvelope) (string, error) {
	if env.OutputText != "" {
		return env.OutputText, nil
	}
	if t := itemText(env.Output, 1); t != "" {
		return t, nil
	}
	if t := itemText(env.Output, 0); t != "" {
		return t, nil
	}
	for _, item := range env.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Text != "" {
				return c.Text, nil
			}
		}
	}
	for _, item := range env.Output {
		for _, c := range item.Content {
			if len(c.Text) > 100 {
				return c.Text, nil
			}
		}
	}
	return "", errNoOutputText
}

func itemText(items []outputItem, idx int) string {
	if idx >= len(items) || len(items[idx].Content) == 0 {
		return ""
	}
	return items[idx].Content[0].Text
}
