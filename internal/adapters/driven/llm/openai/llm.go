// Package openai provides a summary service adapter using the OpenAI
// chat completions API or any compatible endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

// Ensure SummaryService implements the interface.
var _ driven.SummaryService = (*SummaryService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second

	// maxSummaryInput caps how much passage content is sent per
	// summary request.
	maxSummaryInput = 2000
)

// systemPrompt instructs the model to answer with a JSON object so the
// summary can be parsed deterministically.
const systemPrompt = `You are an AI that generates concise, informative summaries of documentation chunks.
Return a JSON object with 'summary' key containing a 1-2 sentence summary focusing on key concepts and information.`

// Config holds configuration for the OpenAI summary service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// SummaryService generates passage summaries using the OpenAI API.
type SummaryService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewSummaryService creates a new OpenAI summary service.
func NewSummaryService(cfg Config) (*SummaryService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &SummaryService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Summarise asks the model for a 1-2 sentence summary of the content.
// Errors are returned to the caller, who treats summaries as best
// effort and substitutes a placeholder.
func (s *SummaryService) Summarise(ctx context.Context, content string) (string, error) {
	if len(content) > maxSummaryInput {
		cut := maxSummaryInput
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}

	reqBody := chatCompletionRequest{
		Model: s.model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Content:\n" + content},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no completion returned")
	}

	return parseSummary(chatResp.Choices[0].Message.Content)
}

// Close releases resources.
func (s *SummaryService) Close() error {
	return nil
}

// parseSummary extracts the summary field from the model's JSON reply,
// tolerating markdown code fences around the object.
func parseSummary(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") && strings.HasSuffix(reply, "```") {
		reply = strings.Trim(reply, "`")
		reply = strings.TrimPrefix(reply, "json")
		reply = strings.TrimSpace(reply)
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return "", fmt.Errorf("parse summary JSON: %w", err)
	}
	if parsed.Summary == "" {
		return "", fmt.Errorf("empty summary in reply")
	}
	return parsed.Summary, nil
}
