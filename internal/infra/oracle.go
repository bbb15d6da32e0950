package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

const (
	defaultOracleURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOracleModel = "openai/gpt-4o-mini"

	// EnvOracleKey and EnvOracleURL configure the dialogue oracle.
	EnvOracleKey = "FOCUSGUARD_ORACLE_KEY"
	EnvOracleURL = "FOCUSGUARD_ORACLE_URL"
)

// ErrMissingOracleKey is returned when no API key is configured.
var ErrMissingOracleKey = fmt.Errorf("%s is required", EnvOracleKey)

// OracleConfig configures the chat-backed dialogue oracle.
type OracleConfig struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// DefaultOracleConfig returns sensible defaults.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		Model:       defaultOracleModel,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// ChatOracle implements domain.DialogueOracle against an OpenAI-compatible
// chat-completions endpoint.
type ChatOracle struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	model       string
	temperature float64
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatOracle builds an oracle from the environment and config.
func NewChatOracle(cfg OracleConfig) (*ChatOracle, error) {
	apiKey := os.Getenv(EnvOracleKey)
	if apiKey == "" {
		return nil, ErrMissingOracleKey
	}

	baseURL := os.Getenv(EnvOracleURL)
	if baseURL == "" {
		baseURL = defaultOracleURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	model := cfg.Model
	if model == "" {
		model = defaultOracleModel
	}

	return &ChatOracle{
		apiKey:      apiKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Send posts the system prompt, prior turns, and the new message, and
// returns the oracle's reply. HTTP 429 surfaces as domain.ErrRateLimited
// so callers can treat the turn as retryable.
func (o *ChatOracle) Send(ctx context.Context, systemPrompt string, history []domain.DialogueTurn, message string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	payload := chatRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("oracle status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oracle error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("oracle error: %s", parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

var _ domain.DialogueOracle = (*ChatOracle)(nil)
