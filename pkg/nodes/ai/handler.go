// Package ai provides the handler for aiNode completion nodes.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/template"
)

const (
	defaultTimeout = 120 * time.Second
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

var (
	// ErrAPIKeyNotConfigured is returned when the OPENAI_API_KEY environment
	// variable is unset.
	ErrAPIKeyNotConfigured = errors.New("OpenAI API key not configured")
	// ErrPromptMissing is returned when the node has no prompt. The graph
	// schema requires one.
	ErrPromptMissing = errors.New("aiNode is missing a prompt")
	// ErrCompletionFailed is returned when the API responds with a non-2xx
	// status or an empty choice list.
	ErrCompletionFailed = errors.New("chat completion failed")
)

// Handler runs a prompt through an OpenAI-compatible chat completion API. The
// base URL is overridable via OPENAI_BASE_URL for alternative providers and
// tests.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{Timeout: defaultTimeout}}
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (h *Handler) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "ai_node")

	prompt, _ := node.Data["prompt"].(string)
	if prompt == "" {
		return nil, ErrPromptMissing
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model, _ := node.Data["model"].(string)
	if model == "" {
		model = defaultModel
	}

	payload, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": template.Render(prompt, runMetadata)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	logger.InfoContext(ctx, "executing AI node", "node_id", node.ID, "model", model)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", ErrCompletionFailed, resp.Status)
	}

	var completion completionResponse

	err = json.NewDecoder(resp.Body).Decode(&completion)
	if err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contained no choices", ErrCompletionFailed)
	}

	return map[string]any{
		"success":  true,
		"model":    model,
		"response": completion.Choices[0].Message.Content,
	}, nil
}
