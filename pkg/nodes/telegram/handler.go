// Package telegram provides the handler for telegram notification nodes.
package telegram

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
	defaultTimeout = 30 * time.Second
	defaultBaseURL = "https://api.telegram.org"
)

var (
	// ErrNotConfigured is returned when botToken, chatId or message is missing.
	// The graph schema requires all three, so this only fires for nodes that
	// bypassed validation.
	ErrNotConfigured = errors.New("telegram node is missing botToken, chatId or message")
	// ErrSendFailed is returned when the Bot API responds with a non-2xx status.
	ErrSendFailed = errors.New("failed to send telegram message")
)

// Handler sends a message through the Telegram Bot API. The base URL is
// overridable via TELEGRAM_API_BASE_URL so tests can point it at a local
// server.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{Timeout: defaultTimeout}}
}

func (h *Handler) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "telegram_node")

	botToken, _ := node.Data["botToken"].(string)
	chatID, _ := node.Data["chatId"].(string)
	message, _ := node.Data["message"].(string)

	if botToken == "" || chatID == "" || message == "" {
		return nil, ErrNotConfigured
	}

	baseURL := os.Getenv("TELEGRAM_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    template.Render(message, runMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", baseURL, botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	logger.InfoContext(ctx, "executing telegram node", "node_id", node.ID, "chat_id", chatID)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send telegram message: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", ErrSendFailed, resp.Status)
	}

	return map[string]any{
		"success": true,
		"message": "telegram message sent",
	}, nil
}
