// Package slack provides the handler for slack notification nodes.
package slack

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

const defaultTimeout = 30 * time.Second

var (
	// ErrWebhookNotConfigured is returned when neither the node data nor the
	// SLACK_WEBHOOK_URL environment variable provide a webhook URL.
	ErrWebhookNotConfigured = errors.New("slack webhook URL not configured")
	// ErrSendFailed is returned when the webhook responds with a non-2xx status.
	ErrSendFailed = errors.New("failed to send slack message")
)

// Handler posts a message to a Slack incoming webhook. A node without message
// text is treated as unconfigured and skipped rather than failed.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{Timeout: defaultTimeout}}
}

func (h *Handler) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "slack_node")

	message, _ := node.Data["message"].(string)
	if message == "" {
		logger.InfoContext(ctx, "no message configured, skipping node", "node_id", node.ID)

		return map[string]any{"success": true, "skipped": true}, nil
	}

	webhookURL, _ := node.Data["webhookUrl"].(string)
	if webhookURL == "" {
		webhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}

	if webhookURL == "" {
		return nil, ErrWebhookNotConfigured
	}

	payload, err := json.Marshal(map[string]string{
		"text": template.Render(message, runMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	logger.InfoContext(ctx, "executing slack node", "node_id", node.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send slack message: %w", err)
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
		"message": "slack message sent",
	}, nil
}
