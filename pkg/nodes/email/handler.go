// Package email provides the handler for email notification nodes.
package email

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
	// ErrAPINotConfigured is returned when the EMAIL_API_URL environment
	// variable is unset.
	ErrAPINotConfigured = errors.New("email API URL not configured")
	// ErrNotConfigured is returned when to, subject or body is missing. The
	// graph schema requires all three.
	ErrNotConfigured = errors.New("email node is missing to, subject or body")
	// ErrSendFailed is returned when the provider responds with a non-2xx status.
	ErrSendFailed = errors.New("failed to send email")
)

// Handler delivers mail through an HTTP email provider. The endpoint comes
// from EMAIL_API_URL, with an optional EMAIL_API_KEY bearer token.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{Timeout: defaultTimeout}}
}

func (h *Handler) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "email_node")

	to, _ := node.Data["to"].(string)
	subject, _ := node.Data["subject"].(string)
	body, _ := node.Data["body"].(string)

	if to == "" || subject == "" || body == "" {
		return nil, ErrNotConfigured
	}

	apiURL := os.Getenv("EMAIL_API_URL")
	if apiURL == "" {
		return nil, ErrAPINotConfigured
	}

	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": template.Render(subject, runMetadata),
		"body":    template.Render(body, runMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if apiKey := os.Getenv("EMAIL_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	logger.InfoContext(ctx, "executing email node", "node_id", node.ID, "to", to)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
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
		"message": "email sent",
	}, nil
}
