// Package httprequest provides the handler for http and httpTrigger nodes.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/template"
)

const defaultTimeout = 30 * time.Second

// ErrRequestFailed is returned when the target responds with a non-2xx status.
var ErrRequestFailed = errors.New("http request failed")

// Handler performs an HTTP request described by the node's data. URL, headers
// and body support templating against the run metadata.
type Handler struct {
	client *http.Client
}

func NewHandler() *Handler {
	return &Handler{client: &http.Client{Timeout: defaultTimeout}}
}

func (h *Handler) Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "http_node")

	rawURL, _ := node.Data["url"].(string)
	if rawURL == "" {
		logger.InfoContext(ctx, "no URL configured, skipping node", "node_id", node.ID)

		return map[string]any{"success": true, "skipped": true}, nil
	}

	url := template.Render(rawURL, runMetadata)

	method, _ := node.Data["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	var bodyReader io.Reader

	if body, ok := node.Data["body"].(string); ok && body != "" && method != http.MethodGet {
		bodyReader = strings.NewReader(template.Render(body, runMetadata))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if headers, ok := node.Data["headers"].(map[string]any); ok {
		for key, value := range headers {
			if strVal, ok := value.(string); ok {
				req.Header.Set(key, template.Render(strVal, runMetadata))
			}
		}
	}

	logger.InfoContext(ctx, "executing HTTP node", "node_id", node.ID, "method", method, "url", url)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}

	var responseBody any

	err = json.Unmarshal(bodyBytes, &responseBody)
	if err != nil {
		responseBody = string(bodyBytes)
	}

	return map[string]any{
		"success": true,
		"status":  resp.StatusCode,
		"body":    responseBody,
	}, nil
}
