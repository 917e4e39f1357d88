// Package trigger provides the handler for manualTrigger nodes.
package trigger

import (
	"context"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// Handler marks the entry point of a manually started run. It performs no
// side effect and echoes the configured payload so downstream nodes can
// reference it.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Execute(ctx context.Context, node models.Node, _ map[string]any, logger *slog.Logger) (any, error) {
	logger.With("module", "trigger_node").InfoContext(ctx, "executing manual trigger node", "node_id", node.ID)

	return map[string]any{
		"success": true,
		"payload": node.Data["payload"],
	}, nil
}
