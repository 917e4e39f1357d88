// Package registry maps node types to their execution handlers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/nodes/ai"
	"github.com/flowgrid/flowgrid/pkg/nodes/discord"
	"github.com/flowgrid/flowgrid/pkg/nodes/email"
	"github.com/flowgrid/flowgrid/pkg/nodes/httprequest"
	"github.com/flowgrid/flowgrid/pkg/nodes/slack"
	"github.com/flowgrid/flowgrid/pkg/nodes/telegram"
	"github.com/flowgrid/flowgrid/pkg/nodes/trigger"
)

// ErrHandlerNotFound is returned when no handler is registered for a node type.
var ErrHandlerNotFound = errors.New("no handler registered for node type")

// Handler executes a single node. runMetadata holds the outputs of previously
// succeeded nodes, keyed by node id, and feeds template interpolation.
type Handler interface {
	Execute(ctx context.Context, node models.Node, runMetadata map[string]any, logger *slog.Logger) (any, error)
}

// Registry holds the handler for each node type.
type Registry struct {
	handlers map[models.NodeType]Handler
}

// NewRegistry creates a registry with the full built-in handler set, covering
// every supported node type.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[models.NodeType]Handler)}

	httpHandler := httprequest.NewHandler()

	r.Register(models.NodeTypeEmail, email.NewHandler())
	r.Register(models.NodeTypeDiscord, discord.NewHandler())
	r.Register(models.NodeTypeSlack, slack.NewHandler())
	r.Register(models.NodeTypeTelegram, telegram.NewHandler())
	r.Register(models.NodeTypeHTTP, httpHandler)
	r.Register(models.NodeTypeHTTPTrigger, httpHandler)
	r.Register(models.NodeTypeAI, ai.NewHandler())
	r.Register(models.NodeTypeManualTrigger, trigger.NewHandler())

	return r
}

// Register binds a handler to a node type, replacing any existing binding.
func (r *Registry) Register(nodeType models.NodeType, handler Handler) {
	r.handlers[nodeType] = handler
}

// Handler returns the handler for a node type.
func (r *Registry) Handler(nodeType models.NodeType) (Handler, error) {
	handler, ok := r.handlers[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, nodeType)
	}

	return handler, nil
}
