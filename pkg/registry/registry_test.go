package registry_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoversAllNodeTypes(t *testing.T) {
	r := registry.NewRegistry()

	for _, nodeType := range models.NodeTypes() {
		handler, err := r.Handler(nodeType)

		require.NoError(t, err, "node type %s has no handler", nodeType)
		assert.NotNil(t, handler)
	}
}

func TestRegistry_UnknownTypeFails(t *testing.T) {
	r := registry.NewRegistry()

	_, err := r.Handler(models.NodeType("carrier-pigeon"))

	assert.ErrorIs(t, err, registry.ErrHandlerNotFound)
}

func TestRegistry_SharedHTTPHandler(t *testing.T) {
	r := registry.NewRegistry()

	httpHandler, err := r.Handler(models.NodeTypeHTTP)
	require.NoError(t, err)

	triggerHandler, err := r.Handler(models.NodeTypeHTTPTrigger)
	require.NoError(t, err)

	assert.Same(t, httpHandler, triggerHandler)
}

type stubHandler struct{}

func (stubHandler) Execute(_ context.Context, _ models.Node, _ map[string]any, _ *slog.Logger) (any, error) {
	return map[string]any{"success": true}, nil
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	r := registry.NewRegistry()

	stub := stubHandler{}
	r.Register(models.NodeTypeDiscord, stub)

	handler, err := r.Handler(models.NodeTypeDiscord)
	require.NoError(t, err)
	assert.Equal(t, stub, handler)
}
