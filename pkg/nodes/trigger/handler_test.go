package trigger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/nodes/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExecuteEchoesPayload(t *testing.T) {
	node := models.Node{
		ID:   "trigger-1",
		Type: models.NodeTypeManualTrigger,
		Data: map[string]any{
			"payload": map[string]any{"ref": "main"},
		},
	}

	output, err := trigger.NewHandler().Execute(context.Background(), node, nil, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"success": true,
		"payload": map[string]any{"ref": "main"},
	}, output)
}

func TestHandler_ExecuteWithoutPayload(t *testing.T) {
	node := models.Node{
		ID:   "trigger-1",
		Type: models.NodeTypeManualTrigger,
		Data: map[string]any{},
	}

	output, err := trigger.NewHandler().Execute(context.Background(), node, nil, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"success": true, "payload": nil}, output)
}
