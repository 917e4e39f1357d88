package httprequest_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/nodes/httprequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExecuteGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deployed": true}`))
	}))
	defer server.Close()

	node := models.Node{
		ID:   "http-1",
		Type: models.NodeTypeHTTP,
		Data: map[string]any{"url": server.URL},
	}

	output, err := httprequest.NewHandler().Execute(context.Background(), node, nil, slog.Default())
	require.NoError(t, err)

	result, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, http.StatusOK, result["status"])
	assert.Equal(t, map[string]any{"deployed": true}, result["body"])
}

func TestHandler_ExecutePostWithTemplatedBody(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer server.Close()

	node := models.Node{
		ID:   "http-1",
		Type: models.NodeTypeHTTP,
		Data: map[string]any{
			"url":    server.URL + "/items",
			"method": "post",
			"body":   `{"ref": "{trigger.payload.ref}"}`,
			"headers": map[string]any{
				"Authorization": "Bearer {auth.token}",
			},
		},
	}

	runMetadata := map[string]any{
		"trigger": map[string]any{"payload": map[string]any{"ref": "main"}},
		"auth":    map[string]any{"token": "token-123"},
	}

	output, err := httprequest.NewHandler().Execute(context.Background(), node, runMetadata, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"ref": "main"}, received)

	result, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusCreated, result["status"])
}

func TestHandler_ExecuteNonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	node := models.Node{
		ID:   "http-1",
		Type: models.NodeTypeHTTP,
		Data: map[string]any{"url": server.URL},
	}

	output, err := httprequest.NewHandler().Execute(context.Background(), node, nil, slog.Default())
	require.NoError(t, err)

	result, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pong", result["body"])
}

func TestHandler_ExecuteNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	node := models.Node{
		ID:   "http-1",
		Type: models.NodeTypeHTTP,
		Data: map[string]any{"url": server.URL},
	}

	_, err := httprequest.NewHandler().Execute(context.Background(), node, nil, slog.Default())

	require.Error(t, err)
	assert.ErrorIs(t, err, httprequest.ErrRequestFailed)
	assert.Contains(t, err.Error(), "502")
}

func TestHandler_ExecuteMissingURLSkips(t *testing.T) {
	node := models.Node{
		ID:   "http-1",
		Type: models.NodeTypeHTTP,
		Data: map[string]any{},
	}

	output, err := httprequest.NewHandler().Execute(context.Background(), node, nil, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"success": true, "skipped": true}, output)
}
