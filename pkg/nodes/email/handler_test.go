package email_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/nodes/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExecuteSendsEmail(t *testing.T) {
	var (
		received   map[string]string
		authHeader string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	t.Setenv("EMAIL_API_URL", server.URL)
	t.Setenv("EMAIL_API_KEY", "key-123")

	node := models.Node{
		ID:   "email-1",
		Type: models.NodeTypeEmail,
		Data: map[string]any{
			"to":      "ops@example.com",
			"subject": "deploy {deploy.env}",
			"body":    "version {deploy.version} is live",
		},
	}

	runMetadata := map[string]any{
		"deploy": map[string]any{"env": "production", "version": "1.4.2"},
	}

	output, err := email.NewHandler().Execute(context.Background(), node, runMetadata, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", authHeader)
	assert.Equal(t, "ops@example.com", received["to"])
	assert.Equal(t, "deploy production", received["subject"])
	assert.Equal(t, "version 1.4.2 is live", received["body"])
	assert.Equal(t, map[string]any{"success": true, "message": "email sent"}, output)
}

func TestHandler_ExecuteMissingAPIFails(t *testing.T) {
	t.Setenv("EMAIL_API_URL", "")

	node := models.Node{
		ID:   "email-1",
		Type: models.NodeTypeEmail,
		Data: map[string]any{
			"to":      "ops@example.com",
			"subject": "s",
			"body":    "b",
		},
	}

	_, err := email.NewHandler().Execute(context.Background(), node, nil, slog.Default())

	assert.ErrorIs(t, err, email.ErrAPINotConfigured)
}

func TestHandler_ExecuteMissingFieldsFails(t *testing.T) {
	t.Setenv("EMAIL_API_URL", "http://mail.invalid")

	node := models.Node{
		ID:   "email-1",
		Type: models.NodeTypeEmail,
		Data: map[string]any{"to": "ops@example.com"},
	}

	_, err := email.NewHandler().Execute(context.Background(), node, nil, slog.Default())

	assert.ErrorIs(t, err, email.ErrNotConfigured)
}

func TestHandler_ExecuteNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	t.Setenv("EMAIL_API_URL", server.URL)

	node := models.Node{
		ID:   "email-1",
		Type: models.NodeTypeEmail,
		Data: map[string]any{
			"to":      "ops@example.com",
			"subject": "s",
			"body":    "b",
		},
	}

	_, err := email.NewHandler().Execute(context.Background(), node, nil, slog.Default())

	assert.ErrorIs(t, err, email.ErrSendFailed)
}
