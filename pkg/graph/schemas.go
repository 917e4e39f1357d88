package graph

import "github.com/flowgrid/flowgrid/pkg/models"

// Per-type JSON Schema documents for node payloads. Additional properties are
// allowed everywhere so author-supplied fields survive round trips; only the
// fields a handler cannot run without are required. Message-style nodes
// (discord, slack) stay lenient because an unconfigured message is a benign
// skip at execution time, not a graph defect.
func schemaForType(nodeType models.NodeType) map[string]any {
	switch nodeType {
	case models.NodeTypeEmail:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "minLength": 1},
				"subject": map[string]any{"type": "string"},
				"body":    map[string]any{"type": "string"},
				"from":    map[string]any{"type": "string"},
			},
			"required": []any{"to", "subject", "body"},
		}
	case models.NodeTypeDiscord:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"webhookUrl": map[string]any{"type": "string"},
				"message":    map[string]any{"type": "string"},
				"username":   map[string]any{"type": "string"},
			},
		}
	case models.NodeTypeSlack:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"webhookUrl": map[string]any{"type": "string"},
				"message":    map[string]any{"type": "string"},
				"channel":    map[string]any{"type": "string"},
			},
		}
	case models.NodeTypeTelegram:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"botToken": map[string]any{"type": "string", "minLength": 1},
				"chatId":   map[string]any{"type": "string", "minLength": 1},
				"message":  map[string]any{"type": "string", "minLength": 1},
			},
			"required": []any{"botToken", "chatId", "message"},
		}
	case models.NodeTypeHTTP, models.NodeTypeHTTPTrigger:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string"},
				"method": map[string]any{
					"type": "string",
					"enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"},
				},
				"headers": map[string]any{"type": "object"},
			},
		}
	case models.NodeTypeAI:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt":      map[string]any{"type": "string", "minLength": 1},
				"model":       map[string]any{"type": "string"},
				"temperature": map[string]any{"type": "number", "minimum": 0, "maximum": 2},
				"maxTokens":   map[string]any{"type": "number", "minimum": 1},
			},
			"required": []any{"prompt"},
		}
	case models.NodeTypeManualTrigger:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"payload": map[string]any{"type": "object"},
			},
		}
	}

	return nil
}
