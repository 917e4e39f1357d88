package models

// NodeType identifies the handler for a node. The set is closed: graph
// validation rejects any tag outside it, so handler dispatch never sees an
// unknown type at execution time.
type NodeType string

const (
	NodeTypeEmail         NodeType = "email"
	NodeTypeDiscord       NodeType = "discord"
	NodeTypeSlack         NodeType = "slack"
	NodeTypeTelegram      NodeType = "telegram"
	NodeTypeHTTP          NodeType = "http"
	NodeTypeHTTPTrigger   NodeType = "httpTrigger"
	NodeTypeAI            NodeType = "aiNode"
	NodeTypeManualTrigger NodeType = "manualTrigger"
)

// NodeTypes lists every member of the closed type set in a stable order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeEmail,
		NodeTypeDiscord,
		NodeTypeSlack,
		NodeTypeTelegram,
		NodeTypeHTTP,
		NodeTypeHTTPTrigger,
		NodeTypeAI,
		NodeTypeManualTrigger,
	}
}

// Position holds display coordinates. Irrelevant to execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single typed node in a workflow graph. Data keeps every field the
// author supplied, including ones the type schema does not know about.
type Node struct {
	ID       string         `json:"id"   validate:"required"`
	Type     NodeType       `json:"type" validate:"required"`
	Data     map[string]any `json:"data"`
	Position *Position      `json:"position,omitempty"`
}

// Edge declares that Target depends on Source having completed successfully.
// Multiple edges into the same target form an AND-join.
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}
