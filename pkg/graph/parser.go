// Package graph parses and validates persisted workflow graphs. A graph that
// fails validation is rejected whole: no partial node or edge lists are ever
// returned.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaError reports a malformed persisted graph. It fails the whole graph
// load and surfaces as a run-level error.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return "invalid workflow graph: " + e.Detail
}

func schemaErrorf(format string, args ...any) *SchemaError {
	return &SchemaError{Detail: fmt.Sprintf(format, args...)}
}

var validate = validator.New()

// ParseNodes decodes and validates the persisted node list. Each node's data
// payload is checked against the schema for its type tag; unknown type tags
// and duplicate ids reject the batch.
func ParseNodes(raw json.RawMessage) ([]models.Node, error) {
	if len(raw) == 0 {
		return []models.Node{}, nil
	}

	var nodes []models.Node

	err := json.Unmarshal(raw, &nodes)
	if err != nil {
		return nil, schemaErrorf("failed to decode nodes: %v", err)
	}

	seen := make(map[string]struct{}, len(nodes))

	for i := range nodes {
		node := &nodes[i]

		err := validate.Struct(node)
		if err != nil {
			return nil, schemaErrorf("node %d: %v", i, err)
		}

		if _, dup := seen[node.ID]; dup {
			return nil, schemaErrorf("duplicate node id %q", node.ID)
		}

		seen[node.ID] = struct{}{}

		if node.Data == nil {
			node.Data = map[string]any{}
		}

		err = validateNodeData(node)
		if err != nil {
			return nil, err
		}
	}

	return nodes, nil
}

// ParseEdges decodes and validates the persisted edge list. Only shape is
// checked here: edge endpoints are not required to name existing nodes, a
// dangling edge simply never becomes satisfiable in the resolver.
func ParseEdges(raw json.RawMessage) ([]models.Edge, error) {
	if len(raw) == 0 {
		return []models.Edge{}, nil
	}

	var edges []models.Edge

	err := json.Unmarshal(raw, &edges)
	if err != nil {
		return nil, schemaErrorf("failed to decode edges: %v", err)
	}

	for i := range edges {
		err := validate.Struct(&edges[i])
		if err != nil {
			return nil, schemaErrorf("edge %d: %v", i, err)
		}
	}

	return edges, nil
}

func validateNodeData(node *models.Node) error {
	schema := schemaForType(node.Type)
	if schema == nil {
		return schemaErrorf("node %q has unsupported type %q", node.ID, node.Type)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(node.Data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return schemaErrorf("node %q: %v", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return schemaErrorf("node %q data: %s", node.ID, strings.Join(details, "; "))
	}

	return nil
}
