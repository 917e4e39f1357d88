package workflow

import "github.com/flowgrid/flowgrid/pkg/models"

// FindRunnableNodes returns the nodes eligible for execution given the current
// node-run records, in graph declaration order. A node is runnable when it is
// not already done, in flight or permanently failed, and every incoming edge
// source has a Success record. A node whose dependency can never succeed stays
// off the list forever, which is what ultimately drains the loop.
func FindRunnableNodes(nodes []models.Node, edges []models.Edge, nodeRuns []*models.NodeRun) []models.Node {
	runnable := make([]models.Node, 0)

	for _, node := range nodes {
		nodeRun := findNodeRun(nodeRuns, node.ID)

		if nodeRun != nil {
			if nodeRun.Status == models.NodeStatusSuccess || nodeRun.Status == models.NodeStatusRunning {
				continue
			}

			if nodeRun.Exhausted() {
				continue
			}
		}

		if dependenciesSatisfied(node.ID, edges, nodeRuns) {
			runnable = append(runnable, node)
		}
	}

	return runnable
}

func findNodeRun(nodeRuns []*models.NodeRun, nodeID string) *models.NodeRun {
	for _, nodeRun := range nodeRuns {
		if nodeRun.NodeID == nodeID {
			return nodeRun
		}
	}

	return nil
}

// dependenciesSatisfied implements the AND-join: every incoming edge source
// must have a Success record. A node with no incoming edges passes trivially.
func dependenciesSatisfied(nodeID string, edges []models.Edge, nodeRuns []*models.NodeRun) bool {
	for _, edge := range edges {
		if edge.Target != nodeID {
			continue
		}

		sourceRun := findNodeRun(nodeRuns, edge.Source)
		if sourceRun == nil || sourceRun.Status != models.NodeStatusSuccess {
			return false
		}
	}

	return true
}
