// Package web exposes read-only diagnostics endpoints for workflow runs.
package web

import (
	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	persistence persistence.Persistence
	locks       *lock.Manager
}

func NewAPIHandlers(store persistence.Persistence, locks *lock.Manager) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		locks:       locks,
	}
}

// RegisterRoutes mounts the diagnostics endpoints on an app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	runs := app.Group("/workflow-runs")
	runs.Get("/:id", h.GetWorkflowRun)
	runs.Get("/:id/node-runs", h.GetNodeRuns)
	runs.Get("/:id/lock", h.GetRunLock)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *APIHandlers) GetWorkflowRun(c fiber.Ctx) error {
	run, err := h.persistence.WorkflowRunRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetNodeRuns(c fiber.Ctx) error {
	runID := c.Params("id")

	// 404 for unknown runs rather than an empty list.
	_, err := h.persistence.WorkflowRunRepository().GetByID(c.Context(), runID)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	nodeRuns, err := h.persistence.NodeRunRepository().ListByRun(c.Context(), runID)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(fiber.Map{"node_runs": nodeRuns})
}

func (h *APIHandlers) GetRunLock(c fiber.Ctx) error {
	runID := c.Params("id")

	run, err := h.persistence.WorkflowRunRepository().GetByID(c.Context(), runID)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	locked, err := h.locks.IsLocked(c.Context(), runID)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	response := fiber.Map{"locked": locked}
	if locked {
		response["locked_by"] = run.LockedBy
		response["locked_at"] = run.LockedAt
	}

	return c.JSON(response)
}
