package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/coursemarket/internal/tasks"
)

// MaintenanceController triggers reconciliation and reports task status.
type MaintenanceController struct {
	reconciler Reconciler
	queue      TaskQueue
	audit      AuditLog
}

func NewMaintenanceController(reconciler Reconciler, queue TaskQueue, audit AuditLog) *MaintenanceController {
	return &MaintenanceController{reconciler: reconciler, queue: queue, audit: audit}
}

// Reconcile handles POST /api/admin/reconcile. With a task queue the run is
// enqueued and answered with 202; otherwise it runs inline.
func (mc *MaintenanceController) Reconcile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if mc.queue != nil {
		id, err := mc.queue.Enqueue(tasks.ReconcileTask{Trigger: "admin"})
		if err != nil {
			respondInternalError(c, err, "enqueue reconcile")
			return
		}
		respondAccepted(c, gin.H{"task_id": id, "message": "task enqueued"})
		return
	}

	if mc.reconciler == nil {
		respondError(c, http.StatusServiceUnavailable, "reconciliation is not available")
		return
	}
	result, err := mc.reconciler.Run(c.Request.Context())
	mc.audit.LogReconcile(actor, result.Resolved, result.Failed, result.Retried, err)
	if err != nil {
		respondInternalError(c, err, "reconcile")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTaskStatus handles GET /api/admin/tasks/:id
func (mc *MaintenanceController) GetTaskStatus(c *gin.Context) {
	if mc.queue == nil {
		respondNotFound(c, "task queue")
		return
	}
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()

	status, err := mc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c, "task")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": taskStatusToString(status),
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
