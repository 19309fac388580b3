package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/coursemarket/internal/reconcile"
)

const reconcileQueue = "reconcile_compensations"

type Reconciler interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

// ReconcileTask runs one reconciler batch. Trigger says who asked for it
// ("schedule" or "admin").
type ReconcileTask struct {
	Trigger string `json:"trigger"`
}

func (t ReconcileTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        reconcileQueue,
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func ReconcileProcessor(r Reconciler) backlite.QueueProcessor[ReconcileTask] {
	return func(ctx context.Context, task ReconcileTask) error {
		if r == nil {
			return errors.New("reconciler not configured")
		}
		result, err := r.Run(ctx)
		if err != nil {
			return fmt.Errorf("reconcile (%s): %w", task.Trigger, err)
		}
		log.Printf("[TASK] Reconcile (%s): resolved %d, retrying %d, failed %d",
			task.Trigger, result.Resolved, result.Retried, result.Failed)
		return nil
	}
}

func NewReconcileQueue(r Reconciler, rec Recorder) backlite.Queue {
	return backlite.NewQueue(observed(reconcileQueue, rec, ReconcileProcessor(r)))
}
