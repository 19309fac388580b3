package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
)

// Recorder receives one call per processed task.
type Recorder interface {
	RecordTask(queue, status string, start time.Time)
}

func observed[T backlite.Task](queue string, rec Recorder, fn backlite.QueueProcessor[T]) backlite.QueueProcessor[T] {
	if rec == nil {
		return fn
	}
	return func(ctx context.Context, task T) error {
		start := time.Now()
		err := fn(ctx, task)
		status := "success"
		if err != nil {
			status = "failed"
		}
		rec.RecordTask(queue, status, start)
		return err
	}
}
