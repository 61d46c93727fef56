package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/hibiken/asynq"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/services"
	"github.com/keywatch/go-keywatch-client/types"
)

// SyncQueue runs background sync cycles off the task queue and keeps the
// next cycle scheduled. A cycle failure is not a task failure: the outcome
// is logged, the next attempt is enqueued, and the task completes.
type SyncQueue struct {
	orchestrator *services.Orchestrator
	taskClient   *asynq.Client
}

func NewSyncQueue(orchestrator *services.Orchestrator, taskClient *asynq.Client) *SyncQueue {
	return &SyncQueue{
		orchestrator: orchestrator,
		taskClient:   taskClient,
	}
}

// ProcessSyncCycleTask handles one queued sync trigger
func (sq *SyncQueue) ProcessSyncCycleTask(ctx context.Context, t *asynq.Task) error {
	var task types.SyncTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	outcome := sq.orchestrator.RunCycle(ctx)
	if outcome.Skipped {
		// single-flight: an in-progress cycle absorbs this trigger
		level.Debug(global.Logger).Log("message", "sync trigger absorbed, cycle already running", "reason", task.Reason)
		return nil
	}

	if err := sq.ScheduleNext(outcome.NextAttempt); err != nil {
		level.Error(global.Logger).Log("error", err, "message", "failed to schedule next sync cycle")
	}
	return nil
}

// ScheduleNext enqueues the following cycle at the given time. Scheduling is
// idempotent per attempt time: a duplicate of an already queued attempt is
// silently dropped.
func (sq *SyncQueue) ScheduleNext(at time.Time) error {
	task, err := types.NewSyncCycleTask(&types.SyncTask{Reason: "scheduled"})
	if err != nil {
		return err
	}
	_, eErr := sq.taskClient.Enqueue(task,
		asynq.ProcessAt(at),
		asynq.TaskID(fmt.Sprintf("sync:cycle:%d", at.Unix())),
	)
	if eErr != nil && !errors.Is(eErr, asynq.ErrDuplicateTask) && !errors.Is(eErr, asynq.ErrTaskIDConflict) {
		return eErr
	}
	return nil
}

// EnqueueNow triggers a cycle immediately (boot, cron backstop, manual)
func (sq *SyncQueue) EnqueueNow(reason string) error {
	task, err := types.NewSyncCycleTask(&types.SyncTask{Reason: reason})
	if err != nil {
		return err
	}
	_, eErr := sq.taskClient.Enqueue(task)
	return eErr
}
