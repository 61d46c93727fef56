package types

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

var (
	QueueTypeSyncCycle = "sync:cycle"
)

// SyncTask is the payload of a queued background sync cycle
type SyncTask struct {
	Reason string `json:"reason,omitempty"` // "boot", "cron", "scheduled", "manual"
}

func NewSyncCycleTask(task *SyncTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(QueueTypeSyncCycle, payload), nil
}
