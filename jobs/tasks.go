package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDormancyScan runs a full dormant negative-balance scan.
	TaskDormancyScan = "closurewatch:dormancy_scan"
)

// DormancyScanPayload describes what started a queued scan.
type DormancyScanPayload struct {
	Trigger      scan.Trigger `json:"trigger"`
	ScheduledFor *time.Time   `json:"scheduled_for,omitempty"`
}

// NewDormancyScanTask constructs an Asynq task for a dormancy scan.
func NewDormancyScanTask(payload DormancyScanPayload) (*asynq.Task, error) {
	if payload.Trigger == "" {
		payload.Trigger = scan.TriggerScheduled
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDormancyScan, data), nil
}
