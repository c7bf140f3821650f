// Package jobs wires Asynq background tasks for dispatch maintenance.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryRefresh re-freezes the aggregates of completed deliveries.
	TaskSummaryRefresh = "dispatch:summary:refresh"
)

// SummaryRefreshPayload selects what to refresh: one delivery, or a sweep of
// everything completed since the cutoff.
type SummaryRefreshPayload struct {
	DeliveryID int64     `json:"delivery_id,omitempty"`
	Sweep      bool      `json:"sweep,omitempty"`
	Since      time.Time `json:"since,omitempty"`
}

// NewSummaryRefreshTask constructs an Asynq task.
func NewSummaryRefreshTask(payload SummaryRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryRefresh, data), nil
}
