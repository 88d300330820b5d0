// Package jobs holds the background task definitions and the Asynq
// worker that processes them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRecordSave is the task type for audit-trail entries
	// enqueued after every committed document save.
	TaskTypeRecordSave = "audit:record_save"
)

// NewRecordSaveTask constructs the audit-trail task for a save record.
func NewRecordSaveTask(rec billing.SaveRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecordSave, payload, asynq.Queue(QueueDefault)), nil
}

// DecodeRecordSaveTask unpacks the payload of a TaskTypeRecordSave task.
func DecodeRecordSaveTask(t *asynq.Task) (billing.SaveRecord, error) {
	var rec billing.SaveRecord
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		return billing.SaveRecord{}, err
	}
	return rec, nil
}
