// Package audit persists the trail of committed document saves. Saves
// enqueue a background task; the worker writes the trail row, so a slow
// or unavailable audit store never delays a user's save.
package audit

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ledgerkite/ledgerkite/internal/billing"
	"github.com/ledgerkite/ledgerkite/jobs"
)

// Recorder implements billing.SaveRecorder by enqueuing an Asynq task
// per committed save.
type Recorder struct {
	client *asynq.Client
}

// NewRecorder constructs a Recorder.
func NewRecorder(client *asynq.Client) *Recorder {
	return &Recorder{client: client}
}

// RecordSave implements billing.SaveRecorder.
func (r *Recorder) RecordSave(ctx context.Context, rec billing.SaveRecord) error {
	task, err := jobs.NewRecordSaveTask(rec)
	if err != nil {
		return fmt.Errorf("audit: encode save record: %w", err)
	}
	if _, err := r.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("audit: enqueue save record: %w", err)
	}
	return nil
}
