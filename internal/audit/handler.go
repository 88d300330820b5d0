package audit

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ledgerkite/ledgerkite/jobs"
)

// NewTaskHandler binds the audit repository to the record-save task for
// worker registration.
func NewTaskHandler(repo *Repository, logger *slog.Logger) jobs.TaskHandler {
	return jobs.TaskHandler{
		Type: jobs.TaskTypeRecordSave,
		Handler: func(ctx context.Context, t *asynq.Task) error {
			rec, err := jobs.DecodeRecordSaveTask(t)
			if err != nil {
				logger.Error("audit: malformed save record task", slog.Any("error", err))
				return asynq.SkipRetry
			}
			return repo.Insert(ctx, rec)
		},
	}
}
