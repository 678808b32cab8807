package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/backupvault/internal/activity"
	"github.com/edvin/backupvault/internal/core"
	"github.com/edvin/backupvault/internal/model"
)

// ProcessBackupWorkflow drives one backup job from pending to a terminal
// state. The export and upload run exactly once; a failed run is recorded,
// never retried.
func ProcessBackupWorkflow(ctx workflow.Context, backupID string) error {
	dbCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var job model.BackupJob
	if err := workflow.ExecuteActivity(dbCtx, "StartBackup", backupID).Get(ctx, &job); err != nil {
		// A job that is no longer pending belongs to another run or is done.
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) || appErr.Type() != "BackupNotPending" {
			_ = setBackupFailed(dbCtx, backupID, core.ReasonInternal)
		}
		return err
	}

	var outcome core.Outcome
	if err := workflow.ExecuteActivity(runCtx, "RunBackup", job).Get(ctx, &outcome); err != nil {
		_ = setBackupFailed(dbCtx, backupID, core.ReasonInternal)
		return err
	}

	if outcome.FailureReason != "" {
		return setBackupFailed(dbCtx, backupID, outcome.FailureReason)
	}

	err := workflow.ExecuteActivity(dbCtx, "CompleteBackup", activity.CompleteBackupParams{
		ID:      backupID,
		Outcome: outcome,
	}).Get(ctx, nil)
	if err != nil {
		_ = setBackupFailed(dbCtx, backupID, core.ReasonInternal)
		return err
	}
	return nil
}

func setBackupFailed(ctx workflow.Context, backupID, reason string) error {
	return workflow.ExecuteActivity(ctx, "FailBackup", activity.FailBackupParams{
		ID:     backupID,
		Reason: reason,
	}).Get(ctx, nil)
}
