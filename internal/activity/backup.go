package activity

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/backupvault/internal/core"
	"github.com/edvin/backupvault/internal/model"
)

// BackupRunner is the part of core.BackupService the activities drive.
type BackupRunner interface {
	Start(ctx context.Context, jobID string) (*model.BackupJob, error)
	Execute(ctx context.Context, job *model.BackupJob) core.Outcome
	Complete(ctx context.Context, jobID string, outcome core.Outcome) error
	Fail(ctx context.Context, jobID, reason string) error
}

// Backup contains the activities of ProcessBackupWorkflow.
type Backup struct {
	runner BackupRunner
}

// NewBackup creates a new Backup activity struct.
func NewBackup(runner BackupRunner) *Backup {
	return &Backup{runner: runner}
}

// CompleteBackupParams holds the parameters for CompleteBackup.
type CompleteBackupParams struct {
	ID      string
	Outcome core.Outcome
}

// FailBackupParams holds the parameters for FailBackup.
type FailBackupParams struct {
	ID     string
	Reason string
}

// StartBackup claims a pending job. A job that is no longer pending is a
// non-retryable error.
func (a *Backup) StartBackup(ctx context.Context, id string) (*model.BackupJob, error) {
	job, err := a.runner.Start(ctx, id)
	if errors.Is(err, core.ErrNotPending) || errors.Is(err, core.ErrNotFound) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "BackupNotPending", err)
	}
	return job, err
}

// RunBackup exports and uploads. Domain failures come back in the outcome,
// so an activity error always means the activity itself broke.
func (a *Backup) RunBackup(ctx context.Context, job model.BackupJob) (*core.Outcome, error) {
	outcome := a.runner.Execute(ctx, &job)
	return &outcome, nil
}

// CompleteBackup records a successful outcome.
func (a *Backup) CompleteBackup(ctx context.Context, params CompleteBackupParams) error {
	return a.runner.Complete(ctx, params.ID, params.Outcome)
}

// FailBackup records a failure reason.
func (a *Backup) FailBackup(ctx context.Context, params FailBackupParams) error {
	return a.runner.Fail(ctx, params.ID, params.Reason)
}
