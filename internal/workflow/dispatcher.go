package workflow

import (
	"context"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"
)

// Dispatcher starts ProcessBackupWorkflow on a Temporal task queue. It
// returns once the workflow is accepted by the server.
type Dispatcher struct {
	tc        temporalclient.Client
	taskQueue string
}

func NewDispatcher(tc temporalclient.Client, taskQueue string) *Dispatcher {
	return &Dispatcher{tc: tc, taskQueue: taskQueue}
}

func (d *Dispatcher) Dispatch(ctx context.Context, jobID string) error {
	_, err := d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        WorkflowID(jobID),
		TaskQueue: d.taskQueue,
	}, "ProcessBackupWorkflow", jobID)
	if err != nil {
		return fmt.Errorf("start ProcessBackupWorkflow: %w", err)
	}
	return nil
}

// WorkflowID is the workflow id used for a backup job. One job maps to at
// most one running workflow.
func WorkflowID(jobID string) string {
	return "process-backup-" + jobID
}
