package runtime

import (
	"context"

	"github.com/Esclender/dai-assistant/types"
)

var (
	_ types.Context = &runContext{}
)

// runContext is the context handed to task operations: the caller's
// context plus the identity of the run and the task being executed.
type runContext struct {
	context.Context

	runID  string
	taskID string
}

func newRunContext(ctx context.Context, runID, taskID string) *runContext {
	return &runContext{Context: ctx, runID: runID, taskID: taskID}
}

func (r *runContext) GetRunID() string {
	return r.runID
}

func (r *runContext) GetCurrentTask() string {
	return r.taskID
}
