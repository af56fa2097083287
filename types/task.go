package types

import "time"

// TaskHandler is the operation a task wraps: positional args bound at
// declaration time plus the named inputs the executor assembles
// (declared inputs first, then one "<depID>_result" entry per
// dependency whose key is still free), returning the task's result.
type TaskHandler func(ctx Context, args []any, inputs Data) (any, error)

// ExecutionRecord captures one finished task execution for run history.
type ExecutionRecord struct {
	RunID     string
	TaskID    string
	AgentName string
	StartTime time.Time
	EndTime   time.Time
	Status    StatusType
	Error     string
}
