package runtime

import (
	"sync"

	"github.com/juju/errors"

	"github.com/Esclender/dai-assistant/types"
	"github.com/Esclender/dai-assistant/utils"
)

// Task is one schedulable unit of work: an injected operation plus the
// ids of the tasks that must complete before it becomes ready.
type Task struct {
	ID          string
	DependsOn   []string
	Operation   types.TaskHandler
	Args        []any
	NamedInputs types.Data

	status types.StatusType
	result any
}

func (t *Task) Status() types.StatusType {
	return t.status
}

func (t *Task) Result() any {
	return t.result
}

type TaskOption func(*Task)

func WithDependsOn(ids ...string) TaskOption {
	return func(t *Task) {
		t.DependsOn = append(t.DependsOn, ids...)
	}
}

func WithArgs(args ...any) TaskOption {
	return func(t *Task) {
		t.Args = append(t.Args, args...)
	}
}

func WithInputs(inputs types.Data) TaskOption {
	return func(t *Task) {
		for k, v := range inputs {
			t.NamedInputs.Set(k, v)
		}
	}
}

func NewTaskGraph() *TaskGraph {
	return &TaskGraph{tasks: make(map[string]*Task)}
}

/**
 * TaskGraph owns the declared tasks and their dependency edges.
 * Correctness does not depend on declaration order, but every
 * enumeration (ready-set selection, diagnostics) follows it so runs
 * stay deterministic.
 *
 * A dependency id may be declared before the task it names exists; it
 * must exist by run time or the run fails as a deadlock.
 *
 * A graph supports sequential runs, each starting from a clean slate.
 * Overlapping runs of the same graph are not supported: statuses and
 * results are per-graph state.
 */
type TaskGraph struct {
	mu sync.Mutex

	tasks map[string]*Task
	order []string
}

func (g *TaskGraph) AddTask(id string, operation types.TaskHandler, options ...TaskOption) error {
	if id == "" {
		return errors.BadRequestf("task id is empty")
	}
	if operation == nil {
		return errors.BadRequestf("task %s operation is nil", id)
	}

	task := &Task{
		ID:          id,
		Operation:   operation,
		NamedInputs: types.Data{},
		status:      types.Pending,
	}
	for _, option := range options {
		option(task)
	}
	task.DependsOn = utils.UniqueSlice(task.DependsOn)
	for _, dep := range task.DependsOn {
		if dep == id {
			return errors.BadRequestf("task %s depends on itself", id)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[id]; exists {
		return errors.AlreadyExistsf("task: %s", id)
	}
	g.tasks[id] = task
	g.order = append(g.order, id)
	return nil
}

func (g *TaskGraph) Task(id string) (*Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[id]
	return task, exists
}

// Tasks returns all tasks in declaration order.
func (g *TaskGraph) Tasks() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, g.tasks[id])
	}
	return tasks
}

func (g *TaskGraph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.tasks)
}

// readyTasks selects, in declaration order, the tasks that are not yet
// completed and whose every dependency id is in the completed set.
func (g *TaskGraph) readyTasks(completed map[string]bool) []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	ready := make([]*Task, 0)
	for _, id := range g.order {
		if completed[id] {
			continue
		}
		task := g.tasks[id]
		satisfied := true
		for _, dep := range task.DependsOn {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, task)
		}
	}
	return ready
}

// resetForRun returns every task to Pending with no result, so one
// graph can be driven through sequential runs from a clean slate.
func (g *TaskGraph) resetForRun() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range g.tasks {
		task.status = types.Pending
		task.result = nil
	}
}

func (g *TaskGraph) setStatus(task *Task, status types.StatusType) error {
	if !canSetStatus(task.status, status) {
		return errors.Forbiddenf("unsupport to set status from %v to %v",
			task.status, status)
	}
	task.status = status
	return nil
}

// canSetStatus encodes the task lifecycle: Pending -> Running ->
// {Completed, Failed}, the last two terminal.
func canSetStatus(currentStatus, status types.StatusType) bool {
	switch status {
	case types.Running:
		return currentStatus == types.Pending

	case types.Completed, types.Failed:
		return currentStatus == types.Running

	default:
		return false
	}
}
