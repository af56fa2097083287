package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Esclender/dai-assistant/types"
)

func NewExecutor(options *types.ExecuteOptions) *Executor {
	if options == nil {
		options = types.NewExecuteOptions()
	}
	return &Executor{options: options}
}

/**
 * Executor drives a TaskGraph to completion in rounds: select the
 * ready set, launch at most MaxConcurrent of it on a worker pool, wait
 * for the whole batch at a join barrier, record results, repeat. Tasks
 * never touch shared state; they return a value and the executor alone
 * writes results, statuses and the completed set.
 *
 * Retry and fallback policies are the business of the injected
 * operations. The executor propagates the first failure of a batch
 * after its siblings finish and starts no further rounds.
 */
type Executor struct {
	options *types.ExecuteOptions
}

// Run executes every task of the graph respecting dependency order.
// On success the returned Data maps each task id to its result. On
// failure no partial results are returned.
func (e *Executor) Run(ctx context.Context, graph *TaskGraph) (types.Data, error) {
	if graph == nil {
		return nil, errors.BadRequestf("graph is nil")
	}
	maxConcurrent := e.options.MaxConcurrent
	if maxConcurrent < 1 {
		return nil, errors.BadRequestf("max concurrent must be >= 1, got %d", maxConcurrent)
	}
	runID := e.options.RunID
	if runID == "" {
		runID = generateRunID()
	}

	graph.resetForRun()

	wp := workerpool.New(maxConcurrent)
	defer wp.StopWait()

	completed := make(map[string]bool)
	results := types.Data{}
	round := 0

	for len(completed) < graph.Len() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}

		ready := graph.readyTasks(completed)
		if len(ready) == 0 {
			// nothing runnable but tasks remain: structural defect
			return nil, errors.Trace(deadlockError(graph, completed))
		}

		batch := ready
		if len(batch) > maxConcurrent {
			batch = batch[:maxConcurrent]
		}

		round++
		log.Debugf("%s round %d: launching %d of %d ready tasks", runID, round, len(batch), len(ready))

		// each worker writes only its own slot
		batchResults := make([]any, len(batch))
		batchErrs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, task := range batch {
			e.setStatus(graph, task, types.Running)
			inputs := buildInputs(task, results)
			taskCtx := newRunContext(ctx, runID, task.ID)

			wg.Add(1)
			wp.Submit(func() {
				defer wg.Done()
				batchResults[i], batchErrs[i] = task.Operation(taskCtx, task.Args, inputs)
			})
		}
		wg.Wait()

		var firstErr error
		for i, task := range batch {
			if batchErrs[i] != nil {
				e.setStatus(graph, task, types.Failed)
				if firstErr == nil {
					firstErr = errors.Annotatef(batchErrs[i], "task %s failed", task.ID)
				}
				continue
			}
			task.result = batchResults[i]
			e.setStatus(graph, task, types.Completed)
			results.Set(task.ID, batchResults[i])
			completed[task.ID] = true
		}
		if firstErr != nil {
			log.Errorf("%s aborted at round %d: %v", runID, round, firstErr)
			return nil, firstErr
		}
	}

	log.Debugf("%s finished %d tasks in %d rounds", runID, graph.Len(), round)
	return results, nil
}

func (e *Executor) setStatus(graph *TaskGraph, task *Task, status types.StatusType) {
	if err := graph.setStatus(task, status); err != nil {
		log.Errorf("task %s: %v", task.ID, err)
	}
}

// buildInputs assembles the effective named inputs of a task: its
// declared inputs plus, for every dependency whose key is still free,
// the dependency's result under "<depID>_result". Declared keys win.
func buildInputs(task *Task, results types.Data) types.Data {
	inputs := task.NamedInputs.Clone()
	for _, dep := range task.DependsOn {
		key := dep + "_result"
		if _, exists := inputs.Get(key); exists {
			continue
		}
		inputs.Set(key, results[dep])
	}
	return inputs
}

func deadlockError(graph *TaskGraph, completed map[string]bool) error {
	stuck := make([]string, 0)
	for _, task := range graph.Tasks() {
		if completed[task.ID] {
			continue
		}
		missing := make([]string, 0, len(task.DependsOn))
		for _, dep := range task.DependsOn {
			if !completed[dep] {
				missing = append(missing, dep)
			}
		}
		stuck = append(stuck, fmt.Sprintf("%s waiting on [%s]", task.ID, strings.Join(missing, ", ")))
	}
	return types.NewDependencyErrorf("deadlock detected in dependency graph: %s", strings.Join(stuck, "; "))
}

func generateRunID() string {
	return fmt.Sprintf("run-%d", time.Now().UnixNano())
}
