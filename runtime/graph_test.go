package runtime

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Esclender/dai-assistant/types"
)

func noopTask(ctx types.Context, args []any, inputs types.Data) (any, error) {
	return nil, nil
}

func TestAddTaskValidation(t *testing.T) {
	graph := NewTaskGraph()

	err := graph.AddTask("", noopTask)
	assert.True(t, errors.IsBadRequest(err))

	err = graph.AddTask("a", nil)
	assert.True(t, errors.IsBadRequest(err))

	assert.Nil(t, graph.AddTask("a", noopTask))
	err = graph.AddTask("a", noopTask)
	assert.True(t, errors.IsAlreadyExists(err))

	err = graph.AddTask("b", noopTask, WithDependsOn("b"))
	assert.True(t, errors.IsBadRequest(err))

	// depending on a task that is not declared yet is allowed here;
	// it only surfaces when the graph runs
	assert.Nil(t, graph.AddTask("c", noopTask, WithDependsOn("ghost")))
}

func TestTaskDeclarationOrder(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("z", noopTask))
	assert.Nil(t, graph.AddTask("a", noopTask, WithDependsOn("z")))
	assert.Nil(t, graph.AddTask("m", noopTask))

	tasks := graph.Tasks()
	assert.Equal(t, 3, graph.Len())
	assert.Equal(t, "z", tasks[0].ID)
	assert.Equal(t, "a", tasks[1].ID)
	assert.Equal(t, "m", tasks[2].ID)

	task, exists := graph.Task("a")
	assert.True(t, exists)
	assert.Equal(t, []string{"z"}, task.DependsOn)
	assert.Equal(t, types.Pending, task.Status())

	_, exists = graph.Task("nope")
	assert.False(t, exists)
}

func TestAddTaskDedupesDependencies(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("dep", noopTask))
	assert.Nil(t, graph.AddTask("a", noopTask, WithDependsOn("dep", "dep", "dep")))

	task, _ := graph.Task("a")
	assert.Equal(t, []string{"dep"}, task.DependsOn)
}

func TestTaskOptionsBindInputs(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("a", noopTask,
		WithArgs("pos1", 2),
		WithInputs(types.Data{"style": "dark"}),
		WithInputs(types.Data{"lang": "go"}),
	))

	task, _ := graph.Task("a")
	assert.Equal(t, []any{"pos1", 2}, task.Args)
	style, _ := task.NamedInputs.GetString("style")
	lang, _ := task.NamedInputs.GetString("lang")
	assert.Equal(t, "dark", style)
	assert.Equal(t, "go", lang)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, canSetStatus(types.Pending, types.Running))
	assert.True(t, canSetStatus(types.Running, types.Completed))
	assert.True(t, canSetStatus(types.Running, types.Failed))

	assert.False(t, canSetStatus(types.Pending, types.Completed))
	assert.False(t, canSetStatus(types.Pending, types.Failed))
	assert.False(t, canSetStatus(types.Completed, types.Running))
	assert.False(t, canSetStatus(types.Failed, types.Running))
	assert.False(t, canSetStatus(types.Completed, types.Failed))
	assert.False(t, canSetStatus(types.Running, types.Pending))
}

func TestSetStatusForbidden(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("a", noopTask))

	task, _ := graph.Task("a")
	assert.Nil(t, graph.setStatus(task, types.Running))
	assert.Nil(t, graph.setStatus(task, types.Completed))

	err := graph.setStatus(task, types.Running)
	assert.True(t, errors.IsForbidden(err))
	assert.Equal(t, types.Completed, task.Status())
}
