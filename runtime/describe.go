package runtime

import "strings"

// Describe renders the dependency structure as a consumer tree: roots
// are the tasks with no dependencies, children are the tasks that list
// the parent as a dependency. Each task appears at most once, under
// the first parent that reaches it. Diagnostic only; never touches
// execution state.
func (g *TaskGraph) Describe() string {
	tasks := g.Tasks()

	roots := make([]string, 0)
	consumers := make(map[string][]string)
	for _, task := range tasks {
		if len(task.DependsOn) == 0 {
			roots = append(roots, task.ID)
		}
		for _, dep := range task.DependsOn {
			consumers[dep] = append(consumers[dep], task.ID)
		}
	}

	lines := []string{"Task Dependency Graph:"}
	visited := make(map[string]bool)

	type frame struct {
		id    string
		depth int
	}
	// explicit stack instead of recursion, pushed in reverse so
	// declaration order pops first
	stack := make([]frame, 0, len(tasks))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: roots[i], depth: 0})
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		lines = append(lines, strings.Repeat("  ", current.depth)+"└─ "+current.id)

		children := consumers[current.id]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], depth: current.depth + 1})
		}
	}

	return strings.Join(lines, "\n")
}
