package runtime

import (
	"fmt"
	"strings"

	"github.com/Esclender/dai-assistant/types"
)

// RenderDOT renders the graph in Graphviz DOT form: one record-shaped
// node per task, one edge per dependency. Nodes are filled with the
// task's current status color, so rendering after a run doubles as a
// visual run report. Diagnostic only; never touches execution state.
func (g *TaskGraph) RenderDOT() string {
	renderer := newDOTRenderer()
	return renderer.render(g)
}

func newDOTRenderer() *dotRenderer {
	return &dotRenderer{sb: &strings.Builder{}}
}

type dotRenderer struct {
	sb *strings.Builder
}

func (d *dotRenderer) render(g *TaskGraph) string {
	d.write("digraph tasks {")
	for _, task := range g.Tasks() {
		d.write("%s [label=%s shape=\"record\" style=\"filled\" color=\"%s\"]",
			idString(task.ID), quoteString(task.ID), statusColor(task.Status()))
	}
	for _, task := range g.Tasks() {
		for _, dep := range task.DependsOn {
			d.write("%s -> %s", idString(dep), idString(task.ID))
		}
	}
	d.write("}")
	return d.sb.String()
}

func (d *dotRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

func statusColor(status types.StatusType) string {
	switch status {
	case types.Running:
		return "yellow"
	case types.Completed:
		return "green"
	case types.Failed:
		return "red"
	}
	return "white"
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", "."}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
