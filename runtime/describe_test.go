package runtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeChain(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("fetch", noopTask))
	assert.Nil(t, graph.AddTask("parse", noopTask, WithDependsOn("fetch")))
	assert.Nil(t, graph.AddTask("store", noopTask, WithDependsOn("parse")))

	tree := graph.Describe()
	fmt.Printf("%s\n", tree)

	expected := "Task Dependency Graph:\n" +
		"└─ fetch\n" +
		"  └─ parse\n" +
		"    └─ store"
	assert.Equal(t, expected, tree)
}

func TestDescribeDiamond(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("A", noopTask))
	assert.Nil(t, graph.AddTask("B", noopTask))
	assert.Nil(t, graph.AddTask("C", noopTask, WithDependsOn("A", "B")))

	tree := graph.Describe()
	fmt.Printf("%s\n", tree)

	// C renders once, under the first root that reaches it
	expected := "Task Dependency Graph:\n" +
		"└─ A\n" +
		"  └─ C\n" +
		"└─ B"
	assert.Equal(t, expected, tree)
}

func TestDescribeFanOut(t *testing.T) {
	graph := NewTaskGraph()
	assert.Nil(t, graph.AddTask("root", noopTask))
	assert.Nil(t, graph.AddTask("left", noopTask, WithDependsOn("root")))
	assert.Nil(t, graph.AddTask("right", noopTask, WithDependsOn("root")))
	assert.Nil(t, graph.AddTask("join", noopTask, WithDependsOn("left", "right")))

	expected := "Task Dependency Graph:\n" +
		"└─ root\n" +
		"  └─ left\n" +
		"    └─ join\n" +
		"  └─ right"
	assert.Equal(t, expected, graph.Describe())
}

func TestDescribeEmpty(t *testing.T) {
	assert.Equal(t, "Task Dependency Graph:", NewTaskGraph().Describe())
}
