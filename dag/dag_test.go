package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssignsSequentialIDs(t *testing.T) {
	nodes, err := Build([]StepSpec{
		{Plugin: "uppercase"},
		{Plugin: "reverse", InputFrom: "step1"},
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "step1", nodes[0].ID)
	assert.Equal(t, "step2", nodes[1].ID)
	assert.Equal(t, []string{"step1"}, nodes[1].Parents)
}

func TestBuildUnionsInputFromAndDependsOn(t *testing.T) {
	nodes, err := Build([]StepSpec{
		{Plugin: "a"},
		{Plugin: "b"},
		{Plugin: "c", InputFrom: "step1", DependsOn: []string{"step1", "step2"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"step1", "step2"}, nodes[2].Parents)
}

func TestBuildUnknownParentIsError(t *testing.T) {
	_, err := Build([]StepSpec{
		{Plugin: "a", InputFrom: "step99"},
	})
	assert.Error(t, err)
}

func TestTopoSortOrdersParentsBeforeChildren(t *testing.T) {
	nodes, err := Build([]StepSpec{
		{Plugin: "a"},
		{Plugin: "b", InputFrom: "step1"},
		{Plugin: "c", InputFrom: "step2"},
	})
	require.NoError(t, err)

	order, err := TopoSort(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"step1", "step2", "step3"}, order)
}

func TestTopoSortDetectsCycle(t *testing.T) {
	nodes := []*Node{
		{ID: "step1", Parents: []string{"step2"}},
		{ID: "step2", Parents: []string{"step1"}},
	}
	_, err := TopoSort(nodes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestTopoSortDiamond(t *testing.T) {
	nodes, err := Build([]StepSpec{
		{Plugin: "a"},
		{Plugin: "b", InputFrom: "step1"},
		{Plugin: "c", DependsOn: []string{"step1"}},
		{Plugin: "d", DependsOn: []string{"step2", "step3"}},
	})
	require.NoError(t, err)

	order, err := TopoSort(nodes)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["step1"], pos["step2"])
	assert.Less(t, pos["step1"], pos["step3"])
	assert.Less(t, pos["step2"], pos["step4"])
	assert.Less(t, pos["step3"], pos["step4"])
}
