package semgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypeWeight(t *testing.T) {
	assert.Equal(t, 1.0, TypeWeight(NodeTypeGoal))
	assert.Equal(t, 0.8, TypeWeight(NodeTypeFeeling))
	assert.Equal(t, 0.7, TypeWeight(NodeTypeQuestion))
	assert.Equal(t, 0.7, TypeWeight(NodeTypeIdea))
	assert.Equal(t, 0.6, TypeWeight(NodeTypeFact))
	assert.Equal(t, 0.5, TypeWeight(NodeType("mystery")))
}

func TestComputeImportanceBounds(t *testing.T) {
	now := time.Now()
	nodes := []*Node{
		{NodeType: NodeTypeGoal, Connections: 100, CreatedAt: now},
		{NodeType: NodeTypeFact, Connections: 0, CreatedAt: now.Add(-365 * 24 * time.Hour)},
		{NodeType: NodeType("mystery"), Connections: 3, CreatedAt: now.Add(time.Hour)}, // future timestamp
	}
	for _, node := range nodes {
		score := ComputeImportance(node, now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestComputeImportanceFreshGoalMaxes(t *testing.T) {
	now := time.Now()
	node := &Node{NodeType: NodeTypeGoal, Connections: ImportanceMaxDegree, CreatedAt: now}
	assert.InDelta(t, 1.0, ComputeImportance(node, now), 1e-9,
		"fresh goal at full degree scores the maximum")
}

func TestComputeImportanceDegreeSaturates(t *testing.T) {
	now := time.Now()
	saturated := &Node{NodeType: NodeTypeFact, Connections: ImportanceMaxDegree, CreatedAt: now}
	oversized := &Node{NodeType: NodeTypeFact, Connections: ImportanceMaxDegree * 5, CreatedAt: now}
	assert.Equal(t, ComputeImportance(saturated, now), ComputeImportance(oversized, now))
}

func TestComputeImportanceRecencyHalfLife(t *testing.T) {
	now := time.Now()
	fresh := &Node{NodeType: NodeTypeFact, CreatedAt: now}
	halved := &Node{NodeType: NodeTypeFact, CreatedAt: now.Add(-ImportanceRecencyHalfLife)}

	// One half-life of age removes exactly half the recency share.
	diff := ComputeImportance(fresh, now) - ComputeImportance(halved, now)
	assert.InDelta(t, 0.25*0.5, diff, 1e-9)
}

func TestComputeImportanceTypeOrdering(t *testing.T) {
	now := time.Now()
	score := func(nt NodeType) float64 {
		return ComputeImportance(&Node{NodeType: nt, Connections: 2, CreatedAt: now}, now)
	}
	assert.Greater(t, score(NodeTypeGoal), score(NodeTypeFeeling))
	assert.Greater(t, score(NodeTypeFeeling), score(NodeTypeFact))
}
