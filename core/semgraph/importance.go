package semgraph

import (
	"math"
	"time"
)

// Importance scoring blends three signals: what kind of snippet a node is,
// how connected it is, and how recently it was captured. Scores are mutable
// and recalculated on every structural change.

// Blend weights for the three importance terms. They sum to 1 so the final
// score stays in [0, 1].
const (
	importanceTypeShare       = 0.4
	importanceDegreeShare     = 0.35
	importanceRecencyShare    = 0.25
	importanceTypeWeightOther = 0.5
)

// typeWeights stratifies snippet types: goals outrank feelings outrank facts.
var typeWeights = map[NodeType]float64{
	NodeTypeGoal:     1.0,
	NodeTypeFeeling:  0.8,
	NodeTypeQuestion: 0.7,
	NodeTypeIdea:     0.7,
	NodeTypeFact:     0.6,
}

// TypeWeight returns the importance base weight for a node type.
func TypeWeight(nt NodeType) float64 {
	if w, ok := typeWeights[nt]; ok {
		return w
	}
	return importanceTypeWeightOther
}

// ComputeImportance scores a node from its type weight, connectivity
// (saturating at ImportanceMaxDegree edges), and recency (half-life decay
// with ImportanceRecencyHalfLife). The result is clamped to [0, 1].
func ComputeImportance(node *Node, now time.Time) float64 {
	degree := float64(node.Connections) / float64(ImportanceMaxDegree)
	if degree > 1 {
		degree = 1
	}

	age := node.Age(now)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-age.Hours() / ImportanceRecencyHalfLife.Hours())

	score := importanceTypeShare*TypeWeight(node.NodeType) +
		importanceDegreeShare*degree +
		importanceRecencyShare*recency

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
