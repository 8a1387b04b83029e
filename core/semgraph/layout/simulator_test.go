package layout

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/constel/core/semgraph"
)

func testSnapshot(rng *rand.Rand, n, clusterCount int) *semgraph.GraphSnapshot {
	now := time.Now()
	nodes := make([]*semgraph.Node, n)
	knn := make([][]int, n)
	for i := range nodes {
		nodes[i] = &semgraph.Node{
			ID:        int64(i + 1),
			NodeType:  semgraph.NodeTypeIdea,
			CreatedAt: now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
		}
		if clusterCount > 0 {
			clusterID := int64(i%clusterCount + 1)
			nodes[i].ClusterID = &clusterID
		}

		// A couple of in-range neighbors plus a sentinel slot, like a real
		// KNN list with too few qualifying neighbors.
		knn[i] = []int{(i + 1) % n, (i + 2) % n, semgraph.KNNSentinel}
	}
	return &semgraph.GraphSnapshot{Nodes: nodes, KNN: knn, CreatedAt: now}
}

func newTestSimulator(seed int64) *Simulator {
	return New(DefaultConfig(), rand.New(rand.NewSource(seed)), nil)
}

func requireFinitePositions(t *testing.T, s *Simulator) {
	t.Helper()
	for i, p := range s.Positions() {
		for axis, v := range map[string]float64{"x": p.X, "y": p.Y, "z": p.Z} {
			require.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0),
				"node %d %s = %v", i, axis, v)
		}
	}
}

func TestTickStaysFiniteUnderStress(t *testing.T) {
	s := newTestSimulator(17)
	s.ApplySnapshot(testSnapshot(rand.New(rand.NewSource(17)), 50, 3))

	// Two exactly coincident nodes: the degenerate repulsion case.
	s.px[0], s.py[0], s.pz[0] = 1.5, -2.0, 0.5
	s.px[1], s.py[1], s.pz[1] = 1.5, -2.0, 0.5

	for tick := 0; tick < 10000; tick++ {
		s.Tick(1.0 / 60.0)
	}
	requireFinitePositions(t, s)

	// Coincident nodes separated.
	dx := s.px[0] - s.px[1]
	dy := s.py[0] - s.py[1]
	dz := s.pz[0] - s.pz[1]
	assert.Greater(t, dx*dx+dy*dy+dz*dz, 1e-6)
}

func TestTickStaysBounded(t *testing.T) {
	s := newTestSimulator(29)
	s.ApplySnapshot(testSnapshot(rand.New(rand.NewSource(29)), 40, 2))

	for tick := 0; tick < 1000; tick++ {
		s.Tick(1.0 / 60.0)
	}

	// Center pull and damping keep the field from drifting off to infinity.
	for _, p := range s.Positions() {
		assert.Less(t, math.Abs(p.X), 200.0)
		assert.Less(t, math.Abs(p.Y), 200.0)
		assert.Less(t, math.Abs(p.Z), 200.0)
	}
}

func TestTickRejectsBadDeltas(t *testing.T) {
	s := newTestSimulator(3)
	s.ApplySnapshot(testSnapshot(rand.New(rand.NewSource(3)), 5, 0))
	before := s.Positions()

	s.Tick(0)
	s.Tick(-1)
	s.Tick(math.NaN())
	s.Tick(math.Inf(1))

	assert.Equal(t, before, s.Positions(), "degenerate deltas must not move anything")
}

func TestTickEmptySimulator(t *testing.T) {
	s := newTestSimulator(1)
	// Must not panic before any snapshot arrives.
	s.Tick(1.0 / 60.0)
	assert.Empty(t, s.Positions())
}

func TestClusterPullContracts(t *testing.T) {
	config := DefaultConfig()
	config.DriftAmplitude = 0 // isolate the cluster force
	s := New(config, rand.New(rand.NewSource(7)), nil)

	snapshot := testSnapshot(rand.New(rand.NewSource(7)), 12, 1)
	for i := range snapshot.KNN {
		snapshot.KNN[i] = nil // isolate from springs too
	}
	s.ApplySnapshot(snapshot)

	spread := func() float64 {
		positions := s.Positions()
		var cx, cy float64
		for _, p := range positions {
			cx += p.X
			cy += p.Y
		}
		cx /= float64(len(positions))
		cy /= float64(len(positions))
		var total float64
		for _, p := range positions {
			total += math.Hypot(p.X-cx, p.Y-cy)
		}
		return total
	}

	// Blow the cluster apart, then let it pull back together.
	for i := range s.px {
		s.px[i] *= 10
		s.py[i] *= 10
	}
	before := spread()
	for tick := 0; tick < 600; tick++ {
		s.Tick(1.0 / 60.0)
	}
	assert.Less(t, spread(), before, "single-cluster field must contract")
}

func TestApplySnapshotRebuildOnCardinalityChange(t *testing.T) {
	s := newTestSimulator(11)
	rng := rand.New(rand.NewSource(11))

	s.ApplySnapshot(testSnapshot(rng, 10, 2))
	require.Equal(t, 10, s.Len())
	require.Len(t, s.px, 10)

	s.Tick(1.0 / 60.0)
	before := s.Positions()

	// Same cardinality: structure swaps, positions carry over.
	s.ApplySnapshot(testSnapshot(rng, 10, 3))
	assert.Equal(t, before, s.Positions())

	// New cardinality: full spatial rebuild.
	s.ApplySnapshot(testSnapshot(rng, 25, 3))
	assert.Equal(t, 25, s.Len())
	assert.Len(t, s.px, 25)
	assert.Len(t, s.targetZ, 25)

	// Nil snapshots are ignored.
	s.ApplySnapshot(nil)
	assert.Equal(t, 25, s.Len())
}

func TestDepthForAge(t *testing.T) {
	s := newTestSimulator(13)
	now := time.Now()

	fresh := &semgraph.Node{CreatedAt: now}
	assert.InDelta(t, 0, s.depthForAge(fresh, now), 1e-9)

	dayOld := &semgraph.Node{CreatedAt: now.Add(-24 * time.Hour)}
	assert.InDelta(t, -s.config.DepthPerDay, s.depthForAge(dayOld, now), 1e-9)

	ancient := &semgraph.Node{CreatedAt: now.Add(-365 * 24 * time.Hour)}
	assert.Equal(t, -s.config.MaxDepth, s.depthForAge(ancient, now))

	future := &semgraph.Node{CreatedAt: now.Add(time.Hour)}
	assert.InDelta(t, 0, s.depthForAge(future, now), 1e-9)
}

func TestPositionsReturnsCopy(t *testing.T) {
	s := newTestSimulator(19)
	s.ApplySnapshot(testSnapshot(rand.New(rand.NewSource(19)), 4, 0))

	positions := s.Positions()
	positions[0].X = 12345
	assert.NotEqual(t, 12345.0, s.px[0], "mutating the copy must not touch state")
}

func TestMaxKNNLen(t *testing.T) {
	assert.Equal(t, 1, maxKNNLen(nil))
	assert.Equal(t, 1, maxKNNLen([][]int{nil, {}}))
	// The widest list wins even when earlier rows are shorter or empty.
	assert.Equal(t, 4, maxKNNLen([][]int{nil, {1, 2}, {1, 2, 3, 4}, {}}))
}

func TestNewSanitizesConfig(t *testing.T) {
	s := New(Config{Damping: 5, Softening: -1}, nil, nil)
	assert.Equal(t, DefaultConfig().Damping, s.config.Damping)
	assert.Equal(t, DefaultConfig().Softening, s.config.Softening)
}
