// Package layout runs the force-directed 3D simulation that turns the
// semantic graph into stable spatial positions for rendering.
//
// The simulator owns all mutable spatial state (positions, velocities, depth
// targets), indexed by node slice position. It is built for a
// single-threaded, cooperative, frame-driven model: one Tick per rendered
// frame, never reentrant, never concurrent — callers needing cross-thread
// access must synchronize externally. Graph structure (KNN lists, cluster
// assignments) arrives through complete snapshots and may be several
// recomputes stale; the simulation just picks up the newest state on the
// next tick.
package layout

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/adalundhe/constel/core/semgraph"
)

// Position is one node's spatial coordinate snapshot.
type Position struct {
	X, Y, Z float64
}

// Config carries the simulation's tuned force constants. These are visual
// tuning values, not physically derived quantities: strong enough cluster
// pull to group communities without collapsing them into points, enough
// repulsion to spread singletons without flinging them off screen.
type Config struct {
	// SpringK scales KNN spring attraction before per-rank decay.
	SpringK float64 `yaml:"spring_k"`

	// ClusterK scales the pull toward a node's cluster centroid.
	ClusterK float64 `yaml:"cluster_k"`

	// RepulsionK scales the pairwise inverse-square repulsion.
	RepulsionK float64 `yaml:"repulsion_k"`

	// Softening keeps the repulsion denominator away from zero.
	Softening float64 `yaml:"softening"`

	// CenterK scales the weak x/y pull toward the origin.
	CenterK float64 `yaml:"center_k"`

	// DepthK scales z relaxation toward each node's age-derived target.
	DepthK float64 `yaml:"depth_k"`

	// Damping multiplies velocity every tick; must be < 1 or the system
	// never settles.
	Damping float64 `yaml:"damping"`

	// DriftAmplitude and DriftFrequency shape the cosmetic sinusoidal
	// perturbation that keeps a settled layout from looking dead.
	DriftAmplitude float64 `yaml:"drift_amplitude"`
	DriftFrequency float64 `yaml:"drift_frequency"`

	// SpawnRadius bounds the random initial placement sphere.
	SpawnRadius float64 `yaml:"spawn_radius"`

	// DepthPerDay is how far back (negative z) a node sits per day of age.
	DepthPerDay float64 `yaml:"depth_per_day"`

	// MaxDepth clamps the age-derived depth plane.
	MaxDepth float64 `yaml:"max_depth"`
}

// DefaultConfig returns the tuned constants the renderer expects.
func DefaultConfig() Config {
	return Config{
		SpringK:        0.012,
		ClusterK:       0.025,
		RepulsionK:     2.2,
		Softening:      0.35,
		CenterK:        0.004,
		DepthK:         0.02,
		Damping:        0.86,
		DriftAmplitude: 0.015,
		DriftFrequency: 0.6,
		SpawnRadius:    6.0,
		DepthPerDay:    0.4,
		MaxDepth:       8.0,
	}
}

// Simulator advances the n-body layout one tick at a time.
type Simulator struct {
	config Config
	logger *slog.Logger
	rng    *rand.Rand

	// Graph inputs, replaced wholesale by ApplySnapshot.
	nodes    []*semgraph.Node
	knn      [][]int
	clusters []int64 // cluster per node index, noCluster when unassigned

	// Spatial state, exclusively owned, indexed by node slice position.
	px, py, pz []float64
	vx, vy, vz []float64
	targetZ    []float64

	// simTime accumulates tick deltas and drives the drift oscillators, so
	// drift phase is frame-rate independent.
	simTime float64

	// scratch centroid accumulators, keyed by cluster ID.
	centroids map[int64]*centroid
}

const noCluster = int64(-1)

type centroid struct {
	x, y, z float64
	count   int
}

// New creates a simulator. A nil logger falls back to slog.Default(); a nil
// rng gets a time-seeded one (pass a seeded rng for reproducible runs).
func New(config Config, rng *rand.Rand, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if config.Damping <= 0 || config.Damping >= 1 {
		config.Damping = DefaultConfig().Damping
	}
	if config.Softening <= 0 {
		config.Softening = DefaultConfig().Softening
	}
	return &Simulator{
		config:    config,
		logger:    logger,
		rng:       rng,
		centroids: make(map[int64]*centroid),
	}
}

// Len returns the simulated node count.
func (s *Simulator) Len() int {
	return len(s.nodes)
}

// ApplySnapshot installs a new graph snapshot. A change in node count forces
// a full spatial rebuild — state arrays are index-aligned to the node slice
// and must never be partially patched across a cardinality change. With the
// cardinality unchanged, only the KNN lists and cluster assignments are
// swapped; positions and velocities carry over so the layout stays smooth
// across recomputes.
func (s *Simulator) ApplySnapshot(snapshot *semgraph.GraphSnapshot) {
	if snapshot == nil {
		return
	}
	if len(snapshot.Nodes) != len(s.nodes) {
		s.rebuild(snapshot)
		return
	}
	s.nodes = snapshot.Nodes
	s.knn = snapshot.KNN
	s.clusters = clusterIndex(snapshot.Nodes)
}

// rebuild reinitializes every state array for a new node set: random
// position within the spawn sphere, small random velocity, and a depth
// target derived from node age.
func (s *Simulator) rebuild(snapshot *semgraph.GraphSnapshot) {
	n := len(snapshot.Nodes)
	s.nodes = snapshot.Nodes
	s.knn = snapshot.KNN
	s.clusters = clusterIndex(snapshot.Nodes)

	s.px = make([]float64, n)
	s.py = make([]float64, n)
	s.pz = make([]float64, n)
	s.vx = make([]float64, n)
	s.vy = make([]float64, n)
	s.vz = make([]float64, n)
	s.targetZ = make([]float64, n)

	now := time.Now()
	for i, node := range snapshot.Nodes {
		s.px[i] = (s.rng.Float64()*2 - 1) * s.config.SpawnRadius
		s.py[i] = (s.rng.Float64()*2 - 1) * s.config.SpawnRadius
		s.pz[i] = (s.rng.Float64()*2 - 1) * s.config.SpawnRadius * 0.5
		s.vx[i] = (s.rng.Float64()*2 - 1) * 0.01
		s.vy[i] = (s.rng.Float64()*2 - 1) * 0.01
		s.vz[i] = (s.rng.Float64()*2 - 1) * 0.01
		s.targetZ[i] = s.depthForAge(node, now)
	}

	s.logger.Debug("layout state rebuilt", "nodes", n)
}

// depthForAge maps node age onto a recency depth plane: newer snippets float
// near z=0, older ones sink toward -MaxDepth.
func (s *Simulator) depthForAge(node *semgraph.Node, now time.Time) float64 {
	age := node.Age(now)
	if age < 0 {
		age = 0
	}
	depth := age.Hours() / 24 * s.config.DepthPerDay
	if depth > s.config.MaxDepth {
		depth = s.config.MaxDepth
	}
	return -depth
}

// Positions returns a read-only copy of every node's current position,
// index-aligned with the snapshot's node slice. This is the sole read
// boundary for the rendering layer.
func (s *Simulator) Positions() []Position {
	out := make([]Position, len(s.nodes))
	for i := range s.nodes {
		out[i] = Position{X: s.px[i], Y: s.py[i], Z: s.pz[i]}
	}
	return out
}

// clusterIndex flattens per-node cluster pointers into an index-aligned
// slice, with noCluster for unassigned nodes.
func clusterIndex(nodes []*semgraph.Node) []int64 {
	out := make([]int64, len(nodes))
	for i, node := range nodes {
		if node.ClusterID != nil {
			out[i] = *node.ClusterID
		} else {
			out[i] = noCluster
		}
	}
	return out
}

// value reads a state slot defensively: a missing or non-finite slot reads
// as 0 rather than poisoning downstream arithmetic.
func value(arr []float64, i int) float64 {
	if i < 0 || i >= len(arr) {
		return 0
	}
	v := arr[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
