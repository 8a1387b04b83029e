package layout

import "math"

// springRankBase sets how much harder rank-0 neighbors pull than the last
// slot: per-slot spring constant is SpringK * (springRankBase - rank/k).
const springRankBase = 1.3

// Tick advances the whole simulation by dt seconds of wall-clock time.
//
// The per-node force sum is: KNN springs, cluster gravitation, all-pairs
// repulsion, ambient drift, center pull on x/y, and z relaxation toward the
// age-derived depth plane. The repulsion term is the O(n²) hot path and the
// primary scaling limit; a spatial partition (Barnes-Hut octree) could
// replace it with the same force semantics, but naive all-pairs is the
// reference behavior.
//
// Must be called from a single thread, once per render frame, with whatever
// dt the frame clock produced — all time-dependent terms scale by dt, so
// variable frame rates are fine.
func (s *Simulator) Tick(dt float64) {
	n := len(s.nodes)
	if n == 0 || dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}

	s.simTime += dt
	s.accumulateCentroids()

	k := float64(maxKNNLen(s.knn))

	for i := 0; i < n; i++ {
		fx, fy, fz := 0.0, 0.0, 0.0

		// KNN spring attraction, decaying with neighbor rank.
		if i < len(s.knn) {
			for rank, j := range s.knn[i] {
				if j < 0 || j >= n || j == i {
					continue
				}
				springK := s.config.SpringK * (springRankBase - float64(rank)/k)
				fx += (value(s.px, j) - s.px[i]) * springK
				fy += (value(s.py, j) - s.py[i]) * springK
				fz += (value(s.pz, j) - s.pz[i]) * springK
			}
		}

		// Cluster gravitation toward the per-tick centroid.
		if i < len(s.clusters) && s.clusters[i] != noCluster {
			if c := s.centroids[s.clusters[i]]; c != nil && c.count > 0 {
				inv := 1.0 / float64(c.count)
				fx += (c.x*inv - s.px[i]) * s.config.ClusterK
				fy += (c.y*inv - s.py[i]) * s.config.ClusterK
				fz += (c.z*inv - s.pz[i]) * s.config.ClusterK
			}
		}

		// Pairwise repulsion: inverse-square with softening. O(n²).
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dx := s.px[i] - value(s.px, j)
			dy := s.py[i] - value(s.py, j)
			dz := s.pz[i] - value(s.pz, j)
			d2 := dx*dx + dy*dy + dz*dz
			if d2 < 1e-9 {
				// Coincident nodes have no repulsion direction; nudge
				// them apart deterministically by index parity.
				dx, dy, dz = jitterDirection(i, j)
				d2 = 1e-9
			}
			force := s.config.RepulsionK / (d2 + s.config.Softening)
			dist := math.Sqrt(d2)
			fx += dx / dist * force
			fy += dy / dist * force
			fz += dz / dist * force
		}

		// Ambient drift: cosmetic oscillation, phase-offset per node so the
		// field shimmers instead of breathing in lockstep.
		phase := s.simTime*s.config.DriftFrequency + float64(i)*0.7
		fx += math.Sin(phase) * s.config.DriftAmplitude
		fy += math.Cos(phase*1.3) * s.config.DriftAmplitude
		fz += math.Sin(phase*0.5) * s.config.DriftAmplitude * 0.5

		// Weak center pull on x/y keeps pure repulsion from drifting the
		// field outward forever.
		fx -= s.px[i] * s.config.CenterK
		fy -= s.py[i] * s.config.CenterK

		// Depth relaxation toward the node's recency plane.
		fz += (value(s.targetZ, i) - s.pz[i]) * s.config.DepthK

		s.integrate(i, fx, fy, fz, dt)
	}
}

// integrate folds the force sum into velocity, damps, and applies velocity
// to position, guarding every component against NaN/Inf. Unguarded NaN
// poisons every subsequent tick and silently corrupts the visualization, so
// a bad component is replaced with a small random jitter instead of being
// allowed to propagate.
func (s *Simulator) integrate(i int, fx, fy, fz, dt float64) {
	s.vx[i] = (s.vx[i] + fx*dt) * s.config.Damping
	s.vy[i] = (s.vy[i] + fy*dt) * s.config.Damping
	s.vz[i] = (s.vz[i] + fz*dt) * s.config.Damping

	s.vx[i] = s.sanitize(s.vx[i])
	s.vy[i] = s.sanitize(s.vy[i])
	s.vz[i] = s.sanitize(s.vz[i])

	s.px[i] = s.sanitize(s.px[i] + s.vx[i]*dt)
	s.py[i] = s.sanitize(s.py[i] + s.vy[i]*dt)
	s.pz[i] = s.sanitize(s.pz[i] + s.vz[i]*dt)
}

func (s *Simulator) sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return (s.rng.Float64() - 0.5) * 0.01
	}
	return v
}

// accumulateCentroids recomputes every cluster's position sum for this tick.
// Centroids always reflect the current cluster assignments, which is what
// lets new assignments take effect with no explicit handoff.
func (s *Simulator) accumulateCentroids() {
	for id := range s.centroids {
		delete(s.centroids, id)
	}
	for i, clusterID := range s.clusters {
		if clusterID == noCluster || i >= len(s.px) {
			continue
		}
		c := s.centroids[clusterID]
		if c == nil {
			c = &centroid{}
			s.centroids[clusterID] = c
		}
		c.x += s.px[i]
		c.y += s.py[i]
		c.z += s.pz[i]
		c.count++
	}
}

// jitterDirection picks a deterministic unit-ish separation direction for
// coincident nodes, varying with both indexes so stacked nodes fan out.
func jitterDirection(i, j int) (float64, float64, float64) {
	angle := float64(i*31+j*17) * 0.39996
	return math.Cos(angle) * 1e-3, math.Sin(angle) * 1e-3, math.Cos(angle*0.5) * 5e-4
}

func maxKNNLen(knn [][]int) int {
	longest := 1
	for _, list := range knn {
		if len(list) > longest {
			longest = len(list)
		}
	}
	return longest
}
