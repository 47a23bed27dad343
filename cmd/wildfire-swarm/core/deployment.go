package core

import (
	"math"
	"math/rand"
)

// Point is a 2D world coordinate used by the deployment planner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// KMeansPlanner clusters fire hotspot coordinates to pick deployment
// zones: leaders go to cluster centroids; followers are not reassigned.
// Seeded so a given fire map always produces the same plan.
type KMeansPlanner struct {
	clusters      int
	maxIterations int
	rng           *rand.Rand
}

// NewKMeansPlanner creates a planner for up to clusters zones.
func NewKMeansPlanner(clusters, maxIterations int, seed int64) *KMeansPlanner {
	if clusters <= 0 {
		clusters = 3
	}
	if maxIterations <= 0 {
		maxIterations = 100
	}
	return &KMeansPlanner{
		clusters:      clusters,
		maxIterations: maxIterations,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Cluster returns centroids for the given hotspot points. With fewer
// points than clusters, each point becomes its own centroid.
func (k *KMeansPlanner) Cluster(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}
	n := k.clusters
	if n > len(points) {
		n = len(points)
	}

	centroids := make([]Point, n)
	perm := k.rng.Perm(len(points))
	for i := 0; i < n; i++ {
		centroids[i] = points[perm[i]]
	}

	labels := make([]int, len(points))
	for iter := 0; iter < k.maxIterations; iter++ {
		changed := false
		for i, pt := range points {
			best := 0
			bestDist := math.Inf(1)
			for c, ctr := range centroids {
				d := (pt.X-ctr.X)*(pt.X-ctr.X) + (pt.Y-ctr.Y)*(pt.Y-ctr.Y)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		sums := make([]Point, n)
		counts := make([]int, n)
		for i, pt := range points {
			sums[labels[i]].X += pt.X
			sums[labels[i]].Y += pt.Y
			counts[labels[i]]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
			}
		}

		if !changed {
			break
		}
	}
	return centroids
}

// PlanFromFire clusters the current burning cells of a grid, returning
// deployment zone centers in world meters.
func (k *KMeansPlanner) PlanFromFire(grid *FireGrid) []Point {
	burning := grid.IterBurning()
	points := make([]Point, 0, len(burning))
	for _, c := range burning {
		points = append(points, Point{
			X: (float64(c.GX) + 0.5) * grid.CellSizeM,
			Y: (float64(c.GY) + 0.5) * grid.CellSizeM,
		})
	}
	return k.Cluster(points)
}
