package deployment

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/wiless/vlib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Clustering is one k-means partition of the devices.
type Clustering struct {
	K         int
	Labels    []int
	Centroids [][]float64
	Inertia   float64 // within-cluster sum of squares
}

const kmeansIterations = 300

// KMeans partitions points into k clusters with Lloyd iterations from a
// k-means++ start, keeping the best of restarts runs.
func KMeans(points [][]float64, k, restarts int, src rand.Source) (Clustering, error) {
	n := len(points)
	if k < 1 || k > n {
		return Clustering{}, fmt.Errorf("deployment: cannot form %d clusters from %d points", k, n)
	}
	if restarts < 1 {
		restarts = 1
	}
	r := rand.New(src)
	best := Clustering{Inertia: math.Inf(1)}
	for run := 0; run < restarts; run++ {
		c := lloyd(points, seedCentroids(points, k, r))
		if c.Inertia < best.Inertia {
			best = c
		}
	}
	return best, nil
}

func seedCentroids(points [][]float64, k int, r *rand.Rand) [][]float64 {
	centroids := [][]float64{clone(points[r.IntN(len(points))])}
	d2 := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d2[i] = math.Inf(1)
			for _, c := range centroids {
				d := floats.Distance(p, c, 2)
				d2[i] = math.Min(d2[i], d*d)
			}
			total += d2[i]
		}
		if total == 0 {
			centroids = append(centroids, clone(points[r.IntN(len(points))]))
			continue
		}
		target := r.Float64() * total
		next := len(points) - 1
		for i, w := range d2 {
			target -= w
			if target < 0 {
				next = i
				break
			}
		}
		centroids = append(centroids, clone(points[next]))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64) Clustering {
	k := len(centroids)
	labels := make([]int, len(points))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, p := range points {
			if l := nearest(p, centroids); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		for c := 0; c < k; c++ {
			var members [][]float64
			for i, l := range labels {
				if l == c {
					members = append(members, points[i])
				}
			}
			if len(members) == 0 {
				continue
			}
			for dim := range centroids[c] {
				col := make([]float64, len(members))
				for m, p := range members {
					col[m] = p[dim]
				}
				centroids[c][dim] = stat.Mean(col, nil)
			}
		}
		if !changed && iter > 0 {
			break
		}
	}
	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}
	return Clustering{K: k, Labels: labels, Centroids: centroids, Inertia: inertia}
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(p, centroid, 2); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// Silhouette returns the mean silhouette coefficient of a labelling, in [-1, 1].
// Points alone in their cluster score 0.
func Silhouette(points [][]float64, labels []int) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	scores := make([]float64, n)
	for i := range points {
		sums := map[int]float64{}
		counts := map[int]int{}
		for j := range points {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(points[i], points[j], 2)
			counts[labels[j]]++
		}
		if counts[labels[i]] == 0 {
			continue
		}
		a := sums[labels[i]] / float64(counts[labels[i]])
		b := math.Inf(1)
		for l, s := range sums {
			if l != labels[i] {
				b = math.Min(b, s/float64(counts[l]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		scores[i] = (b - a) / math.Max(a, b)
	}
	return stat.Mean(scores, nil)
}

// Elbow returns the k-means inertia for k = 1..kmax.
func Elbow(points [][]float64, kmax, restarts int, src rand.Source) ([]float64, error) {
	wcss := make([]float64, 0, kmax)
	for k := 1; k <= kmax; k++ {
		c, err := KMeans(points, k, restarts, src)
		if err != nil {
			return nil, err
		}
		wcss = append(wcss, c.Inertia)
	}
	return wcss, nil
}

// BestClustering tries k = 2..kmax and keeps the partition with the highest
// silhouette. Fewer than three points give a single cluster. A nil logger
// logs to the standard logger.
func BestClustering(points [][]float64, kmax, restarts int, src rand.Source, logger log.FieldLogger) (Clustering, float64, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	n := len(points)
	if kmax > n-1 {
		kmax = n - 1
	}
	if kmax < 2 {
		c, err := KMeans(points, 1, 1, src)
		return c, 0, err
	}
	var best Clustering
	bestScore := math.Inf(-1)
	for k := 2; k <= kmax; k++ {
		c, err := KMeans(points, k, restarts, src)
		if err != nil {
			return Clustering{}, 0, err
		}
		score := Silhouette(points, c.Labels)
		logger.WithFields(log.Fields{"k": k, "silhouette": score}).Debug("deployment: clustering candidate")
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore, nil
}

// ClusteredOrder shuffles the devices of every cluster, sorts each cluster by
// distance to ref and concatenates the clusters ordered by their closest member.
func ClusteredOrder(ref vlib.Location3D, devices []vlib.Location3D, labels []int, src rand.Source) []int {
	r := rand.New(src)
	dist := Distances(ref, devices)
	groups := map[int][]int{}
	var ids []int
	for i, l := range labels {
		if _, ok := groups[l]; !ok {
			ids = append(ids, l)
		}
		groups[l] = append(groups[l], i)
	}
	sort.Ints(ids)
	for _, l := range ids {
		g := groups[l]
		r.Shuffle(len(g), func(a, b int) { g[a], g[b] = g[b], g[a] })
		sort.SliceStable(g, func(a, b int) bool { return dist[g[a]] < dist[g[b]] })
	}
	sort.SliceStable(ids, func(a, b int) bool { return dist[groups[ids[a]][0]] < dist[groups[ids[b]][0]] })

	order := make([]int, 0, len(devices))
	for _, l := range ids {
		order = append(order, groups[l]...)
	}
	return order
}

// Cluster partitions g's devices and fills g.Labels, g.Clustered (clusters
// ordered around the PB) and g.ClusteredRIS (the same clusters ordered around
// the RIS).
func Cluster(g *Geometry, maxK int, src rand.Source, logger log.FieldLogger) (float64, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	points := make([][]float64, len(g.Devices))
	for i, loc := range g.Devices {
		points[i] = []float64{loc.X, loc.Y}
	}
	c, score, err := BestClustering(points, maxK, 10, src, logger)
	if err != nil {
		return 0, err
	}
	g.Labels = c.Labels
	g.Clustered = ClusteredOrder(g.PB, g.Devices, c.Labels, src)
	g.ClusteredRIS = ClusteredOrder(g.RIS, g.Devices, c.Labels, src)
	logger.WithFields(log.Fields{"clusters": c.K, "silhouette": score}).Info("deployment: devices clustered")
	return score, nil
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
