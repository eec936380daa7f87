// Package cluster implements density-based clustering over feature vectors.
//
// The algorithm is HDBSCAN with excess-of-mass cluster selection: mutual
// reachability distances, a minimum spanning tree, a condensed cluster
// hierarchy, and stability-based selection. A single root-spanning cluster is
// never selectable, so a shot with no density structure labels every frame as
// noise and the caller falls back to a single representative.
package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Noise is the label assigned to points that belong to no cluster.
const Noise = -1

// lambdaMax stands in for 1/0 when duplicate points merge at distance zero.
const lambdaMax = 1e12

type Options struct {
	MinClusterSize int
	MinSamples     int
}

// Clusterer assigns a cluster label per vector, Noise for outliers. Label
// assignment must be deterministic for identical input.
type Clusterer interface {
	Labels(vectors [][]float32) []int
}

type HDBSCAN struct {
	minClusterSize int
	minSamples     int
}

func NewHDBSCAN(opts Options) *HDBSCAN {
	mcs := opts.MinClusterSize
	if mcs < 2 {
		mcs = 2
	}
	ms := opts.MinSamples
	if ms < 1 {
		ms = 1
	}
	return &HDBSCAN{minClusterSize: mcs, minSamples: ms}
}

func (h *HDBSCAN) Labels(vectors [][]float32) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n < 2 || n < h.minClusterSize {
		return labels
	}

	pts := toFloat64(vectors)
	dist := distanceMatrix(pts)
	core := coreDistances(dist, n, h.minSamples)
	edges := spanningTree(dist, core, n)
	tree := condense(edges, n, h.minClusterSize)
	return tree.labels(tree.selectEOM(), n)
}

func toFloat64(vectors [][]float32) [][]float64 {
	pts := make([][]float64, len(vectors))
	for i, v := range vectors {
		p := make([]float64, len(v))
		for j, x := range v {
			p[j] = float64(x)
		}
		pts[i] = p
	}
	return pts
}

// distanceMatrix returns the flat n*n Euclidean distance matrix.
func distanceMatrix(pts [][]float64) []float64 {
	n := len(pts)
	dist := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(pts[i], pts[j], 2)
			dist[i*n+j] = d
			dist[j*n+i] = d
		}
	}
	return dist
}

// coreDistances returns, per point, the distance to its k-th nearest other
// point (k = minSamples).
func coreDistances(dist []float64, n, minSamples int) []float64 {
	core := make([]float64, n)
	row := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if j != i {
				row = append(row, dist[i*n+j])
			}
		}
		sort.Float64s(row)
		k := minSamples
		if k > len(row) {
			k = len(row)
		}
		core[i] = row[k-1]
	}
	return core
}

type edge struct {
	a, b int
	w    float64
}

// spanningTree runs Prim's algorithm over the mutual reachability graph,
// mreach(i,j) = max(core(i), core(j), d(i,j)), and returns the n-1 MST edges
// sorted ascending by weight. Ties are ordered by endpoint indices so the
// hierarchy, and therefore the labeling, is deterministic.
func spanningTree(dist, core []float64, n int) []edge {
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		from[i] = -1
	}

	edges := make([]edge, 0, n-1)
	cur := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := dist[cur*n+j]
			if core[cur] > d {
				d = core[cur]
			}
			if core[j] > d {
				d = core[j]
			}
			if d < best[j] {
				best[j] = d
				from[j] = cur
			}
		}
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		edges = append(edges, edge{a: from[next], b: next, w: best[next]})
		inTree[next] = true
		cur = next
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].w != edges[j].w {
			return edges[i].w < edges[j].w
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}

type dendroNode struct {
	left, right int // child node ids, -1 for leaves
	dist        float64
	size        int
}

// condensedTree is the cluster hierarchy with all sub-minClusterSize branches
// collapsed into their parent cluster. Cluster 0 is the root; child clusters
// always carry larger ids than their parents.
type condensedTree struct {
	pointParent []int // condensed cluster each point fell out of
	parent      []int // per cluster, -1 for root
	birth       []float64
	children    [][]int
	stability   []float64
}

func condense(edges []edge, n, mcs int) *condensedTree {
	// Single-linkage dendrogram from the sorted MST edges.
	nodes := make([]dendroNode, n, 2*n-1)
	for i := 0; i < n; i++ {
		nodes[i] = dendroNode{left: -1, right: -1, size: 1}
	}
	uf := newUnionFind(n)
	nodeOf := make([]int, n)
	for i := range nodeOf {
		nodeOf[i] = i
	}
	for _, e := range edges {
		ra, rb := uf.find(e.a), uf.find(e.b)
		na, nb := nodeOf[ra], nodeOf[rb]
		nodes = append(nodes, dendroNode{
			left:  na,
			right: nb,
			dist:  e.w,
			size:  nodes[na].size + nodes[nb].size,
		})
		nodeOf[uf.union(ra, rb)] = len(nodes) - 1
	}
	root := len(nodes) - 1

	t := &condensedTree{
		pointParent: make([]int, n),
		parent:      []int{-1},
		birth:       []float64{0},
		children:    [][]int{nil},
		stability:   []float64{0},
	}

	type item struct{ node, cluster int }
	stack := []item{{node: root, cluster: 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nd := nodes[it.node]
		lambda := lambdaMax
		if nd.dist > 0 {
			lambda = 1 / nd.dist
		}

		ls := nodes[nd.left].size
		rs := nodes[nd.right].size
		switch {
		case ls >= mcs && rs >= mcs:
			// True split: both sides survive as new clusters.
			for _, ch := range [2]int{nd.left, nd.right} {
				cid := t.newCluster(it.cluster, lambda, nodes[ch].size)
				stack = append(stack, item{node: ch, cluster: cid})
			}
		case ls >= mcs:
			t.dropPoints(nodes, nd.right, it.cluster, lambda)
			stack = append(stack, item{node: nd.left, cluster: it.cluster})
		case rs >= mcs:
			t.dropPoints(nodes, nd.left, it.cluster, lambda)
			stack = append(stack, item{node: nd.right, cluster: it.cluster})
		default:
			t.dropPoints(nodes, nd.left, it.cluster, lambda)
			t.dropPoints(nodes, nd.right, it.cluster, lambda)
		}
	}
	return t
}

func (t *condensedTree) newCluster(parent int, lambda float64, size int) int {
	id := len(t.parent)
	t.parent = append(t.parent, parent)
	t.birth = append(t.birth, lambda)
	t.children = append(t.children, nil)
	t.stability = append(t.stability, 0)
	t.children[parent] = append(t.children[parent], id)
	t.stability[parent] += (lambda - t.birth[parent]) * float64(size)
	return id
}

// dropPoints detaches every point under node from cluster at the given
// lambda, accumulating the cluster's stability.
func (t *condensedTree) dropPoints(nodes []dendroNode, node, cluster int, lambda float64) {
	stack := []int{node}
	for len(stack) > 0 {
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodes[nd].left < 0 {
			t.pointParent[nd] = cluster
			t.stability[cluster] += lambda - t.birth[cluster]
			continue
		}
		stack = append(stack, nodes[nd].left, nodes[nd].right)
	}
}

// selectEOM picks the flat clustering maximizing total stability. The root
// cluster is never selectable, matching cluster selection with a mandatory
// split: if the hierarchy never splits, nothing is selected and every point
// ends up noise.
func (t *condensedTree) selectEOM() []bool {
	m := len(t.parent)
	selected := make([]bool, m)
	subtree := make([]float64, m)
	for id := m - 1; id >= 1; id-- {
		ch := t.children[id]
		if len(ch) == 0 {
			selected[id] = true
			subtree[id] = t.stability[id]
			continue
		}
		sum := 0.0
		for _, c := range ch {
			sum += subtree[c]
		}
		if t.stability[id] >= sum {
			selected[id] = true
			subtree[id] = t.stability[id]
		} else {
			subtree[id] = sum
		}
	}

	// Keep only the shallowest selected cluster on each root-to-leaf path.
	final := make([]bool, m)
	stack := append([]int(nil), t.children[0]...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if selected[id] {
			final[id] = true
			continue
		}
		stack = append(stack, t.children[id]...)
	}
	return final
}

func (t *condensedTree) labels(final []bool, n int) []int {
	label := make([]int, len(t.parent))
	next := 0
	for id := range label {
		label[id] = Noise
		if final[id] {
			label[id] = next
			next++
		}
	}

	out := make([]int, n)
	for p := 0; p < n; p++ {
		out[p] = Noise
		for c := t.pointParent[p]; c >= 0; c = t.parent[c] {
			if final[c] {
				out[p] = label[c]
				break
			}
		}
	}
	return out
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := 0; i < n; i++ {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) int {
	if u.size[a] < u.size[b] {
		a, b = b, a
	}
	u.parent[b] = a
	u.size[a] += u.size[b]
	return a
}
