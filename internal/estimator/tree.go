package estimator

import (
	"math/rand"
	"sort"
)

const leaf = -1

// node is one split or leaf of a regression tree. Children always have a higher index
// than their parent.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// tree is a CART regression tree stored as a flat node list rooted at index 0.
type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     Params
	rng        *rand.Rand
	nodes      []node
	importance []float64
}

// growTree fits one tree on a bootstrap sample drawn with rng.
func growTree(x [][]float64, y []float64, params Params, rng *rand.Rand) (*tree, []float64) {
	n := len(y)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}

	b := &treeBuilder{
		x:          x,
		y:          y,
		params:     params,
		rng:        rng,
		importance: make([]float64, len(x[0])),
	}
	b.build(sample, 0)

	return &tree{Nodes: b.nodes}, b.importance
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: leaf})

	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	count := float64(len(idx))
	b.nodes[self].Value = sum / count
	parentSSE := sumSq - sum*sum/count

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}
	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return self
	}
	if parentSSE <= 1e-12 {
		return self
	}

	feature, threshold, sse, ok := b.bestSplit(idx)
	if !ok || sse >= parentSSE {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}

	b.importance[feature] += parentSSE - sse

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit scans candidate features for the threshold with the lowest summed squared
// error of both children. Earlier features and lower thresholds win ties.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, float64, bool) {
	nFeatures := len(b.x[0])
	candidates := make([]int, nFeatures)
	for i := range candidates {
		candidates[i] = i
	}
	if m := b.params.featuresPerSplit(nFeatures); m < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		candidates = candidates[:m]
		sort.Ints(candidates)
	}

	minLeaf := b.params.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	sorted := make([]int, len(idx))
	bestFeature, bestThreshold, bestSSE := -1, 0.0, 0.0
	total := len(idx)

	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		for k := 1; k < total; k++ {
			yi := b.y[sorted[k-1]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi || k < minLeaf || total-k < minLeaf {
				continue
			}

			nl, nr := float64(k), float64(total-k)
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if bestFeature == -1 || sse < bestSSE {
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				bestSSE = sse
			}
		}
	}

	return bestFeature, bestThreshold, bestSSE, bestFeature != -1
}
