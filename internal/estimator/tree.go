package estimator

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// TreeParams bound the growth of a regression tree.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
	// MaxFeatures limits the features considered per split; 0 means all.
	MaxFeatures int `json:"max_features"`
}

// Node is a flattened tree node. Left < 0 marks a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree splitting on squared error.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	return nil
}

type treeBuilder struct {
	params TreeParams
	x      [][]float64
	y      []float64
	rng    *rand.Rand
	nodes  []Node
}

// fitTree grows a tree over the rows listed in idx. rng is only used when
// MaxFeatures restricts the candidate features.
func fitTree(x [][]float64, y []float64, idx []int, params TreeParams, rng *rand.Rand) *Tree {
	b := &treeBuilder{params: params, x: x, y: y, rng: rng}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: sum / float64(len(idx))})

	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}
	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
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

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which is equivalent to minimizing
// the summed squared error of both children.
func (b *treeBuilder) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	minLeaf := max(b.params.MinSamplesLeaf, 1)
	parent := total * total / float64(n)

	bestScore := parent
	bestFeature, bestThreshold, found := -1, 0.0, false

	order := make([]int, n)
	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += b.y[order[k]]
			nl := k + 1
			if nl < minLeaf || n-nl < minLeaf {
				continue
			}
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(n-nl)
			if score > bestScore+1e-12*max(1, bestScore) {
				bestScore = score
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *treeBuilder) candidateFeatures() []int {
	width := len(b.x[0])
	features := make([]int, width)
	for i := range features {
		features[i] = i
	}
	if b.params.MaxFeatures <= 0 || b.params.MaxFeatures >= width || b.rng == nil {
		return features
	}
	b.rng.Shuffle(width, func(i, j int) { features[i], features[j] = features[j], features[i] })
	return features[:b.params.MaxFeatures]
}
