package fraud

import (
	"math"
	"math/rand"
	"sort"
)

// Isolation forest parameters. The fixed seed makes training reproducible
// for a given history, so restarts score identically.
const (
	numTrees      = 100
	maxSampleSize = 256
	contamination = 0.15
	forestSeed    = 42
)

// Forest is a trained isolation forest. Anomalous points isolate in fewer
// random splits, giving them shorter average path lengths.
type Forest struct {
	trees      []*treeNode
	sampleSize int
	// offset is the (1 - contamination) quantile of training anomaly
	// scores. Decision values are measured against it: positive means
	// more normal than the training cutoff, negative means anomalous.
	offset float64
}

type treeNode struct {
	left, right *treeNode
	splitFeat   int
	splitVal    float64
	size        int // external node: number of samples that ended here
}

// TrainForest fits an isolation forest on the sample matrix. It returns nil
// when there are no samples.
func TrainForest(samples [][]float64) *Forest {
	if len(samples) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(forestSeed))

	sampleSize := len(samples)
	if sampleSize > maxSampleSize {
		sampleSize = maxSampleSize
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	f := &Forest{trees: make([]*treeNode, numTrees), sampleSize: sampleSize}
	for i := 0; i < numTrees; i++ {
		sub := subsample(samples, sampleSize, rng)
		f.trees[i] = buildTree(sub, 0, heightLimit, rng)
	}

	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = f.anomalyScore(s)
	}
	sort.Float64s(scores)
	idx := int(math.Ceil(float64(len(scores))*(1-contamination))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	f.offset = scores[idx]

	return f
}

// Decision returns the signed distance of x's anomaly score from the
// training cutoff. Higher means more normal.
func (f *Forest) Decision(x []float64) float64 {
	return f.offset - f.anomalyScore(x)
}

// anomalyScore is the canonical isolation forest score in (0, 1]:
// 2^(-E[pathLength]/c(sampleSize)). Values near 1 are highly anomalous.
func (f *Forest) anomalyScore(x []float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/avgPathLength(f.sampleSize))
}

func buildTree(samples [][]float64, depth, heightLimit int, rng *rand.Rand) *treeNode {
	if depth >= heightLimit || len(samples) <= 1 {
		return &treeNode{size: len(samples)}
	}

	feat := rng.Intn(len(samples[0]))
	lo, hi := samples[0][feat], samples[0][feat]
	for _, s := range samples[1:] {
		if s[feat] < lo {
			lo = s[feat]
		}
		if s[feat] > hi {
			hi = s[feat]
		}
	}
	if lo == hi {
		return &treeNode{size: len(samples)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, s := range samples {
		if s[feat] < split {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &treeNode{
		splitFeat: feat,
		splitVal:  split,
		left:      buildTree(left, depth+1, heightLimit, rng),
		right:     buildTree(right, depth+1, heightLimit, rng),
	}
}

func pathLength(node *treeNode, x []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if x[node.splitFeat] < node.splitVal {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points. It normalizes path lengths across sample sizes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerGamma = 0.5772156649
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func subsample(samples [][]float64, size int, rng *rand.Rand) [][]float64 {
	if len(samples) <= size {
		return samples
	}
	idx := rng.Perm(len(samples))[:size]
	out := make([][]float64, size)
	for i, j := range idx {
		out[i] = samples[j]
	}
	return out
}
