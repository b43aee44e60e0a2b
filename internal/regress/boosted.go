package regress

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"cashcast/internal/core"

	"gonum.org/v1/gonum/stat"
)

// BoostParams configures the gradient-boosted trees. The defaults are the fixed
// configuration used for every training run.
type BoostParams struct {
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MaxIter        int     `json:"max_iter"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	MaxBins        int     `json:"max_bins"`
	L2             float64 `json:"l2_regularization"`
	// Subsample is the fraction of rows drawn (without replacement) for each tree.
	// 1 uses every row and makes the fit independent of Seed.
	Subsample float64 `json:"subsample"`
	Seed      int64   `json:"seed"`
}

func DefaultBoostParams() BoostParams {
	return BoostParams{
		MaxDepth:       3,
		LearningRate:   0.06,
		MaxIter:        450,
		MinSamplesLeaf: 20,
		MaxBins:        255,
		L2:             0,
		Subsample:      1,
		Seed:           42,
	}
}

func (p BoostParams) validate() error {
	switch {
	case p.MaxDepth < 1:
		return fmt.Errorf("max depth must be positive, got %d", p.MaxDepth)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %v", p.LearningRate)
	case p.MaxIter < 1:
		return fmt.Errorf("max iterations must be positive, got %d", p.MaxIter)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("min samples per leaf must be positive, got %d", p.MinSamplesLeaf)
	case p.MaxBins < 2:
		return fmt.Errorf("max bins must be at least 2, got %d", p.MaxBins)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %v", p.Subsample)
	}
	return nil
}

// Node is one node of a regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Boosted is an additive ensemble of shallow regression trees fitted to squared error.
type Boosted struct {
	Features int     `json:"features"`
	Base     float64 `json:"base"`
	Trees    []Tree  `json:"trees"`
}

func (m *Boosted) Algo() core.Algo { return core.AlgoBoosted }

func (m *Boosted) NumFeatures() int { return m.Features }

func (m *Boosted) Predict(x []float64) (float64, error) {
	if err := checkInput(x, m.Features); err != nil {
		return 0, err
	}
	out := m.Base
	for _, t := range m.Trees {
		out += t.predict(x)
	}
	return out, nil
}

// Validate checks that every tree is a well-formed, acyclic binary tree over the
// declared feature count, so Predict cannot index out of range or loop.
func (m *Boosted) Validate() error {
	if m.Features <= 0 {
		return fmt.Errorf("%w: boosted model with %d features", ErrShapeMismatch, m.Features)
	}
	if !finite(m.Base) {
		return ErrNonFinite
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				if !finite(n.Value) {
					return fmt.Errorf("tree %d node %d: %w", ti, ni, ErrNonFinite)
				}
				continue
			}
			if n.Feature >= m.Features {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// Children always come after their parent, which rules out cycles.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
			if !finite(n.Threshold) {
				return fmt.Errorf("tree %d node %d: %w", ti, ni, ErrNonFinite)
			}
		}
	}
	return nil
}

// FitBoosted fits gradient-boosted trees on binned features. Each tree is grown
// depth-first on the current residuals; a node is split only when both children keep
// at least MinSamplesLeaf rows and the split reduces the loss.
func FitBoosted(X [][]float64, y []float64, params BoostParams) (m *Boosted, err error) {
	p, err := checkTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("boosted fit panicked: %v", r)
		}
	}()

	n := len(X)
	bins := newBinner(X, params.MaxBins)
	binned := bins.transform(X)

	base := stat.Mean(y, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	grad := make([]float64, n)

	g := &grower{
		params: params,
		bins:   bins,
		binned: binned,
		grad:   grad,
		p:      p,
	}

	rng := rand.New(rand.NewSource(params.Seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	m = &Boosted{Features: p, Base: base}
	for iter := 0; iter < params.MaxIter; iter++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		rows := all
		if params.Subsample < 1 {
			rows = sampleRows(rng, n, params.Subsample)
		}
		tree := g.grow(rows)
		if len(tree.Nodes) == 1 && tree.Nodes[0].Value == 0 {
			// Residuals are exhausted; further trees would be identical no-ops.
			break
		}
		for i := range pred {
			pred[i] += tree.predict(X[i])
		}
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	k := max(1, int(math.Round(frac*float64(n))))
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

// binner maps raw feature values to at most maxBins ordered bins per feature.
// thresholds[j][b] is the upper edge (inclusive) of bin b of feature j.
type binner struct {
	thresholds [][]float64
}

func newBinner(X [][]float64, maxBins int) binner {
	p := len(X[0])
	b := binner{thresholds: make([][]float64, p)}
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		b.thresholds[j] = edges(col, maxBins)
	}
	return b
}

// edges returns split candidates between distinct values: midpoints when there are
// few distinct values, evenly spaced quantiles otherwise.
func edges(col []float64, maxBins int) []float64 {
	vals := append([]float64(nil), col...)
	sort.Float64s(vals)
	distinct := make([]float64, 0, len(vals))
	for i, v := range vals {
		if i == 0 || v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= 1 {
		return nil
	}
	if len(distinct) <= maxBins {
		out := make([]float64, len(distinct)-1)
		for i := range out {
			out[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return out
	}
	out := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		q := stat.Quantile(float64(k)/float64(maxBins), stat.LinInterp, vals, nil)
		if len(out) == 0 || q > out[len(out)-1] {
			out = append(out, q)
		}
	}
	return out
}

func (b binner) transform(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(X))
	for i, row := range X {
		out[i] = make([]uint16, len(row))
		for j, v := range row {
			out[i][j] = uint16(sort.SearchFloat64s(b.thresholds[j], v))
		}
	}
	return out
}

type grower struct {
	params BoostParams
	bins   binner
	binned [][]uint16
	grad   []float64
	p      int
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (g *grower) grow(rows []int) Tree {
	var t Tree
	g.growNode(&t, rows, 0)
	return t
}

func (g *grower) growNode(t *Tree, rows []int, depth int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: -1})

	sum := 0.0
	for _, r := range rows {
		sum += g.grad[r]
	}
	t.Nodes[idx].Value = -g.params.LearningRate * sum / (float64(len(rows)) + g.params.L2)

	if depth >= g.params.MaxDepth || len(rows) < 2*g.params.MinSamplesLeaf {
		return idx
	}
	best, ok := g.bestSplit(rows, sum)
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if int(g.binned[r][best.feature]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	node := Node{Feature: best.feature, Threshold: g.bins.thresholds[best.feature][best.bin]}
	node.Left = g.growNode(t, left, depth+1)
	node.Right = g.growNode(t, right, depth+1)
	t.Nodes[idx] = node
	return idx
}

func (g *grower) bestSplit(rows []int, total float64) (split, bool) {
	n := float64(len(rows))
	l2 := g.params.L2
	parent := total * total / (n + l2)
	minLeaf := g.params.MinSamplesLeaf

	best := split{gain: 1e-12}
	found := false
	for j := 0; j < g.p; j++ {
		edges := g.bins.thresholds[j]
		if len(edges) == 0 {
			continue
		}
		nb := len(edges) + 1
		sums := make([]float64, nb)
		counts := make([]int, nb)
		for _, r := range rows {
			b := g.binned[r][j]
			sums[b] += g.grad[r]
			counts[b]++
		}
		leftSum, leftCount := 0.0, 0
		for b := 0; b < nb-1; b++ {
			leftSum += sums[b]
			leftCount += counts[b]
			rightCount := len(rows) - leftCount
			if leftCount < minLeaf {
				continue
			}
			if rightCount < minLeaf {
				break
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/(float64(leftCount)+l2) + rightSum*rightSum/(float64(rightCount)+l2) - parent
			if gain > best.gain {
				best = split{feature: j, bin: b, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
