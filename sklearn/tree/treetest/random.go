// Package treetest generates seeded random trees and feature vectors for
// property tests across the tree packages.
package treetest

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
)

// Options shapes the generated trees.
type Options struct {
	MaxDepth     int     // deepest split level
	Features     int     // feature indices are drawn from [0, Features)
	Classes      int     // class indices are drawn from [0, Classes)
	Categories   int     // nominal codes are drawn from [0, Categories)
	NominalRatio float64 // share of nominal splits
	LeafRatio    float64 // chance of stopping early at any level
}

// DefaultOptions is a reasonable mix for property tests.
var DefaultOptions = Options{
	MaxDepth:     6,
	Features:     5,
	Classes:      4,
	Categories:   6,
	NominalRatio: 0.3,
	LeafRatio:    0.15,
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Random builds a tree for task.
func Random(rng *rand.Rand, task tree.Task, opts Options) *tree.Tree {
	return &tree.Tree{Task: task, Root: randomNode(rng, task, opts, 0)}
}

func randomNode(rng *rand.Rand, task tree.Task, opts Options, depth int) tree.Node {
	if depth >= opts.MaxDepth || (depth > 0 && rng.Float64() < opts.LeafRatio) {
		return randomLeaf(rng, task, opts)
	}
	feature := rng.IntN(opts.Features)
	t := randomNode(rng, task, opts, depth+1)
	f := randomNode(rng, task, opts, depth+1)
	if rng.Float64() < opts.NominalRatio {
		var cats []float64
		for c := 0; c < opts.Categories; c++ {
			if rng.IntN(2) == 0 {
				cats = append(cats, float64(c))
			}
		}
		return tree.NominalSplit(feature, cats, t, f)
	}
	return tree.QuantitativeSplit(feature, gridValue(rng), t, f)
}

func randomLeaf(rng *rand.Rand, task tree.Task, opts Options) tree.Node {
	if task == tree.Regression {
		return tree.ValueLeaf(rng.NormFloat64() * 10)
	}
	post := make([]float64, opts.Classes)
	sum := 0.0
	for i := range post {
		post[i] = rng.Float64()
		sum += post[i]
	}
	for i := range post {
		post[i] /= sum
	}
	return tree.ClassLeaf(rng.IntN(opts.Classes), post...)
}

// gridValue draws from a coarse grid so that vectors land exactly on
// thresholds often enough to exercise the <= boundary.
func gridValue(rng *rand.Rand) float64 {
	return float64(rng.IntN(21)-10) / 4
}

// RandomVector returns a dense vector over opts.Features features. Each
// feature is left unset with probability missing. Values come from the
// threshold grid, or from the category range with probability one half.
func RandomVector(rng *rand.Rand, opts Options, missing float64) *vector.DenseVector {
	v := vector.NewDense(opts.Features)
	for i := 0; i < opts.Features; i++ {
		switch {
		case rng.Float64() < missing:
		case rng.IntN(2) == 0:
			v.Set(i, float64(rng.IntN(opts.Categories+2)))
		default:
			v.Set(i, gridValue(rng))
		}
	}
	return v
}
