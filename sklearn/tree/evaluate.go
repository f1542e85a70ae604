package tree

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
)

// Output is the leaf reached by an evaluation.
type Output struct {
	Class      int
	Value      float64
	Regression bool
}

// Float returns the value a stack machine would return for the same leaf.
func (o Output) Float() float64 {
	if o.Regression {
		return o.Value
	}
	return float64(o.Class)
}

// Evaluate walks the tree from root following v and returns the leaf it
// lands on. Split tests share their comparison with the stack machine, so a
// compiled tree produces the same result bit for bit.
func Evaluate(root Node, v vector.Vector) (Output, error) {
	if v == nil {
		return Output{}, errors.ErrNilVector
	}
	n := root
	for depth := 0; depth <= MaxDepth; depth++ {
		switch node := n.(type) {
		case *Leaf:
			if node == nil {
				return Output{}, errors.NewMalformedModelError("evaluate", "missing node")
			}
			return Output{Class: node.Class, Value: node.Value, Regression: node.Regression}, nil
		case *Split:
			if node == nil {
				return Output{}, errors.NewMalformedModelError("evaluate", "missing node")
			}
			if stackmachine.Truthy(node.test(v.GetOr(node.Feature, math.NaN()))) {
				n = node.True
			} else {
				n = node.False
			}
		case nil:
			return Output{}, errors.NewMalformedModelError("evaluate", "missing node")
		default:
			return Output{}, errors.NewMalformedModelError("evaluate", fmt.Sprintf("unknown node type %T", node))
		}
	}
	return Output{}, errors.NewMalformedModelError("evaluate", fmt.Sprintf("no leaf within depth %d", MaxDepth))
}

func (s *Split) test(value float64) float64 {
	if s.Type == Nominal {
		return stackmachine.Member(value, s.Categories)
	}
	return stackmachine.CompareLE(value, s.Threshold)
}

// Evaluate runs t against v. See Evaluate.
func (t *Tree) Evaluate(v vector.Vector) (Output, error) {
	return Evaluate(t.Root, v)
}
