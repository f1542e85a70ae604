// Package legacy reads decision trees persisted in the node-graph binary
// format that predates opcode scripts, and evaluates them by recursion.
//
// A decoded graph is immutable. It is never re-encoded by the evaluation
// path; Encode exists to produce fixtures and to migrate trees exported
// from the current model.
package legacy

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
)

// NodeV1 is one node of a legacy graph. Leaf nodes have nil children.
type NodeV1 struct {
	Leaf bool

	// split
	Feature    int
	Type       tree.SplitType
	Threshold  float64
	Categories []float64
	True       *NodeV1
	False      *NodeV1

	// leaf
	Regression bool
	Class      int
	Value      float64
	Posteriori []float64
}

// Output returns the leaf's stored prediction.
func (n *NodeV1) Output() float64 {
	if n.Regression {
		return n.Value
	}
	return float64(n.Class)
}

// Evaluate descends from root following v until it reaches a leaf and
// returns the leaf's output. Comparisons are the ones the stack machine
// uses, so a tree yields the same bits on both paths.
func Evaluate(root *NodeV1, v vector.Vector) (float64, error) {
	if v == nil {
		return 0, errors.ErrNilVector
	}
	return evaluate(root, v, 0)
}

func evaluate(n *NodeV1, v vector.Vector, depth int) (float64, error) {
	if n == nil {
		return 0, errors.NewCorruptModelError("missing node")
	}
	if depth > tree.MaxDepth {
		return 0, errors.NewCorruptModelError(fmt.Sprintf("depth exceeds %d", tree.MaxDepth))
	}
	if n.Leaf {
		return n.Output(), nil
	}

	value := v.GetOr(n.Feature, math.NaN())
	var pred float64
	if n.Type == tree.Nominal {
		pred = stackmachine.Member(value, n.Categories)
	} else {
		pred = stackmachine.CompareLE(value, n.Threshold)
	}
	if stackmachine.Truthy(pred) {
		return evaluate(n.True, v, depth+1)
	}
	return evaluate(n.False, v, depth+1)
}

// FromTree converts a validated tree to its legacy form.
func FromTree(t *tree.Tree) (*NodeV1, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return fromNode(t.Root), nil
}

func fromNode(n tree.Node) *NodeV1 {
	switch n := n.(type) {
	case *tree.Leaf:
		return &NodeV1{
			Leaf:       true,
			Regression: n.Regression,
			Class:      n.Class,
			Value:      n.Value,
			Posteriori: append([]float64(nil), n.Posteriori...),
		}
	case *tree.Split:
		return &NodeV1{
			Feature:    n.Feature,
			Type:       n.Type,
			Threshold:  n.Threshold,
			Categories: append([]float64(nil), n.Categories...),
			True:       fromNode(n.True),
			False:      fromNode(n.False),
		}
	}
	return nil
}

// ToTree converts a legacy graph back to the current model, e.g. to
// recompile it as an opcode script.
func ToTree(root *NodeV1, task tree.Task) (*tree.Tree, error) {
	t := &tree.Tree{Task: task, Root: toNode(root)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func toNode(n *NodeV1) tree.Node {
	switch {
	case n == nil:
		return nil
	case n.Leaf && n.Regression:
		return tree.ValueLeaf(n.Value)
	case n.Leaf:
		return tree.ClassLeaf(n.Class, append([]float64(nil), n.Posteriori...)...)
	case n.Type == tree.Nominal:
		return tree.NominalSplit(n.Feature, n.Categories, toNode(n.True), toNode(n.False))
	default:
		return tree.QuantitativeSplit(n.Feature, n.Threshold, toNode(n.True), toNode(n.False))
	}
}

// Stats summarizes a legacy graph.
type Stats struct {
	Nodes  int
	Leaves int
	Depth  int
}

// Inspect walks the graph and counts its nodes.
func Inspect(root *NodeV1) Stats {
	var s Stats
	var walk func(n *NodeV1, depth int)
	walk = func(n *NodeV1, depth int) {
		if n == nil || depth > tree.MaxDepth {
			return
		}
		s.Nodes++
		s.Depth = max(s.Depth, depth)
		if n.Leaf {
			s.Leaves++
			return
		}
		walk(n.True, depth+1)
		walk(n.False, depth+1)
	}
	walk(root, 0)
	return s
}
