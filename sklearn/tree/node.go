// Package tree holds the in-memory decision tree model, a direct evaluator,
// and the compiler that turns a tree into a stack machine script.
package tree

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// MaxDepth bounds recursion in every tree walker. Trees deeper than this are
// rejected as malformed.
const MaxDepth = 4096

// Task selects what a tree's leaves produce.
type Task int

const (
	// Classification leaves carry a class index.
	Classification Task = iota
	// Regression leaves carry a continuous value.
	Regression
)

// String returns "classification" or "regression".
func (t Task) String() string {
	switch t {
	case Classification:
		return "classification"
	case Regression:
		return "regression"
	default:
		return fmt.Sprintf("Task(%d)", int(t))
	}
}

// ParseTask is the inverse of Task.String.
func ParseTask(s string) (Task, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classification", "classifier":
		return Classification, nil
	case "regression", "regressor":
		return Regression, nil
	default:
		return 0, errors.NewValidationError("task", "must be classification or regression", s)
	}
}

// SplitType is the kind of test a split applies.
type SplitType int

const (
	// Quantitative splits send value <= Threshold to True.
	Quantitative SplitType = iota
	// Nominal splits send value in Categories to True.
	Nominal
)

func (s SplitType) String() string {
	switch s {
	case Quantitative:
		return "quantitative"
	case Nominal:
		return "nominal"
	default:
		return fmt.Sprintf("SplitType(%d)", int(s))
	}
}

// Node is either a *Split or a *Leaf.
type Node interface {
	isNode()
}

// Split is an internal node. A missing feature value (unset or NaN) always
// takes the False branch.
type Split struct {
	Feature    int
	Type       SplitType
	Threshold  float64   // Quantitative
	Categories []float64 // Nominal
	True       Node
	False      Node
}

// Leaf is a terminal node.
type Leaf struct {
	Class      int
	Value      float64
	Regression bool
	Posteriori []float64
}

func (*Split) isNode() {}
func (*Leaf) isNode()  {}

// QuantitativeSplit returns a split on feature <= threshold.
func QuantitativeSplit(feature int, threshold float64, t, f Node) *Split {
	return &Split{Feature: feature, Type: Quantitative, Threshold: threshold, True: t, False: f}
}

// NominalSplit returns a split on membership of feature in categories.
func NominalSplit(feature int, categories []float64, t, f Node) *Split {
	return &Split{Feature: feature, Type: Nominal, Categories: append([]float64(nil), categories...), True: t, False: f}
}

// ClassLeaf returns a classification leaf.
func ClassLeaf(class int, posteriori ...float64) *Leaf {
	return &Leaf{Class: class, Posteriori: posteriori}
}

// ValueLeaf returns a regression leaf.
func ValueLeaf(value float64) *Leaf {
	return &Leaf{Value: value, Regression: true}
}

// Tree pairs a root with the task its leaves answer.
type Tree struct {
	Task Task
	Root Node
}

// Validate checks the tree reachable from t.Root. See Validate.
func (t *Tree) Validate() error {
	if t == nil {
		return errors.NewMalformedModelError("validate", "nil tree")
	}
	return Validate(t.Root, t.Task)
}

// Validate reports a MalformedModelError when a split is missing a child,
// a node is reachable twice (cycle or shared subtree), the tree exceeds
// MaxDepth, or a leaf's kind disagrees with task.
func Validate(root Node, task Task) error {
	seen := make(map[Node]struct{})
	var visit func(n Node, depth int) error
	visit = func(n Node, depth int) error {
		if depth > MaxDepth {
			return errors.NewMalformedModelError("validate", fmt.Sprintf("depth exceeds %d", MaxDepth))
		}
		if isNil(n) {
			return errors.NewMalformedModelError("validate", "missing node")
		}
		if _, dup := seen[n]; dup {
			return errors.NewMalformedModelError("validate", "node reachable more than once")
		}
		seen[n] = struct{}{}

		switch n := n.(type) {
		case *Leaf:
			if n.Regression != (task == Regression) {
				return errors.NewMalformedModelError("validate", fmt.Sprintf("leaf kind does not match %s tree", task))
			}
			if !n.Regression && n.Class < 0 {
				return errors.NewMalformedModelError("validate", fmt.Sprintf("negative class index %d", n.Class))
			}
			return nil
		case *Split:
			if err := checkSplit("validate", n); err != nil {
				return err
			}
			if err := visit(n.True, depth+1); err != nil {
				return err
			}
			return visit(n.False, depth+1)
		default:
			return errors.NewMalformedModelError("validate", fmt.Sprintf("unknown node type %T", n))
		}
	}
	return visit(root, 0)
}

func checkSplit(op string, s *Split) error {
	if s.Feature < 0 {
		return errors.NewMalformedModelError(op, fmt.Sprintf("negative feature index %d", s.Feature))
	}
	switch s.Type {
	case Quantitative:
		if math.IsNaN(s.Threshold) {
			return errors.NewMalformedModelError(op, "NaN threshold")
		}
	case Nominal:
	default:
		return errors.NewMalformedModelError(op, fmt.Sprintf("unknown split type %d", s.Type))
	}
	return nil
}

// isNil catches both a nil interface and a typed nil pointer.
func isNil(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *Split:
		return n == nil
	case *Leaf:
		return n == nil
	}
	return false
}

// Walk visits nodes in preorder with their depth. Returning false from fn
// skips the node's children. Nodes already visited are not entered again,
// so Walk terminates on cyclic graphs.
func Walk(root Node, fn func(n Node, depth int) bool) {
	seen := make(map[Node]struct{})
	var visit func(n Node, depth int)
	visit = func(n Node, depth int) {
		if isNil(n) {
			return
		}
		if _, dup := seen[n]; dup {
			return
		}
		seen[n] = struct{}{}
		if !fn(n, depth) {
			return
		}
		if s, ok := n.(*Split); ok {
			visit(s.True, depth+1)
			visit(s.False, depth+1)
		}
	}
	visit(root, 0)
}

// Depth returns the number of edges on the longest root-to-leaf path.
func Depth(root Node) int {
	d := 0
	Walk(root, func(_ Node, depth int) bool {
		d = max(d, depth)
		return true
	})
	return d
}

// NumLeaves counts reachable leaves.
func NumLeaves(root Node) int {
	n := 0
	Walk(root, func(node Node, _ int) bool {
		if _, ok := node.(*Leaf); ok {
			n++
		}
		return true
	})
	return n
}

// NumSplits counts reachable splits.
func NumSplits(root Node) int {
	n := 0
	Walk(root, func(node Node, _ int) bool {
		if _, ok := node.(*Split); ok {
			n++
		}
		return true
	})
	return n
}
