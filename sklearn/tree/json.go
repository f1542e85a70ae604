package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
)

// JSONTree is the interchange form written by the external trainer:
//
//	{"task": "classification",
//	 "root": {"feature": 0, "type": "quantitative", "threshold": 2.5,
//	          "true": {"class": 0}, "false": {"class": 1, "posteriori": [0.1, 0.9]}}}
type JSONTree struct {
	Task string    `json:"task"`
	Root *JSONNode `json:"root"`
}

// JSONNode is a split when Feature is set, otherwise a leaf.
type JSONNode struct {
	// Split fields
	Feature    *int      `json:"feature,omitempty"`
	Type       string    `json:"type,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	Categories []float64 `json:"categories,omitempty"`
	True       *JSONNode `json:"true,omitempty"`
	False      *JSONNode `json:"false,omitempty"`

	// Leaf fields
	Class      *int      `json:"class,omitempty"`
	Value      *float64  `json:"value,omitempty"`
	Posteriori []float64 `json:"posteriori,omitempty"`
}

// LoadJSON reads a tree from a JSON file.
func LoadJSON(path string) (*Tree, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, errors.NewValidationError("path", "path traversal detected", path)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tree file %s", cleanPath)
	}
	return ParseJSON(data)
}

// ParseJSON decodes and validates a tree.
func ParseJSON(data []byte) (*Tree, error) {
	var jt JSONTree
	if err := json.Unmarshal(data, &jt); err != nil {
		return nil, errors.Wrap(err, "failed to parse tree JSON")
	}
	task, err := ParseTask(jt.Task)
	if err != nil {
		return nil, err
	}
	root, err := convertJSONNode(jt.Root, task, 0)
	if err != nil {
		return nil, err
	}
	t := &Tree{Task: task, Root: root}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func convertJSONNode(n *JSONNode, task Task, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, errors.NewMalformedModelError("parse", fmt.Sprintf("depth exceeds %d", MaxDepth))
	}
	if n == nil {
		return nil, errors.NewMalformedModelError("parse", "missing node")
	}

	if n.Feature == nil {
		switch {
		case task == Classification && n.Class != nil:
			return ClassLeaf(*n.Class, n.Posteriori...), nil
		case task == Regression && n.Value != nil:
			return ValueLeaf(*n.Value), nil
		case task == Classification:
			return nil, errors.NewMalformedModelError("parse", "classification leaf without class")
		default:
			return nil, errors.NewMalformedModelError("parse", "regression leaf without value")
		}
	}

	s := &Split{Feature: *n.Feature}
	switch strings.ToLower(n.Type) {
	case "", "quantitative", "numeric":
		if n.Threshold == nil {
			return nil, errors.NewMalformedModelError("parse", fmt.Sprintf("split on feature %d without threshold", *n.Feature))
		}
		s.Type = Quantitative
		s.Threshold = *n.Threshold
	case "nominal", "categorical":
		s.Type = Nominal
		s.Categories = append([]float64(nil), n.Categories...)
	default:
		return nil, errors.NewMalformedModelError("parse", fmt.Sprintf("unknown split type %q", n.Type))
	}

	var err error
	if s.True, err = convertJSONNode(n.True, task, depth+1); err != nil {
		return nil, err
	}
	if s.False, err = convertJSONNode(n.False, task, depth+1); err != nil {
		return nil, err
	}
	return s, nil
}

// ToJSON converts t to its interchange form.
func ToJSON(t *Tree) (*JSONTree, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &JSONTree{Task: t.Task.String(), Root: toJSONNode(t.Root)}, nil
}

func toJSONNode(n Node) *JSONNode {
	switch n := n.(type) {
	case *Leaf:
		if n.Regression {
			v := n.Value
			return &JSONNode{Value: &v}
		}
		c := n.Class
		return &JSONNode{Class: &c, Posteriori: n.Posteriori}
	case *Split:
		f := n.Feature
		out := &JSONNode{Feature: &f, Type: n.Type.String(), True: toJSONNode(n.True), False: toJSONNode(n.False)}
		if n.Type == Nominal {
			out.Categories = n.Categories
		} else {
			th := n.Threshold
			out.Threshold = &th
		}
		return out
	}
	return nil
}

// MarshalJSON writes the interchange form.
func (t *Tree) MarshalJSON() ([]byte, error) {
	jt, err := ToJSON(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jt)
}
