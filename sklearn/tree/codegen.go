package tree

import (
	"fmt"

	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
)

// Compile translates the tree under root into an opcode script whose tokens
// are joined by sep.
//
// Each split becomes
//
//	push_feature:F; push_const:T; cmp_le; jump_false:ELSE; <true>; ELSE: <false>
//
// (cmp_in:C1,C2,... replaces push_const and cmp_le for nominal splits).
// Every subtree ends in a return, so the true branch never falls through
// and no jump past the false branch is emitted.
func Compile(root Node, sep byte) (string, error) {
	if err := stackmachine.CheckSeparator(sep); err != nil {
		return "", err
	}
	p, err := CompileProgram(root)
	if err != nil {
		return "", err
	}
	return p.Script(sep)
}

// CompileProgram is Compile without the text step.
func CompileProgram(root Node) (*stackmachine.Program, error) {
	c := compiler{seen: make(map[Node]struct{})}
	if err := c.emit(root, 0); err != nil {
		return nil, err
	}
	p, err := stackmachine.NewProgram(c.asm.Code())
	if err != nil {
		// the compiler only produces well-formed code
		return nil, errors.Wrap(err, "treepredict: compiler produced an invalid program")
	}
	return p, nil
}

// Compile validates t against its task and compiles it.
func (t *Tree) Compile(sep byte) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	return Compile(t.Root, sep)
}

type compiler struct {
	asm  stackmachine.Assembler
	seen map[Node]struct{}
}

func (c *compiler) emit(n Node, depth int) error {
	if depth > MaxDepth {
		return errors.NewMalformedModelError("compile", fmt.Sprintf("depth exceeds %d", MaxDepth))
	}
	if isNil(n) {
		return errors.NewMalformedModelError("compile", "missing node")
	}
	if _, dup := c.seen[n]; dup {
		return errors.NewMalformedModelError("compile", "node reachable more than once")
	}
	c.seen[n] = struct{}{}

	switch n := n.(type) {
	case *Leaf:
		if n.Regression {
			c.asm.Emit(stackmachine.ReturnValue(n.Value))
			return nil
		}
		if n.Class < 0 {
			return errors.NewMalformedModelError("compile", fmt.Sprintf("negative class index %d", n.Class))
		}
		c.asm.Emit(stackmachine.ReturnClass(n.Class))
		return nil

	case *Split:
		if err := checkSplit("compile", n); err != nil {
			return err
		}
		c.asm.Emit(stackmachine.PushFeature(n.Feature))
		if n.Type == Nominal {
			c.asm.Emit(stackmachine.CmpIn(n.Categories))
		} else {
			c.asm.Emit(stackmachine.PushConst(n.Threshold))
			c.asm.Emit(stackmachine.CmpLE())
		}
		jump := c.asm.Emit(stackmachine.JumpFalse(0))
		if err := c.emit(n.True, depth+1); err != nil {
			return err
		}
		c.asm.Patch(jump, c.asm.Len())
		return c.emit(n.False, depth+1)

	default:
		return errors.NewMalformedModelError("compile", fmt.Sprintf("unknown node type %T", n))
	}
}
