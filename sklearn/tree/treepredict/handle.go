package treepredict

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treepredict/core"
	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/core/parallel"
	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/legacy"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
)

var (
	_ core.Evaluator      = (*Handle)(nil)
	_ core.BatchPredictor = (*Handle)(nil)
	_ core.Describer      = (*Handle)(nil)
)

// Handle is a parsed or decoded model ready for evaluation. It is immutable
// and safe for concurrent use.
type Handle struct {
	id    string
	mtype model.ModelType

	// exactly one of program and root is set
	program *stackmachine.Program
	root    *legacy.NodeV1
	task    tree.Task

	parallelThreshold int
}

// Load parses or decodes m.
func Load(m model.Model, opts ...Option) (*Handle, error) {
	return load(m, buildOptions(opts))
}

func load(m model.Model, o options) (*Handle, error) {
	h := &Handle{parallelThreshold: o.parallelThreshold}
	switch m := m.(type) {
	case *model.OpcodeModel:
		p, err := stackmachine.Parse(m.Script, o.separator)
		if err != nil {
			return nil, err
		}
		h.id, h.mtype, h.program = m.ID, m.Origin, p
	case *model.LegacyModel:
		var (
			root *legacy.NodeV1
			task tree.Task
			err  error
		)
		if m.Raw != nil {
			root, task, err = legacy.DecodeBinary(m.Raw, o.verify)
		} else {
			root, task, err = legacy.Decode(m.Encoded, len(m.Encoded), o.verify)
		}
		if err != nil {
			return nil, err
		}
		h.id, h.mtype, h.root, h.task = m.ID, m.Origin, root, task
	case nil:
		return nil, errors.ErrEmptyPayload
	default:
		return nil, errors.NewUnknownModelTypeError(int(m.Type()))
	}
	return h, nil
}

// ID returns the model identifier.
func (h *Handle) ID() string { return h.id }

// Type returns the discriminator the model was loaded with.
func (h *Handle) Type() model.ModelType { return h.mtype }

// Evaluate implements core.Evaluator.
func (h *Handle) Evaluate(v vector.Vector, classification bool) (float64, error) {
	if h.program != nil {
		return h.program.Evaluate(v, classification)
	}
	if classification != (h.task == tree.Classification) {
		want, got := "classification", "continuous value"
		if !classification {
			want, got = "regression", "class index"
		}
		return 0, errors.NewModeMismatchError(want, got)
	}
	return legacy.Evaluate(h.root, v)
}

// Predict evaluates v and tags the result with its kind.
func (h *Handle) Predict(v vector.Vector, classification bool) (model.Prediction, error) {
	out, err := h.Evaluate(v, classification)
	if err != nil {
		return model.Prediction{}, err
	}
	if classification {
		return model.ClassPrediction(int(out)), nil
	}
	return model.ValuePrediction(out), nil
}

// PredictBatch evaluates every row of X. Rows are split across CPUs when
// there are more than the parallel threshold. The first failing row aborts
// the batch; no partial result is returned.
func (h *Handle) PredictBatch(ctx context.Context, X mat.Matrix, classification bool) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewValidationError("X", "matrix has no rows", rows)
	}
	out := make([]float64, rows)

	err := parallel.ForEachChunk(ctx, rows, h.parallelThreshold, func(ctx context.Context, start, end int) (err error) {
		defer errors.Recover(&err, "PredictBatch")
		v := vector.NewDense(cols)
		for i := start; i < end; i++ {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			v.LoadRow(X, i)
			y, err := h.Evaluate(v, classification)
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			out[i] = y
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(rows, out), nil
}

// Describe returns a disassembly for opcode models and a summary for
// legacy ones.
func (h *Handle) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "model %q (%s)\n", h.id, h.mtype)
	if h.program != nil {
		fmt.Fprintf(&sb, "instructions: %d, max stack: %d\n", h.program.Len(), h.program.MaxStack())
		sb.WriteString(h.program.Disassemble())
		return sb.String()
	}
	s := legacy.Inspect(h.root)
	fmt.Fprintf(&sb, "task: %s, nodes: %d, leaves: %d, depth: %d\n", h.task, s.Nodes, s.Leaves, s.Depth)
	return sb.String()
}

// Program returns the parsed script, or nil for a legacy model.
func (h *Handle) Program() *stackmachine.Program { return h.program }

// LegacyRoot returns the decoded graph and its task, or nil for an opcode
// model.
func (h *Handle) LegacyRoot() (*legacy.NodeV1, tree.Task) { return h.root, h.task }
