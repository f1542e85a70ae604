package tree_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/stackmachine"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/treetest"
)

// f0 <= 2.5 ? class 0 : class 1
func stump() *tree.Tree {
	return &tree.Tree{
		Task: tree.Classification,
		Root: tree.QuantitativeSplit(0, 2.5, tree.ClassLeaf(0, 0.9, 0.1), tree.ClassLeaf(1, 0.2, 0.8)),
	}
}

func sparse(pairs ...float64) vector.Vector {
	v := vector.NewSparse()
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(int(pairs[i]), pairs[i+1])
	}
	return v
}

func TestCompileStump(t *testing.T) {
	script, err := stump().Compile(';')
	require.NoError(t, err)
	assert.Equal(t, "push_feature:0;push_const:2.5;cmp_le;jump_false:5;return_class:0;return_class:1", script)

	tests := []struct {
		name string
		v    vector.Vector
		want float64
	}{
		{"below", sparse(0, 1.0), 0},
		{"above", sparse(0, 3.0), 1},
		{"missing", sparse(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stackmachine.Evaluate(script, tt.v, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			out, err := stump().Evaluate(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Float())
		})
	}
}

func TestCompileSingleLeaf(t *testing.T) {
	script, err := tree.Compile(tree.ValueLeaf(4.25), ';')
	require.NoError(t, err)
	assert.Equal(t, "return_value:4.25", script)

	got, err := stackmachine.Evaluate(script, sparse(), false)
	require.NoError(t, err)
	assert.Equal(t, 4.25, got)
}

func TestCompileNominal(t *testing.T) {
	root := tree.NominalSplit(3, []float64{1, 4}, tree.ValueLeaf(-1), tree.ValueLeaf(1))
	script, err := tree.Compile(root, '|')
	require.NoError(t, err)
	assert.Equal(t, "push_feature:3|cmp_in:1,4|jump_false:4|return_value:-1|return_value:1", script)
}

func TestCompileJumpTargetsStayInRange(t *testing.T) {
	rng := treetest.NewRand(7)
	for i := 0; i < 50; i++ {
		tr := treetest.Random(rng, tree.Regression, treetest.DefaultOptions)
		p, err := tree.CompileProgram(tr.Root)
		require.NoError(t, err)
		for off, in := range p.Instructions() {
			if in.Op == stackmachine.OpJump || in.Op == stackmachine.OpJumpFalse {
				assert.Greater(t, in.Index, off)
				assert.Less(t, in.Index, p.Len())
			}
		}
		assert.LessOrEqual(t, p.MaxStack(), 2)
	}
}

func TestCompileRejectsMalformedTrees(t *testing.T) {
	shared := tree.ClassLeaf(0)
	cyclic := tree.QuantitativeSplit(0, 1, tree.ClassLeaf(0), nil)
	cyclic.False = cyclic

	tests := []struct {
		name string
		root tree.Node
	}{
		{"nil root", nil},
		{"missing false child", tree.QuantitativeSplit(0, 1, tree.ClassLeaf(0), nil)},
		{"typed nil child", tree.QuantitativeSplit(0, 1, (*tree.Leaf)(nil), tree.ClassLeaf(1))},
		{"shared subtree", tree.QuantitativeSplit(0, 1, shared, shared)},
		{"cycle", cyclic},
		{"negative feature", tree.QuantitativeSplit(-1, 1, tree.ClassLeaf(0), tree.ClassLeaf(1))},
		{"NaN threshold", tree.QuantitativeSplit(0, math.NaN(), tree.ClassLeaf(0), tree.ClassLeaf(1))},
		{"negative class", tree.ClassLeaf(-2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.Compile(tt.root, ';')
			var malformed *errors.MalformedModelError
			require.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestCompileSeparatorConflict(t *testing.T) {
	for _, sep := range []byte{',', ':', '.', 'x', '5'} {
		_, err := tree.Compile(stump().Root, sep)
		var conflict *errors.EncodingConflictError
		assert.True(t, errors.As(err, &conflict), "separator %q", sep)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, stump().Validate())

	mixed := &tree.Tree{
		Task: tree.Classification,
		Root: tree.QuantitativeSplit(0, 1, tree.ClassLeaf(0), tree.ValueLeaf(1)),
	}
	var malformed *errors.MalformedModelError
	assert.True(t, errors.As(mixed.Validate(), &malformed))

	_, err := mixed.Compile(';')
	assert.True(t, errors.As(err, &malformed))

	var nilTree *tree.Tree
	assert.Error(t, nilTree.Validate())
}

func TestEvaluateDirect(t *testing.T) {
	// f1 in {2,5} ? (f0 <= 0 ? 10 : 20) : 30
	root := tree.NominalSplit(1, []float64{2, 5},
		tree.QuantitativeSplit(0, 0, tree.ValueLeaf(10), tree.ValueLeaf(20)),
		tree.ValueLeaf(30))

	tests := []struct {
		name string
		v    vector.Vector
		want float64
	}{
		{"member low", sparse(1, 2, 0, -1), 10},
		{"member on threshold", sparse(1, 5, 0, 0), 10},
		{"member high", sparse(1, 5, 0, 0.5), 20},
		{"member missing quantitative", sparse(1, 2), 20},
		{"unseen category", sparse(1, 3, 0, -1), 30},
		{"missing nominal", sparse(0, -1), 30},
		{"NaN nominal", vector.FromSlice([]float64{-1, math.NaN()}), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tree.Evaluate(root, tt.v)
			require.NoError(t, err)
			assert.True(t, out.Regression)
			assert.Equal(t, tt.want, out.Value)
		})
	}

	_, err := tree.Evaluate(root, nil)
	assert.ErrorIs(t, err, errors.ErrNilVector)

	_, err = tree.Evaluate(tree.QuantitativeSplit(0, 1, tree.ValueLeaf(1), nil), sparse())
	var malformed *errors.MalformedModelError
	assert.True(t, errors.As(err, &malformed))
}

func TestCompiledMatchesDirect(t *testing.T) {
	for _, task := range []tree.Task{tree.Classification, tree.Regression} {
		t.Run(task.String(), func(t *testing.T) {
			rng := treetest.NewRand(42)
			opts := treetest.DefaultOptions
			for i := 0; i < 100; i++ {
				tr := treetest.Random(rng, task, opts)
				p, err := tree.CompileProgram(tr.Root)
				require.NoError(t, err)

				for j := 0; j < 20; j++ {
					v := treetest.RandomVector(rng, opts, 0.2)
					want, err := tr.Evaluate(v)
					require.NoError(t, err)
					got, err := p.Evaluate(v, task == tree.Classification)
					require.NoError(t, err)
					assert.Equal(t, math.Float64bits(want.Float()), math.Float64bits(got))
				}
			}
		})
	}
}

func TestMissingFeatureRoutesFalse(t *testing.T) {
	rng := treetest.NewRand(3)
	opts := treetest.DefaultOptions
	for i := 0; i < 50; i++ {
		tr := treetest.Random(rng, tree.Regression, opts)
		split, ok := tr.Root.(*tree.Split)
		if !ok {
			continue
		}
		// follow False from the root while the tested features are missing
		v := treetest.RandomVector(rng, opts, 0)
		v.Set(split.Feature, math.NaN())
		direct, err := tree.Evaluate(split.False, v)
		require.NoError(t, err)

		p, err := tree.CompileProgram(tr.Root)
		require.NoError(t, err)
		got, err := p.Evaluate(v, false)
		require.NoError(t, err)
		assert.Equal(t, direct.Value, got)
	}
}

func TestTreeStats(t *testing.T) {
	root := tree.QuantitativeSplit(0, 1,
		tree.NominalSplit(1, []float64{1}, tree.ClassLeaf(0), tree.ClassLeaf(1)),
		tree.ClassLeaf(2))
	assert.Equal(t, 2, tree.Depth(root))
	assert.Equal(t, 3, tree.NumLeaves(root))
	assert.Equal(t, 2, tree.NumSplits(root))
	assert.Equal(t, 0, tree.Depth(tree.ClassLeaf(0)))

	cyclic := tree.QuantitativeSplit(0, 1, tree.ClassLeaf(0), nil)
	cyclic.False = cyclic
	assert.Equal(t, 1, tree.NumLeaves(cyclic))
}

const stumpJSON = `{
  "task": "classification",
  "root": {
    "feature": 0, "type": "quantitative", "threshold": 2.5,
    "true":  {"class": 0, "posteriori": [0.9, 0.1]},
    "false": {"class": 1, "posteriori": [0.2, 0.8]}
  }
}`

func TestParseJSON(t *testing.T) {
	tr, err := tree.ParseJSON([]byte(stumpJSON))
	require.NoError(t, err)
	assert.Equal(t, tree.Classification, tr.Task)
	assert.Equal(t, stump(), tr)

	script, err := tr.Compile(';')
	require.NoError(t, err)
	want, err := stump().Compile(';')
	require.NoError(t, err)
	assert.Equal(t, want, script)
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{`},
		{"bad task", `{"task":"clustering","root":{"class":0}}`},
		{"no root", `{"task":"regression"}`},
		{"leaf kind mismatch", `{"task":"regression","root":{"class":1}}`},
		{"missing threshold", `{"task":"regression","root":{"feature":0,"true":{"value":1},"false":{"value":2}}}`},
		{"missing child", `{"task":"regression","root":{"feature":0,"threshold":1,"true":{"value":1}}}`},
		{"bad split type", `{"task":"regression","root":{"feature":0,"type":"oblique","threshold":1,"true":{"value":1},"false":{"value":2}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.ParseJSON([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	rng := treetest.NewRand(11)
	for _, task := range []tree.Task{tree.Classification, tree.Regression} {
		tr := treetest.Random(rng, task, treetest.DefaultOptions)
		data, err := tr.MarshalJSON()
		require.NoError(t, err)
		again, err := tree.ParseJSON(data)
		require.NoError(t, err)

		want, err := tr.Compile(';')
		require.NoError(t, err)
		got, err := again.Compile(';')
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(stumpJSON), 0o600))

	tr, err := tree.LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.NumLeaves(tr.Root)+tree.NumSplits(tr.Root))

	_, err = tree.LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func BenchmarkEvaluateDirect(b *testing.B) {
	rng := treetest.NewRand(1)
	opts := treetest.DefaultOptions
	opts.LeafRatio = 0
	tr := treetest.Random(rng, tree.Regression, opts)
	v := treetest.RandomVector(rng, opts, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tr.Evaluate(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEvaluateCompiled(b *testing.B) {
	rng := treetest.NewRand(1)
	opts := treetest.DefaultOptions
	opts.LeafRatio = 0
	tr := treetest.Random(rng, tree.Regression, opts)
	v := treetest.RandomVector(rng, opts, 0)
	p, err := tree.CompileProgram(tr.Root)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Evaluate(v, false); err != nil {
			b.Fatal(err)
		}
	}
}
