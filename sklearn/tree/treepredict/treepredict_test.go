package treepredict_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/pkg/log"
	"github.com/YuminosukeSato/treepredict/sklearn/tree"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/legacy"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/treepredict"
	"github.com/YuminosukeSato/treepredict/sklearn/tree/treetest"
)

// payloads renders tr in every model type.
func payloads(t testing.TB, tr *tree.Tree) map[model.ModelType][]byte {
	t.Helper()
	script, err := tr.Compile(';')
	require.NoError(t, err)
	root, err := legacy.FromTree(tr)
	require.NoError(t, err)
	bin, err := legacy.Encode(root, tr.Task)
	require.NoError(t, err)
	text, err := legacy.EncodeText(root, tr.Task)
	require.NoError(t, err)

	opc, err := model.Compress([]byte(script))
	require.NoError(t, err)
	lgc, err := model.Compress(bin)
	require.NoError(t, err)

	return map[model.ModelType][]byte{
		model.Opcode:           []byte(script),
		model.OpcodeCompressed: opc,
		model.Legacy:           []byte(text),
		model.LegacyCompressed: lgc,
	}
}

func stump() *tree.Tree {
	return &tree.Tree{
		Task: tree.Classification,
		Root: tree.QuantitativeSplit(0, 2.5, tree.ClassLeaf(0), tree.ClassLeaf(1)),
	}
}

func TestPredictStumpAllModelTypes(t *testing.T) {
	ev := treepredict.NewEvaluator()
	ctx := context.Background()

	for mt, payload := range payloads(t, stump()) {
		t.Run(mt.String(), func(t *testing.T) {
			tests := []struct {
				name string
				v    vector.Vector
				want int
			}{
				{"below", vector.FromSlice([]float64{1.0}), 0},
				{"on threshold", vector.FromSlice([]float64{2.5}), 0},
				{"above", vector.FromSlice([]float64{3.0}), 1},
				{"missing", vector.NewSparse(), 1},
			}
			for _, tt := range tests {
				p, err := ev.Predict(ctx, "stump", mt, payload, tt.v, true)
				require.NoError(t, err, tt.name)
				assert.Equal(t, model.ClassIndex, p.Kind, tt.name)
				assert.Equal(t, tt.want, p.Class, tt.name)
			}
		})
	}
	assert.Equal(t, 4, ev.Cache().Len())
}

func TestModelTypesAgree(t *testing.T) {
	rng := treetest.NewRand(99)
	opts := treetest.DefaultOptions
	ev := treepredict.NewEvaluator()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		task := tree.Task(i % 2)
		tr := treetest.Random(rng, task, opts)
		ps := payloads(t, tr)
		id := fmt.Sprintf("tree-%d", i)

		for j := 0; j < 10; j++ {
			v := treetest.RandomVector(rng, opts, 0.2)
			direct, err := tr.Evaluate(v)
			require.NoError(t, err)

			for mt, payload := range ps {
				p, err := ev.Predict(ctx, id, mt, payload, v, task == tree.Classification)
				require.NoError(t, err)
				assert.Equal(t, math.Float64bits(direct.Float()), math.Float64bits(p.Float()), "%s %s", id, mt)
			}
		}
	}
}

func TestPredictErrors(t *testing.T) {
	ev := treepredict.NewEvaluator()
	ctx := context.Background()
	ps := payloads(t, stump())
	v := vector.FromSlice([]float64{1})

	t.Run("unknown model type", func(t *testing.T) {
		_, err := ev.Predict(ctx, "x", model.ModelType(2), ps[model.Opcode], v, true)
		var unknown *errors.UnknownModelTypeError
		require.True(t, errors.As(err, &unknown), "got %v", err)
		assert.Equal(t, 2, unknown.Type)
	})

	t.Run("mode mismatch", func(t *testing.T) {
		for mt, payload := range ps {
			_, err := ev.Predict(ctx, "stump", mt, payload, v, false)
			var mismatch *errors.ModeMismatchError
			require.True(t, errors.As(err, &mismatch), "%s: got %v", mt, err)
			assert.Equal(t, "regression", mismatch.Want)

			var me *errors.ModelError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, "stump", me.ModelID)
		}
	})

	t.Run("malformed script", func(t *testing.T) {
		_, err := ev.Predict(ctx, "bad", model.Opcode, []byte("push_feature:0;jump_false:7;return_class:0"), v, true)
		var malformed *errors.MalformedScriptError
		assert.True(t, errors.As(err, &malformed), "got %v", err)
	})

	t.Run("invalid legacy encoding", func(t *testing.T) {
		_, err := ev.Predict(ctx, "bad", model.Legacy, []byte("has spaces"), v, true)
		var invalid *errors.InvalidEncodingError
		assert.True(t, errors.As(err, &invalid), "got %v", err)
	})

	t.Run("corrupt compressed payload", func(t *testing.T) {
		_, err := ev.Predict(ctx, "bad", model.LegacyCompressed, ps[model.Legacy], v, true)
		var corrupt *errors.CorruptModelError
		assert.True(t, errors.As(err, &corrupt), "got %v", err)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := ev.Predict(ctx, "empty", model.Opcode, nil, v, true)
		assert.ErrorIs(t, err, errors.ErrEmptyPayload)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ev.Predict(cctx, "stump", model.Opcode, ps[model.Opcode], v, true)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCacheLoadsOnce(t *testing.T) {
	cache := treepredict.NewCache()
	payload := payloads(t, stump())[model.Legacy]

	const workers = 64
	handles := make([]*treepredict.Handle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _, err := cache.Get("shared", model.Legacy, payload)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), cache.Loads())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}

	_, hit, err := cache.Get("shared", model.Legacy, nil)
	require.NoError(t, err)
	assert.True(t, hit)

	cache.Evict("shared", model.Legacy)
	assert.Equal(t, 0, cache.Len())
	_, hit, err = cache.Get("shared", model.Legacy, payload)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(2), cache.Loads())

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	cache := treepredict.NewCache()
	_, _, err := cache.Get("m", model.Opcode, []byte("nonsense"))
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	good := payloads(t, stump())[model.Opcode]
	h, hit, err := cache.Get("m", model.Opcode, good)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "m", h.ID())
	assert.Equal(t, int64(2), cache.Loads())
}

func TestLogging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	ev := treepredict.NewEvaluator(treepredict.WithLogger(logger))
	ps := payloads(t, stump())
	v := vector.FromSlice([]float64{1})

	_, err := ev.Predict(context.Background(), "m1", model.Opcode, ps[model.Opcode], v, true)
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("Script parsed"))
	assert.True(t, logger.ContainsField(log.ModelIDKey, "m1"))

	_, err = ev.Predict(context.Background(), "m2", model.Legacy, ps[model.Legacy], v, true)
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("Legacy model decoded"))

	_, err = ev.Predict(context.Background(), "broken", model.Opcode, []byte("nope"), v, true)
	require.Error(t, err)
	assert.True(t, logger.ContainsMessage("Model load failed"))
}

func TestUnverifiedLegacyWarns(t *testing.T) {
	var warnings []error
	var mu sync.Mutex
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	ev := treepredict.NewEvaluator(treepredict.WithVerify(false))
	ps := payloads(t, stump())
	_, err := ev.Predict(context.Background(), "lg", model.Legacy, ps[model.Legacy], vector.NewSparse(), true)
	require.NoError(t, err)
	_, err = ev.Predict(context.Background(), "op", model.Opcode, ps[model.Opcode], vector.NewSparse(), true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, warnings, 1)
	var w *errors.UnverifiedModelWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, "lg", w.ModelID)
}

func TestPredictBatch(t *testing.T) {
	rng := treetest.NewRand(8)
	opts := treetest.DefaultOptions
	tr := treetest.Random(rng, tree.Regression, opts)
	ps := payloads(t, tr)

	const rows = 700
	data := make([]float64, 0, rows*opts.Features)
	for i := 0; i < rows; i++ {
		v := treetest.RandomVector(rng, opts, 0.1)
		for j := 0; j < opts.Features; j++ {
			data = append(data, v.GetOr(j, math.NaN()))
		}
	}
	X := mat.NewDense(rows, opts.Features, data)

	ev := treepredict.NewEvaluator(treepredict.WithParallelThreshold(16))
	for mt, payload := range ps {
		t.Run(mt.String(), func(t *testing.T) {
			got, err := ev.PredictBatch(context.Background(), "batch", mt, payload, X, false)
			require.NoError(t, err)
			require.Equal(t, rows, got.Len())

			for i := 0; i < rows; i++ {
				want, err := tr.Evaluate(vector.FromRow(X, i))
				require.NoError(t, err)
				assert.Equal(t, want.Value, got.AtVec(i), "row %d", i)
			}
		})
	}
}

func TestPredictBatchFailsWhole(t *testing.T) {
	ps := payloads(t, stump())
	X := mat.NewDense(100, 1, nil)
	h, err := treepredict.Load(&model.OpcodeModel{ID: "s", Origin: model.Opcode, Script: string(ps[model.Opcode])},
		treepredict.WithParallelThreshold(4))
	require.NoError(t, err)

	out, err := h.PredictBatch(context.Background(), X, false)
	assert.Nil(t, out)
	var mismatch *errors.ModeMismatchError
	assert.True(t, errors.As(err, &mismatch), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.PredictBatch(ctx, X, true)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = h.PredictBatch(context.Background(), &mat.Dense{}, true)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	ps := payloads(t, stump())
	ev := treepredict.NewEvaluator()

	h, err := ev.Handle("s", model.Opcode, ps[model.Opcode])
	require.NoError(t, err)
	assert.Contains(t, h.Describe(), "0000 push_feature:0")
	assert.NotNil(t, h.Program())

	h, err = ev.Handle("s", model.LegacyCompressed, ps[model.LegacyCompressed])
	require.NoError(t, err)
	assert.Contains(t, h.Describe(), "nodes: 3, leaves: 2, depth: 1")
	root, task := h.LegacyRoot()
	assert.NotNil(t, root)
	assert.Equal(t, tree.Classification, task)
}

func BenchmarkPredictCached(b *testing.B) {
	ps := payloads(b, stump())
	ev := treepredict.NewEvaluator()
	ctx := context.Background()
	v := vector.FromSlice([]float64{3})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ev.Predict(ctx, "bench", model.Opcode, ps[model.Opcode], v, true); err != nil {
			b.Fatal(err)
		}
	}
}
