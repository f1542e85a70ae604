// Package treepredict evaluates decision trees trained elsewhere, in Go,
// for backend services that need a prediction per request.
//
// A tree reaches the evaluator in one of four payload forms, selected by a
// model-type discriminator:
//
//   - opcode (1): a stack-machine script, e.g. "push_feature:0;push_const:2.5;cmp_le;..."
//   - legacy (3): the older node-graph binary format, basE91 encoded
//   - opcode_compressed (-1), legacy_compressed (-3): the same, zlib
//     compressed and basE91 encoded
//
// Every form yields the same prediction for the same tree.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/treepredict/core/model"
//	    "github.com/YuminosukeSato/treepredict/core/vector"
//	    "github.com/YuminosukeSato/treepredict/sklearn/tree/treepredict"
//	)
//
//	func main() {
//	    script := []byte("push_feature:0;push_const:2.5;cmp_le;jump_false:5;return_class:0;return_class:1")
//
//	    ev := treepredict.NewEvaluator()
//	    x := vector.FromSlice([]float64{1.7})
//	    p, err := ev.Predict(context.Background(), "stump", model.Opcode, script, x, true)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(p) // class=0
//	}
//
// # Packages
//
//   - sklearn/tree: in-memory tree model, validation, JSON interchange and the script compiler
//   - sklearn/tree/stackmachine: opcode set, script parser and the evaluating VM
//   - sklearn/tree/legacy: the legacy node graph and its binary codec
//   - sklearn/tree/treepredict: model routing, compile-once cache and batch prediction
//   - core/model: model types, payload persistence and compression
//   - core/vector: dense and sparse feature vectors
//   - core/parallel: chunked parallel execution
//   - pkg/codec/base91: basE91 text encoding
//   - pkg/errors, pkg/log: error types and structured logging
//
// The treepredict command (cmd/treepredict) wraps compile, encode, predict
// and inspect for shell use.
package treepredict
