// Package treepredict is the evaluation entry point. It routes a payload by
// its model type to the stack machine or the legacy decoder, keeps the
// result in a compile-once cache and returns tagged predictions.
//
//	ev := treepredict.NewEvaluator()
//	p, err := ev.Predict(ctx, "churn#3", model.Opcode, script, features, true)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(p.Class)
package treepredict

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treepredict/core/model"
	"github.com/YuminosukeSato/treepredict/core/vector"
	"github.com/YuminosukeSato/treepredict/pkg/errors"
	"github.com/YuminosukeSato/treepredict/pkg/log"
)

// Evaluator predicts with models identified by id. It is safe for
// concurrent use.
type Evaluator struct {
	cache *Cache
	log   log.Logger
}

// NewEvaluator returns an Evaluator with its own cache.
func NewEvaluator(opts ...Option) *Evaluator {
	c := NewCache(opts...)
	return &Evaluator{
		cache: c,
		log:   c.opts.logger.With(log.ComponentKey, "evaluator"),
	}
}

// Cache exposes the evaluator's cache.
func (e *Evaluator) Cache() *Cache {
	return e.cache
}

// Handle returns the cached handle for modelID, loading payload on first use.
func (e *Evaluator) Handle(modelID string, t model.ModelType, payload []byte) (*Handle, error) {
	h, _, err := e.cache.Get(modelID, t, payload)
	if err != nil {
		e.log.Error("Model load failed",
			log.ModelIDKey, modelID,
			log.ModelTypeKey, t.String(),
			"error", err,
		)
		return nil, err
	}
	return h, nil
}

// Predict evaluates v with the model. classification selects the expected
// output kind; a model whose leaves disagree fails with ModeMismatchError.
// ctx is only consulted before loading, a single evaluation never blocks.
func (e *Evaluator) Predict(ctx context.Context, modelID string, t model.ModelType, payload []byte, v vector.Vector, classification bool) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, err
	}
	h, err := e.Handle(modelID, t, payload)
	if err != nil {
		return model.Prediction{}, err
	}
	p, err := h.Predict(v, classification)
	if err != nil {
		return model.Prediction{}, errors.NewModelError(modelID, log.OperationPredict, err)
	}
	return p, nil
}

// PredictBatch evaluates every row of X with the model.
func (e *Evaluator) PredictBatch(ctx context.Context, modelID string, t model.ModelType, payload []byte, X mat.Matrix, classification bool) (*mat.VecDense, error) {
	h, err := e.Handle(modelID, t, payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, cols := X.Dims()
	out, err := h.PredictBatch(ctx, X, classification)
	if err != nil {
		e.log.Error("Batch prediction failed",
			log.ModelIDKey, modelID,
			log.OperationKey, log.OperationPredictBatch,
			log.SamplesKey, rows,
			"error", err,
		)
		return nil, errors.NewModelError(modelID, log.OperationPredictBatch, err)
	}
	e.log.Debug("Batch prediction finished",
		log.ModelIDKey, modelID,
		log.OperationKey, log.OperationPredictBatch,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}
