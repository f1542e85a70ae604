// Package core holds the interfaces shared by every inference path.
package core

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/treepredict/core/vector"
)

// Evaluator は単一の特徴ベクトルに対する推論を行うインターフェース
//
// classificationがtrueならクラス番号を、falseなら連続値を返す。
// 実装は不変であり、複数のgoroutineから同時に呼び出してよい。
type Evaluator interface {
	Evaluate(v vector.Vector, classification bool) (float64, error)
}

// BatchPredictor は行列の各行に対する推論を行うインターフェース
type BatchPredictor interface {
	// PredictBatch はXの各行を評価し、行数と同じ長さのベクトルを返す
	PredictBatch(ctx context.Context, X mat.Matrix, classification bool) (*mat.VecDense, error)
}

// Describer はモデルの構造を人間が読める形式で返すインターフェース
type Describer interface {
	Describe() string
}
